// Package uefixture assembles synthetic in-memory targets (a name
// pool, an object registry and reflection structures laid out exactly
// as the active profile expects) so parsers and queries can be
// exercised against a process_blob image instead of a live process.
package uefixture

import (
	"encoding/binary"
	"fmt"

	"uedump/process"
	"uedump/process_blob"
	"uedump/uelayout"
)

const (
	heapBase   = process.ProcessMemoryAddress(0x200000000)
	objectSize = 0x100 // covers every profile offset the walkers touch
)

// Object is one registered UObject of the fixture.
type Object struct {
	Addr process.ProcessMemoryAddress
	ID   uint32
	Name string

	fix       *Fixture
	fieldTail process.ProcessMemoryAddress
}

// Fixture builds the image incrementally; Image() freezes it.
type Fixture struct {
	Profile uelayout.Profile

	heap []byte

	poolBase process.ProcessMemoryAddress
	blocks   []process.ProcessMemoryAddress
	cursor   uint32 // byte cursor inside the current block
	names    map[string]uint32

	objects    []*Object
	guobjBase  process.ProcessMemoryAddress
	classTags  map[string]process.ProcessMemoryAddress
	moduleName string
	moduleBase process.ProcessMemoryAddress
	moduleData []byte

	extraSegments map[process.ProcessMemoryAddress][]byte
}

// New creates a fixture for the given profile. Tests typically shrink
// Profile.NameBlockSize and Profile.ElementsPerChunk first so multiple
// blocks and chunks stay cheap.
func New(profile uelayout.Profile) *Fixture {
	f := &Fixture{
		Profile:       profile,
		names:         make(map[string]uint32),
		classTags:     make(map[string]process.ProcessMemoryAddress),
		extraSegments: make(map[process.ProcessMemoryAddress][]byte),
		moduleName:    "FixtureGame.exe",
		moduleBase:    0x140000000,
	}

	// Pool header plus a blocks table of 64 slots.
	f.poolBase = f.alloc(int(profile.NameBlocksOffset) + 64*8)
	f.newBlock()

	// Id 0 is always "None".
	f.Name("None")
	return f
}

// alloc reserves size bytes on the heap and returns their address.
func (f *Fixture) alloc(size int) process.ProcessMemoryAddress {
	if rem := len(f.heap) % 8; rem != 0 {
		f.heap = append(f.heap, make([]byte, 8-rem)...)
	}
	addr := heapBase + process.ProcessMemoryAddress(len(f.heap))
	f.heap = append(f.heap, make([]byte, size)...)
	return addr
}

func (f *Fixture) off(addr process.ProcessMemoryAddress) int {
	return int(addr - heapBase)
}

func (f *Fixture) put8(addr process.ProcessMemoryAddress, v uint8) {
	f.heap[f.off(addr)] = v
}

func (f *Fixture) put16(addr process.ProcessMemoryAddress, v uint16) {
	binary.LittleEndian.PutUint16(f.heap[f.off(addr):], v)
}

func (f *Fixture) put32(addr process.ProcessMemoryAddress, v uint32) {
	binary.LittleEndian.PutUint32(f.heap[f.off(addr):], v)
}

func (f *Fixture) put64(addr process.ProcessMemoryAddress, v uint64) {
	binary.LittleEndian.PutUint64(f.heap[f.off(addr):], v)
}

// PoolBase returns the NamePool base address.
func (f *Fixture) PoolBase() process.ProcessMemoryAddress { return f.poolBase }

// GUObjectArrayBase returns the registry base; valid after Finalize.
func (f *Fixture) GUObjectArrayBase() process.ProcessMemoryAddress { return f.guobjBase }

// ModuleBase returns the fake main module base.
func (f *Fixture) ModuleBase() process.ProcessMemoryAddress { return f.moduleBase }

func (f *Fixture) newBlock() {
	block := f.alloc(int(f.Profile.NameBlockSize))
	f.put64(f.poolBase+process.ProcessMemoryAddress(f.Profile.NameBlocksOffset+8*uint64(len(f.blocks))), uint64(block))
	f.blocks = append(f.blocks, block)
	f.cursor = 0
}

// CloseBlock pads out the current block; subsequent names land in a
// fresh one.
func (f *Fixture) CloseBlock() {
	f.newBlock()
}

// Name interns s in the pool and returns its composite id. Repeated
// calls return the existing id.
func (f *Fixture) Name(s string) uint32 {
	if id, ok := f.names[s]; ok {
		return id
	}

	headerSize := f.Profile.NameEntryHeaderSize
	stride := f.Profile.NameBlockStride
	need := headerSize + uint32(len(s))
	if rem := need % stride; rem != 0 {
		need += stride - rem
	}
	if f.cursor+need > f.Profile.NameBlockSize {
		f.newBlock()
	}

	block := uint32(len(f.blocks) - 1)
	entry := f.blocks[block] + process.ProcessMemoryAddress(f.cursor)
	f.put16(entry, uint16(len(s))<<6)
	copy(f.heap[f.off(entry)+int(headerSize):], s)

	id := block<<f.Profile.NameBlockShift | f.cursor/stride
	f.names[s] = id
	f.cursor += need
	return id
}

// NameCount returns how many distinct names were interned.
func (f *Fixture) NameCount() int { return len(f.names) }

// AddObject registers a UObject. classOf and outer may be nil. The slot
// index is assigned sequentially and written as InternalIndex.
func (f *Fixture) AddObject(name string, classOf, outer *Object) *Object {
	addr := f.alloc(objectSize)
	obj := &Object{
		Addr: addr,
		ID:   uint32(len(f.objects)),
		Name: name,
		fix:  f,
	}

	prof := f.Profile
	f.put32(addr+process.ProcessMemoryAddress(prof.InternalIndexOffset), obj.ID)
	f.put32(addr+process.ProcessMemoryAddress(prof.NameIDOffset), f.Name(name))
	if classOf != nil {
		f.put64(addr+process.ProcessMemoryAddress(prof.ClassOffset), uint64(classOf.Addr))
	}
	if outer != nil {
		f.put64(addr+process.ProcessMemoryAddress(prof.OuterOffset), uint64(outer.Addr))
	}

	f.objects = append(f.objects, obj)
	return obj
}

// SetSuper links the inheritance chain.
func (o *Object) SetSuper(parent *Object) {
	o.fix.put64(o.Addr+process.ProcessMemoryAddress(o.fix.Profile.SuperOffset), uint64(parent.Addr))
}

// SetClass retargets the class pointer, for self-classed roots like the
// Class object itself.
func (o *Object) SetClass(c *Object) {
	o.fix.put64(o.Addr+process.ProcessMemoryAddress(o.fix.Profile.ClassOffset), uint64(c.Addr))
}

// SetPropertiesSize records the instance size of a class.
func (o *Object) SetPropertiesSize(size int32) {
	o.fix.put32(o.Addr+process.ProcessMemoryAddress(o.fix.Profile.PropertiesSizeOffset), uint32(size))
}

// SetFuncPointer sets the native entry of a function object.
func (o *Object) SetFuncPointer(target process.ProcessMemoryAddress) {
	o.fix.put64(o.Addr+process.ProcessMemoryAddress(o.fix.Profile.FunctionExecOffset), uint64(target))
}

// classTag returns the per-type field meta-class node: an FFieldClass
// in FProperty mode, a class-like object in UField mode. Either way its
// name id sits at FieldClassNameOffset.
func (f *Fixture) classTag(typeName string) process.ProcessMemoryAddress {
	if addr, ok := f.classTags[typeName]; ok {
		return addr
	}
	addr := f.alloc(0x30)
	f.put32(addr+process.ProcessMemoryAddress(f.Profile.FieldClassNameOffset), f.Name(typeName))
	f.classTags[typeName] = addr
	return addr
}

// Prop configures one field added to an owner.
type Prop struct {
	Name        string
	TypeName    string
	Offset      uint32
	ElementSize uint32
	ArrayDim    uint32
	Flags       uint64
	SubType     process.ProcessMemoryAddress // PropertyClass / Struct / Inner / Key
	SubType2    process.ProcessMemoryAddress // Value (MapProperty)
	TypeObject  process.ProcessMemoryAddress // Enum slot
	BitMask     uint8
}

// AddField appends one field node to the owner's field list and returns
// its address.
func (o *Object) AddField(p Prop) process.ProcessMemoryAddress {
	f := o.fix
	prof := f.Profile
	if p.ArrayDim == 0 {
		p.ArrayDim = 1
	}

	field := f.alloc(0x90)
	f.put64(field+process.ProcessMemoryAddress(prof.FieldClassOffset), uint64(f.classTag(p.TypeName)))
	f.put32(field+process.ProcessMemoryAddress(prof.FieldNameOffset), f.Name(p.Name))
	// Flags go in before the 32-bit fields: in the UE5 profile the 64-bit
	// flags slot at 0x40 spans the offset at 0x44.
	f.put64(field+process.ProcessMemoryAddress(prof.PropFlagsOffset), p.Flags)
	f.put32(field+process.ProcessMemoryAddress(prof.PropOffsetInternal), p.Offset)
	f.put32(field+process.ProcessMemoryAddress(prof.PropElementSizeOffset), p.ElementSize)
	f.put32(field+process.ProcessMemoryAddress(prof.PropArrayDimOffset), p.ArrayDim)
	if p.SubType != 0 {
		f.put64(field+process.ProcessMemoryAddress(prof.PropSubTypeOffset), uint64(p.SubType))
	}
	if p.SubType2 != 0 {
		f.put64(field+process.ProcessMemoryAddress(prof.PropSubTypeOffset2), uint64(p.SubType2))
	}
	if p.TypeObject != 0 {
		f.put64(field+process.ProcessMemoryAddress(prof.PropTypeObjectOffset), uint64(p.TypeObject))
	}
	if p.BitMask != 0 {
		f.put8(field+process.ProcessMemoryAddress(prof.BoolFieldMaskOffset), p.BitMask)
	}

	head := prof.ChildrenOffset
	if prof.FieldsAreFProperty {
		head = prof.ChildrenPropsOffset
	}
	if o.fieldTail == 0 {
		f.put64(o.Addr+process.ProcessMemoryAddress(head), uint64(field))
	} else {
		f.put64(o.fieldTail+process.ProcessMemoryAddress(prof.FieldNextOffset), uint64(field))
	}
	o.fieldTail = field
	return field
}

// InnerField allocates a standalone property node used as a container
// inner descriptor.
func (f *Fixture) InnerField(typeName string, subType process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	field := f.alloc(0x90)
	f.put64(field+process.ProcessMemoryAddress(f.Profile.FieldClassOffset), uint64(f.classTag(typeName)))
	if subType != 0 {
		f.put64(field+process.ProcessMemoryAddress(f.Profile.PropSubTypeOffset), uint64(subType))
	}
	return field
}

// SetEnumValues writes the (name, value) pair array of an enum object.
func (o *Object) SetEnumValues(pairs map[string]int64, order []string) {
	f := o.fix
	prof := f.Profile

	list := f.alloc(len(order) * int(prof.EnumPairStride))
	for i, name := range order {
		pair := list + process.ProcessMemoryAddress(uint64(i)*prof.EnumPairStride)
		f.put32(pair, f.Name(name))
		f.put64(pair+process.ProcessMemoryAddress(prof.EnumPairValueOffset), uint64(pairs[name]))
	}
	f.put64(o.Addr+process.ProcessMemoryAddress(prof.EnumNamesArrayOffset), uint64(list))
	f.put32(o.Addr+process.ProcessMemoryAddress(prof.EnumNamesCountOffset), uint32(len(order)))
}

// Finalize writes the registry header and chunk table over the objects
// registered so far.
func (f *Fixture) Finalize() {
	prof := f.Profile
	perChunk := int(prof.ElementsPerChunk)
	numChunks := (len(f.objects) + perChunk - 1) / perChunk
	if numChunks == 0 {
		numChunks = 1
	}

	f.guobjBase = f.alloc(0x30)
	chunkTable := f.alloc(numChunks * 8)
	f.put64(f.guobjBase+process.ProcessMemoryAddress(prof.ObjectsOffset), uint64(chunkTable))
	f.put32(f.guobjBase+process.ProcessMemoryAddress(prof.MaxElementsOffset), uint32(numChunks*perChunk))
	f.put32(f.guobjBase+process.ProcessMemoryAddress(prof.NumElementsOffset), uint32(len(f.objects)))
	f.put32(f.guobjBase+process.ProcessMemoryAddress(prof.MaxChunksOffset), uint32(numChunks))
	f.put32(f.guobjBase+process.ProcessMemoryAddress(prof.NumChunksOffset), uint32(numChunks))

	for c := 0; c < numChunks; c++ {
		chunk := f.alloc(perChunk * int(prof.UObjectItemSize))
		f.put64(chunkTable+process.ProcessMemoryAddress(8*c), uint64(chunk))
		for e := 0; e < perChunk; e++ {
			idx := c*perChunk + e
			if idx >= len(f.objects) {
				break
			}
			slot := chunk + process.ProcessMemoryAddress(e*int(prof.UObjectItemSize)+int(prof.UObjectItemObject))
			f.put64(slot, uint64(f.objects[idx].Addr))
		}
	}

	// Pool cursor fields describe the active block.
	f.put32(f.poolBase+process.ProcessMemoryAddress(prof.NameCurrentBlockOffset), uint32(len(f.blocks)-1))
	f.put32(f.poolBase+process.ProcessMemoryAddress(prof.NameCurrentCursorOffset), f.cursor)
}

// MapSegment adds raw instance memory at an arbitrary address, for
// live-value decoding tests.
func (f *Fixture) MapSegment(base process.ProcessMemoryAddress, data []byte) {
	f.extraSegments[base] = data
}

// SetModuleBody installs the main module's bytes, used by discovery
// tests to plant signatures.
func (f *Fixture) SetModuleBody(data []byte) {
	f.moduleData = data
}

// Image freezes the fixture into a fake process.
func (f *Fixture) Image() *process_blob.ProcessImage {
	img := process_blob.NewProcessImage(4242)

	moduleData := f.moduleData
	if moduleData == nil {
		moduleData = make([]byte, 0x1000)
	}
	img.AddModule(f.moduleName, f.moduleBase, uint64(len(moduleData)))
	img.AddSegment(f.moduleBase, moduleData)

	heap := make([]byte, len(f.heap))
	copy(heap, f.heap)
	img.AddSegment(heapBase, heap)

	for base, data := range f.extraSegments {
		img.AddSegment(base, data)
	}
	return img
}

// MustObject panics when idx is out of range; convenience for tests.
func (f *Fixture) MustObject(idx int) *Object {
	if idx < 0 || idx >= len(f.objects) {
		panic(fmt.Sprintf("uefixture: no object %d", idx))
	}
	return f.objects[idx]
}
