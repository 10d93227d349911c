package uemodel

import (
	"strings"

	"uedump/process"
	"uedump/storage"
	"uedump/uelayout"
)

// Builder reads the reflection structures of the live target, resolving
// every cross-reference through the object table and every name id
// through the name table.
type Builder struct {
	proc       process.Process
	profile    uelayout.Profile
	names      *storage.NameTable
	objects    *storage.ObjectTable
	moduleBase process.ProcessMemoryAddress
}

func NewBuilder(proc process.Process, profile uelayout.Profile, names *storage.NameTable, objects *storage.ObjectTable, moduleBase process.ProcessMemoryAddress) *Builder {
	return &Builder{
		proc:       proc,
		profile:    profile,
		names:      names,
		objects:    objects,
		moduleBase: moduleBase,
	}
}

const (
	maxSuperDepth = 64
	maxFieldWalk  = 2000
)

func (b *Builder) addr(base process.ProcessMemoryAddress, off uint64) process.ProcessMemoryAddress {
	return base + process.ProcessMemoryAddress(off)
}

// objectName resolves the display name of any object address: through
// the table when indexed, through one remote name-id read otherwise.
func (b *Builder) objectName(addr process.ProcessMemoryAddress) string {
	if addr == 0 {
		return ""
	}
	if rec, ok := b.objects.ByAddress(addr); ok {
		return rec.Name
	}
	id, err := b.proc.ReadUINT32(b.addr(addr, b.profile.NameIDOffset))
	if err != nil {
		return ""
	}
	return b.names.Resolve(id)
}

// Inheritance walks the Super chain from structAddr up to the root.
// The chain of any well-formed target is acyclic; the depth cap guards
// against torn reads.
func (b *Builder) Inheritance(structAddr process.ProcessMemoryAddress) []InheritanceItem {
	var chain []InheritanceItem
	super := b.proc.ReadPOINTER2(b.addr(structAddr, b.profile.SuperOffset))
	for depth := 0; super != 0 && depth < maxSuperDepth; depth++ {
		name := b.objectName(super)
		if name == "" {
			break
		}
		chain = append(chain, InheritanceItem{Name: name, Address: super})
		super = b.proc.ReadPOINTER2(b.addr(super, b.profile.SuperOffset))
	}
	return chain
}

// fieldTypeName reads the meta-class tag of a field: in FField mode the
// class pointer leads to an FFieldClass whose name id sits at the class
// name offset; in UField mode it is a plain UObject class.
func (b *Builder) fieldTypeName(fieldAddr process.ProcessMemoryAddress) string {
	classPtr := b.proc.ReadPOINTER2(b.addr(fieldAddr, b.profile.FieldClassOffset))
	if classPtr == 0 {
		return ""
	}
	id, err := b.proc.ReadUINT32(b.addr(classPtr, b.profile.FieldClassNameOffset))
	if err != nil {
		return ""
	}
	return b.names.Resolve(id)
}

func (b *Builder) fieldName(fieldAddr process.ProcessMemoryAddress) (string, uint32) {
	id, err := b.proc.ReadUINT32(b.addr(fieldAddr, b.profile.FieldNameOffset))
	if err != nil {
		return "", 0
	}
	return b.names.Resolve(id), id
}

// fieldsHead returns the head of the field linked list for the active
// layout generation.
func (b *Builder) fieldsHead(structAddr process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	if b.profile.FieldsAreFProperty {
		return b.proc.ReadPOINTER2(b.addr(structAddr, b.profile.ChildrenPropsOffset))
	}
	return b.proc.ReadPOINTER2(b.addr(structAddr, b.profile.ChildrenOffset))
}

// Properties walks the field list of a class or script struct and
// decodes every reflected property.
func (b *Builder) Properties(structAddr process.ProcessMemoryAddress) []PropertyInfo {
	var props []PropertyInfo

	field := b.fieldsHead(structAddr)
	for safety := 0; field != 0 && safety < maxFieldWalk; safety++ {
		typeName := b.fieldTypeName(field)
		name, nameID := b.fieldName(field)

		if name != "" && strings.Contains(typeName, "Property") {
			props = append(props, b.property(field, name, nameID, typeName))
		}

		field = b.proc.ReadPOINTER2(b.addr(field, b.profile.FieldNextOffset))
	}
	return props
}

func (b *Builder) property(field process.ProcessMemoryAddress, name string, nameID uint32, typeName string) PropertyInfo {
	info := PropertyInfo{
		Name:         name,
		NameID:       nameID,
		PropertyType: typeName,
	}
	info.Offset, _ = b.proc.ReadUINT32(b.addr(field, b.profile.PropOffsetInternal))
	info.ElementSize, _ = b.proc.ReadUINT32(b.addr(field, b.profile.PropElementSizeOffset))
	info.ArrayDim, _ = b.proc.ReadUINT32(b.addr(field, b.profile.PropArrayDimOffset))
	info.SubType, info.SubTypeAddr = b.subType(field, typeName)

	if strings.Contains(typeName, "BoolProperty") {
		info.BitMask, _ = b.proc.ReadUINT8(b.addr(field, b.profile.BoolFieldMaskOffset))
		if info.BitMask == 0xFF {
			// Whole-byte bools are not bitfields.
			info.BitMask = 0
		}
	}
	return info
}

// subType resolves the typed cross-reference of a property: element
// class, struct type, container inner, enum.
func (b *Builder) subType(field process.ProcessMemoryAddress, typeName string) (string, process.ProcessMemoryAddress) {
	switch {
	case strings.Contains(typeName, "ObjectProperty"),
		strings.Contains(typeName, "ClassProperty"),
		strings.Contains(typeName, "InterfaceProperty"),
		strings.Contains(typeName, "StructProperty"):
		target := b.proc.ReadPOINTER2(b.addr(field, b.profile.PropSubTypeOffset))
		if name := b.objectName(target); name != "" {
			return name, target
		}
		return "", 0

	case strings.Contains(typeName, "ArrayProperty"), strings.Contains(typeName, "SetProperty"):
		inner := b.proc.ReadPOINTER2(b.addr(field, b.profile.PropSubTypeOffset))
		return b.innerDescriptor(inner)

	case strings.Contains(typeName, "MapProperty"):
		key := b.proc.ReadPOINTER2(b.addr(field, b.profile.PropSubTypeOffset))
		value := b.proc.ReadPOINTER2(b.addr(field, b.profile.PropSubTypeOffset2))
		keyName, _ := b.innerDescriptor(key)
		valueName, valueAddr := b.innerDescriptor(value)
		if keyName == "" && valueName == "" {
			return "", 0
		}
		return keyName + ", " + valueName, valueAddr

	case strings.Contains(typeName, "ByteProperty"), strings.Contains(typeName, "EnumProperty"):
		enum := b.proc.ReadPOINTER2(b.addr(field, b.profile.PropTypeObjectOffset))
		if name := b.objectName(enum); name != "" {
			return name, enum
		}
		return "", 0
	}
	return "", 0
}

// innerDescriptor describes a container element property: the bare type
// for plain values, the pointed-to class for object-like elements.
func (b *Builder) innerDescriptor(inner process.ProcessMemoryAddress) (string, process.ProcessMemoryAddress) {
	if inner == 0 {
		return "", 0
	}
	typeName := b.fieldTypeName(inner)
	if !strings.Contains(typeName, "Property") {
		return "", 0
	}
	short := strings.ReplaceAll(typeName, "Property", "")
	if strings.Contains(typeName, "Object") || strings.Contains(typeName, "Class") || strings.Contains(typeName, "Struct") {
		target := b.proc.ReadPOINTER2(b.addr(inner, b.profile.PropSubTypeOffset))
		if name := b.objectName(target); name != "" {
			return name, target
		}
	}
	return short, inner
}

// EnumValues reads the (name, value) pairs of an enum, ordered as
// declared.
func (b *Builder) EnumValues(enumAddr process.ProcessMemoryAddress) []EnumValueEntry {
	listPtr := b.proc.ReadPOINTER2(b.addr(enumAddr, b.profile.EnumNamesArrayOffset))
	count, err := b.proc.ReadINT32(b.addr(enumAddr, b.profile.EnumNamesCountOffset))
	if err != nil || listPtr == 0 || count <= 0 || count > 10000 {
		return nil
	}

	entries := make([]EnumValueEntry, 0, count)
	for i := 0; i < int(count); i++ {
		pair := listPtr + process.ProcessMemoryAddress(uint64(i)*b.profile.EnumPairStride)
		nameID, err := b.proc.ReadUINT32(pair)
		if err != nil {
			break
		}
		value, err := b.proc.ReadINT64(pair + process.ProcessMemoryAddress(b.profile.EnumPairValueOffset))
		if err != nil {
			break
		}
		name := b.names.Resolve(nameID)
		if name == "" {
			continue
		}
		entries = append(entries, EnumValueEntry{Name: name, NameID: nameID, Value: value})
	}
	return entries
}

// Function reads a function signature. Parameters are the fields with
// the Parm flag; the return parameter carries the Return flag, with the
// legacy "ReturnValue" name as fallback.
func (b *Builder) Function(rec *storage.ObjectRecord) *FunctionInfo {
	info := &FunctionInfo{OwnerObjectID: rec.ID}

	if owner, ok := b.objects.ByAddress(rec.OuterPtr); ok {
		info.Owner = owner.Name
		info.OwnerAddress = owner.Address
	}

	if execPtr := b.proc.ReadPOINTER2(b.addr(rec.Address, b.profile.FunctionExecOffset)); execPtr != 0 && execPtr > b.moduleBase {
		info.ExecOffset = uint64(execPtr - b.moduleBase)
	}

	field := b.fieldsHead(rec.Address)
	for safety := 0; field != 0 && safety < maxFieldWalk; safety++ {
		typeName := b.fieldTypeName(field)
		name, _ := b.fieldName(field)
		flags, _ := b.proc.ReadUINT64(b.addr(field, b.profile.PropFlagsOffset))

		if name != "" && strings.Contains(typeName, "Property") && flags&uelayout.PropFlagParm != 0 {
			_, typeAddr := b.subType(field, typeName)
			if flags&uelayout.PropFlagReturnParm != 0 || name == "ReturnValue" {
				info.ReturnType = typeName
				info.ReturnAddress = typeAddr
			} else {
				info.Params = append(info.Params, FunctionParam{
					Name:        name,
					TypeName:    typeName,
					TypeAddress: typeAddr,
					Flags:       flags,
				})
			}
		}

		field = b.proc.ReadPOINTER2(b.addr(field, b.profile.FieldNextOffset))
	}
	return info
}

// Details assembles the full model for one record, shaped by its kind.
func (b *Builder) Details(rec *storage.ObjectRecord) *DetailedObjectInfo {
	info := &DetailedObjectInfo{
		Address:  rec.Address,
		ID:       rec.ID,
		Name:     rec.Name,
		FullName: rec.FullName,
		TypeName: rec.TypeName,
	}

	switch {
	case rec.IsClass() || rec.IsStruct():
		info.Inheritance = b.Inheritance(rec.Address)
		info.Properties = b.Properties(rec.Address)
		info.PropertiesSize, _ = b.proc.ReadINT32(b.addr(rec.Address, b.profile.PropertiesSizeOffset))
	case rec.IsEnum():
		info.EnumValues = b.EnumValues(rec.Address)
	case rec.IsFunction():
		info.Function = b.Function(rec)
	}
	return info
}
