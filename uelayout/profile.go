// Package uelayout maps a UE major version to the concrete memory
// layout offsets the parsers walk.
package uelayout

import "fmt"

// UnsupportedVersion is returned when the target's file version cannot be
// obtained: an empty version string, or a platform with no file-version
// source. ProfileFor itself never refuses a major.
type UnsupportedVersion struct {
	Version string
}

func (e *UnsupportedVersion) Error() string {
	return fmt.Sprintf("unsupported UE version %q", e.Version)
}

// Profile is the layout the target's generation of the engine uses.
// Selected once per attach from the UE major version.
type Profile struct {
	Major int

	// NamePool
	NameBlockStride         uint32 // bytes per name-offset unit inside a block
	NameBlockShift          uint32 // block index position inside a composite id
	NameEntryHeaderSize     uint32
	NameHeaderEncodesLength bool
	NameBlocksOffset        uint64 // Blocks[] relative to the pool base
	NameCurrentBlockOffset  uint64
	NameCurrentCursorOffset uint64
	NameBlockSize           uint32 // bytes per block slab

	// GUObjectArray header
	ObjectsOffset     uint64 // chunk pointer table
	MaxElementsOffset uint64
	NumElementsOffset uint64
	MaxChunksOffset   uint64
	NumChunksOffset   uint64
	ElementsPerChunk  uint32
	UObjectItemSize   uint32
	UObjectItemObject uint64 // Object slot inside an FUObjectItem

	// UObject header
	ObjectFlagsOffset   uint64
	InternalIndexOffset uint64
	ClassOffset         uint64
	NameIDOffset        uint64
	OuterOffset         uint64

	// UStruct
	SuperOffset          uint64
	ChildrenOffset       uint64 // UField linked list head
	ChildrenPropsOffset  uint64 // FField linked list head (4.25+)
	PropertiesSizeOffset uint64

	// Fields. FieldsAreFProperty selects the walker: the UField list
	// (class pointer is a UObject) or the FField list (class pointer is
	// an FFieldClass whose name id sits at FieldClassNameOffset).
	FieldsAreFProperty   bool
	FieldNextOffset      uint64
	FieldNameOffset      uint64
	FieldClassOffset     uint64
	FieldClassNameOffset uint64

	// FProperty / UProperty
	PropArrayDimOffset    uint64
	PropElementSizeOffset uint64
	PropFlagsOffset       uint64
	PropOffsetInternal    uint64
	PropSubTypeOffset     uint64 // PropertyClass / Struct / Inner / Key
	PropSubTypeOffset2    uint64 // Value (MapProperty)
	PropTypeObjectOffset  uint64 // Enum pointer slot
	BoolFieldMaskOffset   uint64

	// UEnum
	EnumNamesArrayOffset uint64
	EnumNamesCountOffset uint64
	EnumPairStride       uint64
	EnumPairValueOffset  uint64

	// UFunction
	FunctionExecOffset uint64 // native Func pointer
}

// Property flag bits used to classify function fields.
const (
	PropFlagParm       = 0x80
	PropFlagOutParm    = 0x100
	PropFlagReturnParm = 0x400
)

var profileUE4 = Profile{
	Major: 4,

	NameBlockStride:         2,
	NameBlockShift:          16,
	NameEntryHeaderSize:     2,
	NameHeaderEncodesLength: true,
	NameBlocksOffset:        0x10,
	NameCurrentBlockOffset:  0x8,
	NameCurrentCursorOffset: 0xC,
	NameBlockSize:           0x20000,

	ObjectsOffset:     0x10,
	MaxElementsOffset: 0x18,
	NumElementsOffset: 0x1C,
	MaxChunksOffset:   0x20,
	NumChunksOffset:   0x24,
	ElementsPerChunk:  0x10000,
	UObjectItemSize:   0x18,
	UObjectItemObject: 0x0,

	ObjectFlagsOffset:   0x8,
	InternalIndexOffset: 0xC,
	ClassOffset:         0x10,
	NameIDOffset:        0x18,
	OuterOffset:         0x20,

	SuperOffset:          0x30,
	ChildrenOffset:       0x38,
	ChildrenPropsOffset:  0x38,
	PropertiesSizeOffset: 0x40,

	FieldsAreFProperty:   false,
	FieldNextOffset:      0x28,
	FieldNameOffset:      0x18,
	FieldClassOffset:     0x10,
	FieldClassNameOffset: 0x18,

	PropArrayDimOffset:    0x30,
	PropElementSizeOffset: 0x34,
	PropFlagsOffset:       0x38,
	PropOffsetInternal:    0x44,
	PropSubTypeOffset:     0x70,
	PropSubTypeOffset2:    0x78,
	PropTypeObjectOffset:  0x70,
	BoolFieldMaskOffset:   0x73,

	EnumNamesArrayOffset: 0x40,
	EnumNamesCountOffset: 0x48,
	EnumPairStride:       0x10,
	EnumPairValueOffset:  0x8,

	FunctionExecOffset: 0xB0,
}

var profileUE5 = Profile{
	Major: 5,

	NameBlockStride:         2,
	NameBlockShift:          16,
	NameEntryHeaderSize:     2,
	NameHeaderEncodesLength: true,
	NameBlocksOffset:        0x10,
	NameCurrentBlockOffset:  0x8,
	NameCurrentCursorOffset: 0xC,
	NameBlockSize:           0x20000,

	ObjectsOffset:     0x10,
	MaxElementsOffset: 0x18,
	NumElementsOffset: 0x1C,
	MaxChunksOffset:   0x20,
	NumChunksOffset:   0x24,
	ElementsPerChunk:  0x10000,
	UObjectItemSize:   0x18,
	UObjectItemObject: 0x0,

	ObjectFlagsOffset:   0x8,
	InternalIndexOffset: 0xC,
	ClassOffset:         0x10,
	NameIDOffset:        0x18,
	OuterOffset:         0x20,

	SuperOffset:          0x40,
	ChildrenOffset:       0x48,
	ChildrenPropsOffset:  0x50,
	PropertiesSizeOffset: 0x58,

	FieldsAreFProperty:   true,
	FieldNextOffset:      0x18,
	FieldNameOffset:      0x20,
	FieldClassOffset:     0x8,
	FieldClassNameOffset: 0x0,

	PropArrayDimOffset:    0x38,
	PropElementSizeOffset: 0x3C,
	PropFlagsOffset:       0x40,
	PropOffsetInternal:    0x44,
	PropSubTypeOffset:     0x78,
	PropSubTypeOffset2:    0x80,
	PropTypeObjectOffset:  0x70,
	BoolFieldMaskOffset:   0x72,

	EnumNamesArrayOffset: 0x40,
	EnumNamesCountOffset: 0x48,
	EnumPairStride:       0x10,
	EnumPairValueOffset:  0x8,

	FunctionExecOffset: 0xD8,
}

// ProfileFor selects the layout for a UE major version. Unknown majors
// fall back to the nearest known profile with degraded=true; the caller
// may surface the flag or refuse.
//
// The file-version signal carries no reliable minor, so the field-walk
// mode is gated on the major alone: 4 walks the UField list, 5 the
// FField list. ByteProperty resolves its enum through the property's
// Enum slot in both profiles.
func ProfileFor(major int) (Profile, bool) {
	switch {
	case major == 4:
		return profileUE4, false
	case major == 5:
		return profileUE5, false
	case major < 4:
		return profileUE4, true
	default:
		return profileUE5, true
	}
}
