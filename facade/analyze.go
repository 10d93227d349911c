package facade

import (
	"fmt"
	"strings"

	"uedump/hexdump"
	"uedump/process"
)

// RawObjectInfo is the unfiltered field dump of one object header,
// shown by the analyzer page. Pointer fields render as 0x-hex.
type RawObjectInfo struct {
	ObjectID int32  `json:"object_id"`
	TypeName string `json:"type_name"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Address  string `json:"address"`

	Offset      string `json:"offset"`
	ClassPtr    string `json:"class_ptr"`
	OuterPtr    string `json:"outer_ptr"`
	SuperPtr    string `json:"super_ptr"`
	PropSize    string `json:"prop_size"`
	Prop0       string `json:"prop_0"`
	Prop8       string `json:"prop_8"`
	FunctionPtr string `json:"function_ptr"`
	MemberPtr   string `json:"member_ptr"`
	MemberSize  string `json:"member_size"`
	BitMask     string `json:"bit_mask"`

	HeaderDump string `json:"header_dump"`
}

func ptrFmt(v process.ProcessMemoryAddress) string {
	if v == 0 {
		return "0x0"
	}
	return v.Hex()
}

// AnalyzeObject reads the raw header of an arbitrary address through
// the layout profile, without requiring the address to be indexed.
func (c *Core) AnalyzeObject(addressHex string) (*RawObjectInfo, error) {
	s, err := c.Session()
	if err != nil {
		return nil, err
	}
	addr, err := parseHexAddress(addressHex)
	if err != nil {
		return nil, err
	}

	resolve := func(id uint32) string {
		if table, ok := s.Store.Names.Get(); ok {
			return table.Resolve(id)
		}
		if pool, err := s.pool(); err == nil {
			if name, err := pool.Resolve(id); err == nil {
				return name
			}
		}
		return "None"
	}

	prof := s.Profile
	at := func(off uint64) process.ProcessMemoryAddress {
		return addr + process.ProcessMemoryAddress(off)
	}

	id, _ := s.Proc.ReadINT32(at(prof.InternalIndexOffset))
	classPtr := s.Proc.ReadPOINTER2(at(prof.ClassOffset))
	outerPtr := s.Proc.ReadPOINTER2(at(prof.OuterOffset))
	nameID, _ := s.Proc.ReadUINT32(at(prof.NameIDOffset))

	name := resolve(nameID)
	typeName := "None"
	if classPtr != 0 {
		if classNameID, err := s.Proc.ReadUINT32(classPtr + process.ProcessMemoryAddress(prof.NameIDOffset)); err == nil {
			typeName = resolve(classNameID)
		}
	}

	// Outer chain, depth-capped.
	path := []string{name}
	outer := outerPtr
	for depth := 0; outer != 0 && depth < 10; depth++ {
		outerNameID, err := s.Proc.ReadUINT32(outer + process.ProcessMemoryAddress(prof.NameIDOffset))
		if err != nil {
			break
		}
		if n := resolve(outerNameID); n != "" && n != "None" {
			path = append([]string{n}, path...)
		}
		outer = s.Proc.ReadPOINTER2(outer + process.ProcessMemoryAddress(prof.OuterOffset))
	}

	superPtr := s.Proc.ReadPOINTER2(at(prof.SuperOffset))
	propSize, _ := s.Proc.ReadINT32(at(prof.PropertiesSizeOffset))
	offsetVal, _ := s.Proc.ReadINT32(at(prof.PropOffsetInternal))
	prop0 := s.Proc.ReadPOINTER2(at(prof.PropSubTypeOffset))
	prop8 := s.Proc.ReadPOINTER2(at(prof.PropSubTypeOffset2))
	functionPtr := s.Proc.ReadPOINTER2(at(prof.FunctionExecOffset))
	memberPtr := s.Proc.ReadPOINTER2(at(prof.ChildrenPropsOffset))
	memberSize, _ := s.Proc.ReadINT32(at(prof.PropertiesSizeOffset))
	bitMask, _ := s.Proc.ReadUINT8(at(prof.BoolFieldMaskOffset))

	info := &RawObjectInfo{
		ObjectID:    id,
		TypeName:    typeName,
		Name:        name,
		FullName:    strings.Join(path, "."),
		Address:     ptrFmt(addr),
		Offset:      fmt.Sprintf("0x%X", offsetVal),
		ClassPtr:    ptrFmt(classPtr),
		OuterPtr:    ptrFmt(outerPtr),
		SuperPtr:    ptrFmt(superPtr),
		PropSize:    fmt.Sprintf("0x%X (%d)", propSize, propSize),
		Prop0:       ptrFmt(prop0),
		Prop8:       ptrFmt(prop8),
		FunctionPtr: ptrFmt(functionPtr),
		MemberPtr:   ptrFmt(memberPtr),
		MemberSize:  fmt.Sprintf("0x%X (%d)", memberSize, memberSize),
		BitMask:     fmt.Sprintf("0x%02X", bitMask),
	}

	// The raw header bytes help when the profile offsets look wrong.
	if data, err := s.Proc.ReadMemory(addr, 0x40); err == nil {
		info.HeaderDump = hexdump.Dump(data, hexdump.Options{BaseAddress: uint64(addr)})
	}

	return info, nil
}
