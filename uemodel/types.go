// Package uemodel builds the enriched reflection model (properties,
// enums, function signatures, inheritance) for the class-like objects
// of the registry.
package uemodel

import (
	"uedump/process"
)

// PropertyInfo is one reflected field on a class or script struct.
type PropertyInfo struct {
	Name         string                       `json:"property_name"`
	NameID       uint32                       `json:"-"`
	PropertyType string                       `json:"property_type"`
	Offset       uint32                       `json:"offset"`
	ElementSize  uint32                       `json:"element_size"`
	ArrayDim     uint32                       `json:"array_dim"`
	SubType      string                       `json:"sub_type"`
	SubTypeAddr  process.ProcessMemoryAddress `json:"sub_type_address"`
	BitMask      uint8                        `json:"bit_mask"` // BoolProperty only; 0 if not a bitfield
}

// EnumValueEntry is one enumerator, ordered as declared.
type EnumValueEntry struct {
	Name   string `json:"name"`
	NameID uint32 `json:"-"`
	Value  int64  `json:"value"`
}

// FunctionParam is one parameter of a reflected function.
type FunctionParam struct {
	Name        string                       `json:"param_name"`
	TypeName    string                       `json:"param_type"`
	TypeAddress process.ProcessMemoryAddress `json:"type_address"`
	Flags       uint64                       `json:"flags"`
}

// FunctionInfo describes a reflected function: signature plus the
// native entry point relative to the module base.
type FunctionInfo struct {
	OwnerObjectID uint32                       `json:"owner_object_id"`
	Owner         string                       `json:"function_owner"`
	OwnerAddress  process.ProcessMemoryAddress `json:"function_owner_address"`
	ReturnType    string                       `json:"function_return_type"`
	ReturnAddress process.ProcessMemoryAddress `json:"function_return_address"`
	Params        []FunctionParam              `json:"function_params"`
	ExecOffset    uint64                       `json:"exec_offset"` // Func pointer minus module base
}

// InheritanceItem is one class in a Super chain.
type InheritanceItem struct {
	Name    string                       `json:"name"`
	Address process.ProcessMemoryAddress `json:"address"`
}

// DetailedObjectInfo is the full model of one object, shaped by its
// kind: classes and structs carry properties, enums carry values,
// functions carry a signature.
type DetailedObjectInfo struct {
	Address        process.ProcessMemoryAddress `json:"address"`
	ID             uint32                       `json:"object_id"`
	Name           string                       `json:"name"`
	FullName       string                       `json:"full_name"`
	TypeName       string                       `json:"type_name"`
	PropertiesSize int32                        `json:"prop_size"`
	Inheritance    []InheritanceItem            `json:"inheritance"`
	Properties     []PropertyInfo               `json:"properties"`
	EnumValues     []EnumValueEntry             `json:"enum_values"`
	Function       *FunctionInfo                `json:"function,omitempty"`
}
