package query

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"uedump/pod"
	"uedump/process"
	"uedump/uemodel"
)

// InstancePropertySample is one property of a class resolved against a
// live instance address.
type InstancePropertySample struct {
	PropertyName          string `json:"property_name"`
	PropertyType          string `json:"property_type"`
	SubType               string `json:"sub_type"`
	Offset                string `json:"offset"` // hex without 0x; Bool bitfields append ":bit"
	MemoryAddress         string `json:"memory_address"`
	LiveValue             string `json:"live_value"`
	IsObject              bool   `json:"is_object"`
	ObjectInstanceAddress string `json:"object_instance_address,omitempty"`
	ObjectClassAddress    string `json:"object_class_address,omitempty"`
}

// InstanceDetails reads every property of the class at classAddr off
// the live instance at instanceAddr. A failed sub-read aborts the whole
// query; the snapshot is untouched either way.
func (e *Engine) InstanceDetails(instanceAddr, classAddr process.ProcessMemoryAddress) ([]InstancePropertySample, error) {
	if _, ok := e.objects.ByAddress(classAddr); !ok {
		return nil, &NotFound{What: "class", Key: classAddr.Hex()}
	}

	props := e.builder.Properties(classAddr)
	samples := make([]InstancePropertySample, 0, len(props))
	for i := range props {
		sample, err := e.resolveProperty(&props[i], instanceAddr)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

func offsetString(prop *uemodel.PropertyInfo) string {
	if strings.Contains(prop.PropertyType, "BoolProperty") && prop.BitMask != 0 {
		bit := 0
		for mask := prop.BitMask; mask&1 == 0 && bit < 8; mask >>= 1 {
			bit++
		}
		return fmt.Sprintf("%X:%d", prop.Offset, bit)
	}
	return fmt.Sprintf("%X", prop.Offset)
}

// resolveProperty decodes one property value at its computed offset.
func (e *Engine) resolveProperty(prop *uemodel.PropertyInfo, instanceAddr process.ProcessMemoryAddress) (InstancePropertySample, error) {
	memAddr := instanceAddr + process.ProcessMemoryAddress(prop.Offset)

	sample := InstancePropertySample{
		PropertyName:  prop.Name,
		PropertyType:  prop.PropertyType,
		SubType:       prop.SubType,
		Offset:        offsetString(prop),
		MemoryAddress: memAddr.Hex(),
	}

	t := prop.PropertyType
	var err error
	switch {
	case strings.Contains(t, "BoolProperty"):
		sample.LiveValue, err = e.decodeBool(memAddr, prop.BitMask)

	case strings.Contains(t, "NameProperty"):
		sample.LiveValue, err = e.decodeFName(memAddr)

	case strings.Contains(t, "StrProperty"):
		sample.LiveValue, err = e.decodeFString(memAddr)

	case strings.Contains(t, "ObjectProperty"), strings.Contains(t, "ClassProperty"),
		strings.Contains(t, "InterfaceProperty"), strings.Contains(t, "WeakObjectProperty"),
		strings.Contains(t, "SoftObjectProperty"), strings.Contains(t, "SoftClassProperty"):
		err = e.decodeObject(memAddr, &sample)

	case strings.Contains(t, "ArrayProperty"):
		err = e.decodeArray(memAddr, prop, &sample)

	case strings.Contains(t, "MapProperty"), strings.Contains(t, "SetProperty"):
		err = e.decodeSet(memAddr, prop, &sample)

	case strings.Contains(t, "StructProperty"):
		// Recurse through a synthetic sample: the caller expands it with
		// the struct type as the class.
		sample.IsObject = true
		sample.ObjectInstanceAddress = memAddr.Hex()
		sample.ObjectClassAddress = prop.SubTypeAddr.Hex()
		sample.LiveValue = "Struct"

	default:
		sample.LiveValue, err = e.decodeNumeric(memAddr, t, prop.ElementSize)
	}

	if err != nil {
		return sample, process.FaultField(memAddr, process.ProcessMemorySize(prop.ElementSize), prop.Name, err)
	}
	return sample, nil
}

func (e *Engine) decodeBool(addr process.ProcessMemoryAddress, bitMask uint8) (string, error) {
	b, err := e.proc.ReadUINT8(addr)
	if err != nil {
		return "", err
	}
	set := b != 0
	if bitMask != 0 {
		set = b&bitMask != 0
	}
	if set {
		return "True", nil
	}
	return "False", nil
}

func (e *Engine) decodeFName(addr process.ProcessMemoryAddress) (string, error) {
	id, err := e.proc.ReadUINT32(addr)
	if err != nil {
		return "", err
	}
	return e.names.Resolve(id), nil
}

func (e *Engine) decodeFString(addr process.ProcessMemoryAddress) (string, error) {
	header, err := pod.ReadT[pod.FStringHeader](e.proc, addr)
	if err != nil {
		return "", err
	}
	if header.Data == 0 || header.Count <= 0 || header.Count > 0x10000 {
		return "", nil
	}
	units, err := pod.ReadSliceT[uint16](e.proc, process.ProcessMemoryAddress(header.Data), int(header.Count))
	if err != nil {
		return "", err
	}
	// Count includes the terminator.
	for len(units) > 0 && units[len(units)-1] == 0 {
		units = units[:len(units)-1]
	}
	return string(utf16.Decode(units)), nil
}

func (e *Engine) decodeObject(addr process.ProcessMemoryAddress, sample *InstancePropertySample) error {
	ptr, err := e.proc.ReadPOINTER(addr)
	if err != nil {
		return err
	}
	sample.LiveValue = ptr.Hex()
	if ptr == 0 {
		return nil
	}
	if rec, ok := e.objects.ByAddress(ptr); ok {
		sample.IsObject = true
		sample.ObjectInstanceAddress = ptr.Hex()
		sample.ObjectClassAddress = rec.ClassPtr.Hex()
		sample.LiveValue = rec.Name
	}
	return nil
}

func (e *Engine) decodeArray(addr process.ProcessMemoryAddress, prop *uemodel.PropertyInfo, sample *InstancePropertySample) error {
	header, err := pod.ReadT[pod.TArrayHeader](e.proc, addr)
	if err != nil {
		return err
	}
	if header.Data == 0 || header.Count < 0 || header.Count > header.Max || header.Max > 99999 {
		sample.LiveValue = "Empty Array"
		return nil
	}
	sample.IsObject = true
	sample.ObjectInstanceAddress = process.ProcessMemoryAddress(header.Data).Hex()
	sample.ObjectClassAddress = prop.SubTypeAddr.Hex()
	sample.LiveValue = fmt.Sprintf("Elements: %d", header.Count)
	return nil
}

func (e *Engine) decodeSet(addr process.ProcessMemoryAddress, prop *uemodel.PropertyInfo, sample *InstancePropertySample) error {
	header, err := pod.ReadT[pod.FScriptSetHeader](e.proc, addr)
	if err != nil {
		return err
	}
	if header.Data == 0 || header.Count < 0 || header.Count > 99999 {
		sample.LiveValue = "Empty Map"
		return nil
	}
	sample.IsObject = true
	sample.ObjectInstanceAddress = process.ProcessMemoryAddress(header.Data).Hex()
	sample.ObjectClassAddress = prop.SubTypeAddr.Hex()
	sample.LiveValue = fmt.Sprintf("Elements: %d", header.Count)
	return nil
}

// decodeNumeric renders the fixed-width kinds: signed and unsigned
// decimals, floats with up to six significant digits.
func (e *Engine) decodeNumeric(addr process.ProcessMemoryAddress, typeName string, elementSize uint32) (string, error) {
	switch {
	case strings.Contains(typeName, "FloatProperty"):
		v, err := e.proc.ReadFLOAT32(addr)
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(float64(v), 'g', 6, 32), nil

	case strings.Contains(typeName, "DoubleProperty"):
		v, err := e.proc.ReadFLOAT64(addr)
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(v, 'g', 6, 64), nil

	case strings.Contains(typeName, "ByteProperty"):
		v, err := e.proc.ReadUINT8(addr)
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(uint64(v), 10), nil

	case strings.Contains(typeName, "Int8Property"):
		v, err := e.proc.ReadINT8(addr)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(int64(v), 10), nil

	case strings.Contains(typeName, "Int16Property") && !strings.Contains(typeName, "UInt16Property"):
		v, err := e.proc.ReadINT16(addr)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(int64(v), 10), nil

	case strings.Contains(typeName, "Int64Property") && !strings.Contains(typeName, "UInt64Property"):
		v, err := e.proc.ReadINT64(addr)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(v, 10), nil

	case strings.Contains(typeName, "UInt16Property"):
		v, err := e.proc.ReadUINT16(addr)
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(uint64(v), 10), nil

	case strings.Contains(typeName, "UInt32Property"):
		v, err := e.proc.ReadUINT32(addr)
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(uint64(v), 10), nil

	case strings.Contains(typeName, "UInt64Property"):
		v, err := e.proc.ReadUINT64(addr)
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(v, 10), nil

	case strings.Contains(typeName, "IntProperty"), strings.Contains(typeName, "EnumProperty"):
		v, err := e.proc.ReadINT32(addr)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(int64(v), 10), nil
	}

	// Unknown kinds render as a pointer-sized hex value.
	v, err := e.proc.ReadPOINTER(addr)
	if err != nil {
		return "", err
	}
	return v.Hex(), nil
}

// elementStride maps a container inner type to its element size.
func elementStride(innerType string) int {
	t := strings.ToLower(innerType)
	switch {
	case strings.Contains(t, "byte"), strings.Contains(t, "bool"), strings.Contains(t, "int8"):
		return 1
	case strings.Contains(t, "int16"):
		return 2
	case strings.Contains(t, "int64"), strings.Contains(t, "double"),
		strings.Contains(t, "name"), strings.Contains(t, "str"),
		strings.Contains(t, "object"), strings.Contains(t, "class"):
		return 8
	case strings.Contains(t, "int"), strings.Contains(t, "float"):
		return 4
	}
	return 8
}

// ArrayElements decodes count container elements starting at arrayAddr
// using the inner type's decoder at its element stride.
func (e *Engine) ArrayElements(arrayAddr process.ProcessMemoryAddress, innerType string, count int) ([]InstancePropertySample, error) {
	const maxElements = 9999
	if count > maxElements {
		count = maxElements
	}

	stride := elementStride(innerType)
	t := strings.ToLower(innerType)

	samples := make([]InstancePropertySample, 0, max(count, 0))
	for i := 0; i < count; i++ {
		elemAddr := arrayAddr + process.ProcessMemoryAddress(i*stride)
		sample := InstancePropertySample{
			PropertyName:  fmt.Sprintf("[%d]", i),
			PropertyType:  innerType,
			Offset:        fmt.Sprintf("%X", i*stride),
			MemoryAddress: elemAddr.Hex(),
		}

		var err error
		switch {
		case strings.Contains(t, "object"), strings.Contains(t, "class"):
			err = e.decodeObject(elemAddr, &sample)
		case strings.Contains(t, "name"):
			sample.LiveValue, err = e.decodeFName(elemAddr)
		case strings.Contains(t, "str"):
			sample.LiveValue, err = e.decodeFString(elemAddr)
		case strings.Contains(t, "bool"):
			sample.LiveValue, err = e.decodeBool(elemAddr, 0)
		default:
			sample.LiveValue, err = e.decodeNumeric(elemAddr, normalizeInner(innerType), uint32(stride))
		}
		if err != nil {
			return nil, process.FaultField(elemAddr, process.ProcessMemorySize(stride), sample.PropertyName, err)
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// normalizeInner accepts both "Int" and "IntProperty" descriptors.
func normalizeInner(innerType string) string {
	if strings.Contains(innerType, "Property") {
		return innerType
	}
	return innerType + "Property"
}
