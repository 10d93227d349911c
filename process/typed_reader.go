package process

import (
	"encoding/binary"
	"math"
)

// TypedReader implements the ProcessRead fixed-width decoders on top of a
// raw ReadMemory function, so each OS backend only supplies the transport.
type TypedReader struct {
	Read     func(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)
	MakeBlob func(addr ProcessMemoryAddress, data []byte) ProcessReadOffset
}

func (t TypedReader) ReadUINT8(addr ProcessMemoryAddress) (uint8, error) {
	data, err := t.Read(addr, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

func (t TypedReader) ReadUINT16(addr ProcessMemoryAddress) (uint16, error) {
	data, err := t.Read(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(data), nil
}

func (t TypedReader) ReadUINT32(addr ProcessMemoryAddress) (uint32, error) {
	data, err := t.Read(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

func (t TypedReader) ReadUINT64(addr ProcessMemoryAddress) (uint64, error) {
	data, err := t.Read(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data), nil
}

func (t TypedReader) ReadINT8(addr ProcessMemoryAddress) (int8, error) {
	v, err := t.ReadUINT8(addr)
	return int8(v), err
}

func (t TypedReader) ReadINT16(addr ProcessMemoryAddress) (int16, error) {
	v, err := t.ReadUINT16(addr)
	return int16(v), err
}

func (t TypedReader) ReadINT32(addr ProcessMemoryAddress) (int32, error) {
	v, err := t.ReadUINT32(addr)
	return int32(v), err
}

func (t TypedReader) ReadINT64(addr ProcessMemoryAddress) (int64, error) {
	v, err := t.ReadUINT64(addr)
	return int64(v), err
}

func (t TypedReader) ReadFLOAT32(addr ProcessMemoryAddress) (float32, error) {
	v, err := t.ReadUINT32(addr)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (t TypedReader) ReadFLOAT64(addr ProcessMemoryAddress) (float64, error) {
	v, err := t.ReadUINT64(addr)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (t TypedReader) ReadNTS(addr ProcessMemoryAddress, maxLength ProcessMemorySize) (string, error) {
	if maxLength == 0 {
		return "", nil
	}
	// Read in small steps so a string near the end of a page does not
	// fault the whole request.
	const step = 64
	var out []byte
	for read := ProcessMemorySize(0); read < maxLength; {
		chunk := ProcessMemorySize(step)
		if read+chunk > maxLength {
			chunk = maxLength - read
		}
		data, err := t.Read(addr+ProcessMemoryAddress(read), chunk)
		if err != nil {
			if len(out) > 0 {
				return string(out), nil
			}
			return "", err
		}
		for _, b := range data {
			if b == 0 {
				return string(out), nil
			}
			out = append(out, b)
		}
		read += chunk
	}
	return string(out), nil
}

func (t TypedReader) ReadPOINTER(addr ProcessMemoryAddress) (ProcessMemoryAddress, error) {
	v, err := t.ReadUINT64(addr)
	return ProcessMemoryAddress(v), err
}

func (t TypedReader) ReadPOINTER2(addr ProcessMemoryAddress) ProcessMemoryAddress {
	v, err := t.ReadPOINTER(addr)
	if err != nil {
		return 0
	}
	return v
}

func (t TypedReader) ReadBlob(addr ProcessMemoryAddress, size ProcessMemorySize) (ProcessReadOffset, error) {
	data, err := t.Read(addr, size)
	if err != nil {
		return nil, err
	}
	return t.MakeBlob(addr, data), nil
}
