// Package namepool reads the target's string interning pool: single
// name lookups by composite id and the full chunked parse that feeds
// the name table.
package namepool

import (
	"fmt"
	"unicode/utf16"

	"uedump/process"
	"uedump/uelayout"
)

// CorruptLayout reports a structural invariant violation inside parsed
// pool data, e.g. an entry length exceeding the block remainder.
type CorruptLayout struct {
	Where string
}

func (e *CorruptLayout) Error() string {
	return fmt.Sprintf("corrupt layout: %s", e.Where)
}

// Pool reads names from a located NamePool base address.
type Pool struct {
	proc    process.Process
	base    process.ProcessMemoryAddress
	profile uelayout.Profile
}

func NewPool(proc process.Process, base process.ProcessMemoryAddress, profile uelayout.Profile) *Pool {
	return &Pool{proc: proc, base: base, profile: profile}
}

func (p *Pool) Base() process.ProcessMemoryAddress { return p.base }

// CompositeID builds a name id from block index and entry word offset.
func (p *Pool) CompositeID(block uint32, wordOffset uint32) uint32 {
	return block<<p.profile.NameBlockShift | wordOffset
}

// Resolve reads a single name from the pool by its composite id. The
// block index sits above NameBlockShift, the in-block word offset below.
func (p *Pool) Resolve(id uint32) (string, error) {
	block := id >> p.profile.NameBlockShift
	offset := uint64(id&(1<<p.profile.NameBlockShift-1)) * uint64(p.profile.NameBlockStride)

	blockAddr, err := p.proc.ReadPOINTER(p.base + process.ProcessMemoryAddress(p.profile.NameBlocksOffset+8*uint64(block)))
	if err != nil {
		return "", err
	}
	if blockAddr == 0 {
		return "", process.ErrInvalidPointer
	}

	entryAddr := blockAddr + process.ProcessMemoryAddress(offset)
	header, err := p.proc.ReadUINT16(entryAddr)
	if err != nil {
		return "", err
	}

	length := int(header >> 6)
	wide := header&1 != 0
	if length <= 0 || length >= 255 {
		return "", &CorruptLayout{Where: fmt.Sprintf("name %d length %d", id, length)}
	}

	payload := length
	if wide {
		payload = length * 2
	}
	data, err := p.proc.ReadMemory(entryAddr+process.ProcessMemoryAddress(p.profile.NameEntryHeaderSize), process.ProcessMemorySize(payload))
	if err != nil {
		return "", err
	}
	return decodeName(data, length, wide), nil
}

func decodeName(payload []byte, length int, wide bool) string {
	if !wide {
		return string(payload[:length])
	}
	units := make([]uint16, length)
	for i := range units {
		units[i] = uint16(payload[2*i]) | uint16(payload[2*i+1])<<8
	}
	return string(utf16.Decode(units))
}
