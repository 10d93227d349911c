package process_blob

import (
	"fmt"
	"sort"

	"uedump/process"
	"uedump/process/memory_map"
)

// ProcessImage is a fake process assembled from in-memory segments. It
// implements the full process.Process interface and backs the test
// fixtures, so parser and query code runs unchanged against synthetic
// targets.
type ProcessImage struct {
	pid      process.ProcessID
	exePath  string
	segments []*ProcessBlob
	modules  []process.ModuleInfo
	mm       []memory_map.MemoryMapItem
}

var _ process.Process = (*ProcessImage)(nil)

func NewProcessImage(pid process.ProcessID) *ProcessImage {
	return &ProcessImage{pid: pid}
}

// AddSegment maps data at base. Segments must not overlap.
func (p *ProcessImage) AddSegment(base process.ProcessMemoryAddress, data []byte) *ProcessImage {
	p.segments = append(p.segments, NewProcessBlob(base, data))
	p.mm = append(p.mm, memory_map.MemoryMapItem{
		Address: uint64(base),
		Size:    uint(len(data)),
		Perms:   "r--p",
	})
	sort.Slice(p.segments, func(i, j int) bool { return p.segments[i].baseaddress < p.segments[j].baseaddress })
	sort.Slice(p.mm, func(i, j int) bool { return p.mm[i].Address < p.mm[j].Address })
	return p
}

// AddModule registers a module record; the caller maps its bytes
// separately via AddSegment.
func (p *ProcessImage) AddModule(name string, base process.ProcessMemoryAddress, size uint64) *ProcessImage {
	p.modules = append(p.modules, process.ModuleInfo{Name: name, Base: base, Size: size})
	if p.exePath == "" {
		p.exePath = name
	}
	return p
}

func (p *ProcessImage) segmentFor(addr process.ProcessMemoryAddress) *ProcessBlob {
	for _, seg := range p.segments {
		if addr >= seg.baseaddress && uint64(addr) < uint64(seg.baseaddress)+uint64(len(seg.data)) {
			return seg
		}
	}
	return nil
}

func (p *ProcessImage) Open(pid process.ProcessID) error { p.pid = pid; return nil }
func (p *ProcessImage) Close() error                     { return nil }
func (p *ProcessImage) GetPID() process.ProcessID        { return p.pid }
func (p *ProcessImage) ExePath() string                  { return p.exePath }
func (p *ProcessImage) UpdateMemoryMap() error           { return nil }

func (p *ProcessImage) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	return p.segmentFor(addr) != nil
}

func (p *ProcessImage) IsPointer(addr process.ProcessMemoryAddress) bool {
	return addr != 0 && p.segmentFor(addr) != nil
}

func (p *ProcessImage) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	result := make([]memory_map.MemoryMapItem, len(p.mm))
	copy(result, p.mm)
	return result, nil
}

func (p *ProcessImage) Modules() ([]process.ModuleInfo, error) {
	result := make([]process.ModuleInfo, len(p.modules))
	copy(result, p.modules)
	return result, nil
}

func (p *ProcessImage) MainModule() (process.ModuleInfo, error) {
	if len(p.modules) == 0 {
		return process.ModuleInfo{}, fmt.Errorf("no modules registered")
	}
	return p.modules[0], nil
}

func (p *ProcessImage) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}
	seg := p.segmentFor(addr)
	if seg == nil {
		return nil, process.Fault(addr, size, process.ErrAddressNotMapped)
	}
	return seg.ReadMemory(addr, size)
}

func (p *ProcessImage) Scan(aob process.AOB, start, end process.ProcessMemoryAddress) ([]process.ProcessMemoryAddress, error) {
	if !aob.IsValid() {
		return nil, fmt.Errorf("invalid pattern")
	}
	var results []process.ProcessMemoryAddress
	for _, seg := range p.segments {
		segEnd := seg.baseaddress + process.ProcessMemoryAddress(len(seg.data))
		if end != 0 && seg.baseaddress >= end {
			continue
		}
		if segEnd <= start {
			continue
		}
		for _, off := range process.FindPattern(seg.data, aob) {
			addr := seg.baseaddress + process.ProcessMemoryAddress(off)
			if addr < start || (end != 0 && addr >= end) {
				continue
			}
			results = append(results, addr)
		}
	}
	return results, nil
}

func (p *ProcessImage) ScanFirst(aob process.AOB, start, end process.ProcessMemoryAddress) (process.ProcessMemoryAddress, error) {
	results, err := p.Scan(aob, start, end)
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, process.ErrAddressNotMapped
	}
	return results[0], nil
}

// Typed reads delegate to the owning segment.

func (p *ProcessImage) ReadUINT8(addr process.ProcessMemoryAddress) (uint8, error) {
	data, err := p.ReadMemory(addr, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

func (p *ProcessImage) ReadUINT16(addr process.ProcessMemoryAddress) (uint16, error) {
	if seg := p.segmentFor(addr); seg != nil {
		return seg.ReadUINT16(addr)
	}
	return 0, process.Fault(addr, 2, process.ErrAddressNotMapped)
}

func (p *ProcessImage) ReadUINT32(addr process.ProcessMemoryAddress) (uint32, error) {
	if seg := p.segmentFor(addr); seg != nil {
		return seg.ReadUINT32(addr)
	}
	return 0, process.Fault(addr, 4, process.ErrAddressNotMapped)
}

func (p *ProcessImage) ReadUINT64(addr process.ProcessMemoryAddress) (uint64, error) {
	if seg := p.segmentFor(addr); seg != nil {
		return seg.ReadUINT64(addr)
	}
	return 0, process.Fault(addr, 8, process.ErrAddressNotMapped)
}

func (p *ProcessImage) ReadINT8(addr process.ProcessMemoryAddress) (int8, error) {
	v, err := p.ReadUINT8(addr)
	return int8(v), err
}

func (p *ProcessImage) ReadINT16(addr process.ProcessMemoryAddress) (int16, error) {
	v, err := p.ReadUINT16(addr)
	return int16(v), err
}

func (p *ProcessImage) ReadINT32(addr process.ProcessMemoryAddress) (int32, error) {
	v, err := p.ReadUINT32(addr)
	return int32(v), err
}

func (p *ProcessImage) ReadINT64(addr process.ProcessMemoryAddress) (int64, error) {
	v, err := p.ReadUINT64(addr)
	return int64(v), err
}

func (p *ProcessImage) ReadFLOAT32(addr process.ProcessMemoryAddress) (float32, error) {
	if seg := p.segmentFor(addr); seg != nil {
		return seg.ReadFLOAT32(addr)
	}
	return 0, process.Fault(addr, 4, process.ErrAddressNotMapped)
}

func (p *ProcessImage) ReadFLOAT64(addr process.ProcessMemoryAddress) (float64, error) {
	if seg := p.segmentFor(addr); seg != nil {
		return seg.ReadFLOAT64(addr)
	}
	return 0, process.Fault(addr, 8, process.ErrAddressNotMapped)
}

func (p *ProcessImage) ReadNTS(addr process.ProcessMemoryAddress, maxLength process.ProcessMemorySize) (string, error) {
	if seg := p.segmentFor(addr); seg != nil {
		return seg.ReadNTS(addr, maxLength)
	}
	return "", process.Fault(addr, maxLength, process.ErrAddressNotMapped)
}

func (p *ProcessImage) ReadPOINTER(addr process.ProcessMemoryAddress) (process.ProcessMemoryAddress, error) {
	v, err := p.ReadUINT64(addr)
	return process.ProcessMemoryAddress(v), err
}

func (p *ProcessImage) ReadPOINTER2(addr process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	v, err := p.ReadPOINTER(addr)
	if err != nil {
		return 0
	}
	return v
}

func (p *ProcessImage) ReadBlob(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) (process.ProcessReadOffset, error) {
	data, err := p.ReadMemory(addr, size)
	if err != nil {
		return nil, err
	}
	return NewProcessBlob(addr, data), nil
}
