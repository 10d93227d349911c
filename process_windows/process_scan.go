//go:build windows

package process_windows

import (
	"errors"
	"fmt"

	"uedump/process"
)

// Scan searches for the given pattern in the readable regions of the
// process between start and end and returns all matching addresses.
func (p *WindowsProcess) Scan(aob process.AOB, start, end process.ProcessMemoryAddress) ([]process.ProcessMemoryAddress, error) {
	memMap, err := p.GetMemoryMap()
	if err != nil {
		return nil, fmt.Errorf("failed to get memory map: %w", err)
	}

	if !aob.IsValid() {
		return nil, fmt.Errorf("invalid pattern")
	}

	p.log.Infoln("Starting memory scan for pattern of length", len(aob.Pattern))

	var results []process.ProcessMemoryAddress

	for _, region := range memMap {
		regionEnd := region.Address + uint64(region.Size)
		if end != 0 && region.Address >= uint64(end) {
			continue
		}
		if regionEnd <= uint64(start) {
			continue
		}

		data, err := p.ReadMemory(process.ProcessMemoryAddress(region.Address), process.ProcessMemorySize(region.Size))
		if err != nil {
			if errors.Is(err, process.ErrAddressNotMapped) {
				continue
			}
			p.log.Debugln("Failed to read memory region at", fmt.Sprintf("%x", region.Address), err)
			continue
		}

		for _, offset := range process.FindPattern(data, aob) {
			addr := process.ProcessMemoryAddress(region.Address + uint64(offset))
			if addr < start || (end != 0 && addr >= end) {
				continue
			}
			results = append(results, addr)
		}
	}

	p.log.Infoln("Scan complete, found", len(results), "matches")
	return results, nil
}

// ScanFirst searches for the first occurrence of a pattern
func (p *WindowsProcess) ScanFirst(aob process.AOB, start, end process.ProcessMemoryAddress) (process.ProcessMemoryAddress, error) {
	results, err := p.Scan(aob, start, end)
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, process.ErrAddressNotMapped
	}
	return results[0], nil
}
