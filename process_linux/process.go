//go:build linux

// Package process_linux implements the process.Process interface on top
// of process_vm_readv and /proc.
package process_linux

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"uedump/process"
	"uedump/process/memory_map"
	"uedump/process_blob"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// LinuxProcess implements the process.Process interface for Linux systems
type LinuxProcess struct {
	pid     process.ProcessID
	exePath string
	log     *logger.Logger
	mm      []memory_map.MemoryMapItem
	modules []process.ModuleInfo
	mu      sync.Mutex

	process.TypedReader
}

// New creates a new LinuxProcess instance
func New() process.Process {
	p := &LinuxProcess{
		log: logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open")),
	}
	p.TypedReader = process.TypedReader{
		Read: p.ReadMemory,
		MakeBlob: func(addr process.ProcessMemoryAddress, data []byte) process.ProcessReadOffset {
			return process_blob.NewProcessBlob(addr, data)
		},
	}
	return p
}

// NewWithPID creates a new LinuxProcess instance and opens it with the given PID
func NewWithPID(pid process.ProcessID) (process.Process, error) {
	p := New()
	if err := p.Open(pid); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *LinuxProcess) Open(pid process.ProcessID) error {
	procPath := fmt.Sprintf("/proc/%d", pid)
	if _, err := os.Stat(procPath); os.IsNotExist(err) {
		return fmt.Errorf("process with PID %d does not exist", pid)
	}

	exe, _ := os.Readlink(filepath.Join(procPath, "exe"))

	p.mu.Lock()
	p.pid = pid
	p.exePath = exe
	p.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid)))
	p.mu.Unlock()

	if err := p.UpdateMemoryMap(); err != nil {
		return fmt.Errorf("failed to initialize memory map: %w", err)
	}

	p.log.Infoln("Process opened")

	return nil
}

func (p *LinuxProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pid = 0
	p.exePath = ""
	p.mm = nil
	p.modules = nil

	p.log = logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open"))
	p.log.Infoln("Process closed")

	return nil
}

// GetPID returns the process ID
func (p *LinuxProcess) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

func (p *LinuxProcess) ExePath() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exePath
}

func (p *LinuxProcess) UpdateMemoryMap() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pid == 0 {
		return process.ErrProcessNotOpen
	}

	mm, err := memory_map.ReadMemoryMap(int(p.pid))
	if err != nil {
		return fmt.Errorf("failed to read memory map: %w", err)
	}

	// IsValidAddress2 requires the memory map to be sorted by address
	sort.Slice(mm, func(i, j int) bool {
		return mm[i].Address < mm[j].Address
	})

	p.mm = mm
	p.modules = modulesFromMap(mm)
	return nil
}

// modulesFromMap groups file-backed mappings by pathname. The module base
// is the lowest mapping of each file, the size spans to the highest end.
func modulesFromMap(mm []memory_map.MemoryMapItem) []process.ModuleInfo {
	type span struct {
		base, end uint64
	}
	spans := make(map[string]*span)
	var order []string
	for _, item := range mm {
		if item.Path == "" || item.Path[0] == '[' {
			continue
		}
		s, ok := spans[item.Path]
		if !ok {
			spans[item.Path] = &span{base: item.Address, end: item.Address + uint64(item.Size)}
			order = append(order, item.Path)
			continue
		}
		if item.Address < s.base {
			s.base = item.Address
		}
		if end := item.Address + uint64(item.Size); end > s.end {
			s.end = end
		}
	}

	modules := make([]process.ModuleInfo, 0, len(order))
	for _, path := range order {
		s := spans[path]
		modules = append(modules, process.ModuleInfo{
			Name: filepath.Base(path),
			Base: process.ProcessMemoryAddress(s.base),
			Size: s.end - s.base,
		})
	}
	return modules
}

func (p *LinuxProcess) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return memory_map.IsValidAddress(uint64(addr), p.mm)
}

func (p *LinuxProcess) IsPointer(addr process.ProcessMemoryAddress) bool {
	if addr == 0 {
		return false
	}
	_, err := p.ReadMemory(addr, 1)
	return err == nil
}

func (p *LinuxProcess) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pid == 0 {
		return nil, process.ErrProcessNotOpen
	}
	result := make([]memory_map.MemoryMapItem, len(p.mm))
	copy(result, p.mm)
	return result, nil
}

func (p *LinuxProcess) Modules() ([]process.ModuleInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pid == 0 {
		return nil, process.ErrProcessNotOpen
	}
	result := make([]process.ModuleInfo, len(p.modules))
	copy(result, p.modules)
	return result, nil
}

func (p *LinuxProcess) MainModule() (process.ModuleInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pid == 0 {
		return process.ModuleInfo{}, process.ErrProcessNotOpen
	}
	exe := filepath.Base(p.exePath)
	for _, m := range p.modules {
		if m.Name == exe {
			return m, nil
		}
	}
	if len(p.modules) > 0 {
		return p.modules[0], nil
	}
	return process.ModuleInfo{}, fmt.Errorf("no modules found for pid %d", p.pid)
}
