//go:build windows

// Package process_windows implements the process.Process interface on
// top of the Win32 debug and toolhelp APIs.
package process_windows

import (
	"fmt"
	"sort"
	"sync"
	"syscall"
	"unsafe"

	"uedump/process"
	"uedump/process/memory_map"
	"uedump/process_blob"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

var (
	modkernel32                   = syscall.NewLazyDLL("kernel32.dll")
	procOpenProcess               = modkernel32.NewProc("OpenProcess")
	procReadProcessMemory         = modkernel32.NewProc("ReadProcessMemory")
	procCloseHandle               = modkernel32.NewProc("CloseHandle")
	procVirtualQueryEx            = modkernel32.NewProc("VirtualQueryEx")
	procQueryFullProcessImageName = modkernel32.NewProc("QueryFullProcessImageNameW")
	procCreateToolhelp32Snapshot  = modkernel32.NewProc("CreateToolhelp32Snapshot")
	procModule32FirstW            = modkernel32.NewProc("Module32FirstW")
	procModule32NextW             = modkernel32.NewProc("Module32NextW")
	procProcess32FirstW           = modkernel32.NewProc("Process32FirstW")
	procProcess32NextW            = modkernel32.NewProc("Process32NextW")
)

const (
	PROCESS_VM_READ           = 0x0010
	PROCESS_QUERY_INFORMATION = 0x0400

	TH32CS_SNAPPROCESS  = 0x0002
	TH32CS_SNAPMODULE   = 0x0008
	TH32CS_SNAPMODULE32 = 0x0010

	MEM_COMMIT    = 0x1000
	PAGE_NOACCESS = 0x01
	PAGE_GUARD    = 0x100

	invalidHandle = ^uintptr(0)
)

type memoryBasicInformation struct {
	BaseAddress       uintptr
	AllocationBase    uintptr
	AllocationProtect uint32
	PartitionID       uint16
	_                 uint16
	RegionSize        uintptr
	State             uint32
	Protect           uint32
	Type              uint32
}

type moduleEntry32W struct {
	Size         uint32
	ModuleID     uint32
	ProcessID    uint32
	GlblcntUsage uint32
	ProccntUsage uint32
	ModBaseAddr  uintptr
	ModBaseSize  uint32
	Module       uintptr
	ModuleName   [256]uint16
	ExePath      [260]uint16
}

type processEntry32W struct {
	Size            uint32
	Usage           uint32
	ProcessID       uint32
	DefaultHeapID   uintptr
	ModuleID        uint32
	Threads         uint32
	ParentProcessID uint32
	PriClassBase    int32
	Flags           uint32
	ExeFile         [260]uint16
}

// WindowsProcess implements the process.Process interface for Windows systems
type WindowsProcess struct {
	pid     process.ProcessID
	handle  syscall.Handle
	exePath string
	log     *logger.Logger
	mm      []memory_map.MemoryMapItem
	modules []process.ModuleInfo
	mu      sync.Mutex

	process.TypedReader
}

// New creates a new WindowsProcess instance
func New() process.Process {
	p := &WindowsProcess{
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

// NewWithPID creates a new WindowsProcess instance and opens it with the given PID
func NewWithPID(pid process.ProcessID) (process.Process, error) {
	p := New()
	if err := p.Open(pid); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *WindowsProcess) Open(pid process.ProcessID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	handle, _, err := procOpenProcess.Call(uintptr(PROCESS_VM_READ|PROCESS_QUERY_INFORMATION), 0, uintptr(pid))
	if handle == 0 {
		return fmt.Errorf("OpenProcess failed: %v", err)
	}

	p.pid = pid
	p.handle = syscall.Handle(handle)
	p.exePath = queryImagePath(syscall.Handle(handle))
	p.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid)))

	if err := p.updateMemoryMapInternal(); err != nil {
		p.log.Warn("Failed to initialize memory map: ", err)
	}
	if err := p.updateModulesInternal(); err != nil {
		p.log.Warn("Failed to snapshot modules: ", err)
	}

	p.log.Infoln("Process opened")
	return nil
}

func (p *WindowsProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle != 0 {
		ret, _, err := procCloseHandle.Call(uintptr(p.handle))
		if ret == 0 {
			return fmt.Errorf("CloseHandle failed: %v", err)
		}
		p.handle = 0
	}

	p.pid = 0
	p.exePath = ""
	p.mm = nil
	p.modules = nil
	p.log = logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open"))
	p.log.Infoln("Process closed")

	return nil
}

func (p *WindowsProcess) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

func (p *WindowsProcess) ExePath() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exePath
}

func queryImagePath(handle syscall.Handle) string {
	var buf [260]uint16
	size := uint32(len(buf))
	ret, _, _ := procQueryFullProcessImageName.Call(
		uintptr(handle),
		0,
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(unsafe.Pointer(&size)),
	)
	if ret == 0 {
		return ""
	}
	return syscall.UTF16ToString(buf[:size])
}

func (p *WindowsProcess) UpdateMemoryMap() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updateMemoryMapInternal()
}

func (p *WindowsProcess) updateMemoryMapInternal() error {
	if p.handle == 0 {
		return process.ErrProcessNotOpen
	}

	var mm []memory_map.MemoryMapItem
	var addr uintptr
	for {
		var mbi memoryBasicInformation
		ret, _, _ := procVirtualQueryEx.Call(
			uintptr(p.handle),
			addr,
			uintptr(unsafe.Pointer(&mbi)),
			unsafe.Sizeof(mbi),
		)
		if ret == 0 {
			break
		}
		if mbi.State == MEM_COMMIT && mbi.Protect&PAGE_NOACCESS == 0 && mbi.Protect&PAGE_GUARD == 0 {
			mm = append(mm, memory_map.MemoryMapItem{
				Address: uint64(mbi.BaseAddress),
				Size:    uint(mbi.RegionSize),
				Perms:   "r--p",
			})
		}
		next := mbi.BaseAddress + mbi.RegionSize
		if next <= addr {
			break
		}
		addr = next
	}

	sort.Slice(mm, func(i, j int) bool { return mm[i].Address < mm[j].Address })
	p.mm = mm
	return nil
}

func (p *WindowsProcess) updateModulesInternal() error {
	if p.pid == 0 {
		return process.ErrProcessNotOpen
	}

	snapshot, _, err := procCreateToolhelp32Snapshot.Call(uintptr(TH32CS_SNAPMODULE|TH32CS_SNAPMODULE32), uintptr(p.pid))
	if snapshot == invalidHandle {
		return fmt.Errorf("CreateToolhelp32Snapshot failed: %v", err)
	}
	defer procCloseHandle.Call(snapshot)

	var entry moduleEntry32W
	entry.Size = uint32(unsafe.Sizeof(entry))

	ret, _, err := procModule32FirstW.Call(snapshot, uintptr(unsafe.Pointer(&entry)))
	if ret == 0 {
		return fmt.Errorf("Module32First failed: %v", err)
	}

	var modules []process.ModuleInfo
	for {
		modules = append(modules, process.ModuleInfo{
			Name: syscall.UTF16ToString(entry.ModuleName[:]),
			Base: process.ProcessMemoryAddress(entry.ModBaseAddr),
			Size: uint64(entry.ModBaseSize),
		})
		ret, _, _ = procModule32NextW.Call(snapshot, uintptr(unsafe.Pointer(&entry)))
		if ret == 0 {
			break
		}
	}

	p.modules = modules
	return nil
}

func (p *WindowsProcess) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return memory_map.IsValidAddress2(uint64(addr), p.mm) != nil
}

func (p *WindowsProcess) IsPointer(addr process.ProcessMemoryAddress) bool {
	if addr == 0 {
		return false
	}
	_, err := p.ReadMemory(addr, 1)
	return err == nil
}

func (p *WindowsProcess) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == 0 {
		return nil, process.ErrProcessNotOpen
	}
	result := make([]memory_map.MemoryMapItem, len(p.mm))
	copy(result, p.mm)
	return result, nil
}

func (p *WindowsProcess) Modules() ([]process.ModuleInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == 0 {
		return nil, process.ErrProcessNotOpen
	}
	result := make([]process.ModuleInfo, len(p.modules))
	copy(result, p.modules)
	return result, nil
}

func (p *WindowsProcess) MainModule() (process.ModuleInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == 0 {
		return process.ModuleInfo{}, process.ErrProcessNotOpen
	}
	// The first module returned by Module32First is always the main executable
	if len(p.modules) == 0 {
		return process.ModuleInfo{}, fmt.Errorf("no modules found for pid %d", p.pid)
	}
	return p.modules[0], nil
}

func (p *WindowsProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	p.mu.Lock()
	handle := p.handle
	p.mu.Unlock()

	if handle == 0 {
		return nil, process.ErrProcessNotOpen
	}

	buf := make([]byte, size)
	var bytesRead uintptr
	ret, _, err := procReadProcessMemory.Call(
		uintptr(handle),
		uintptr(addr),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(size),
		uintptr(unsafe.Pointer(&bytesRead)),
	)

	if ret == 0 {
		return nil, process.Fault(addr, size, fmt.Errorf("ReadProcessMemory failed: %v", err))
	}

	if bytesRead != uintptr(size) {
		return nil, process.Fault(addr, size, fmt.Errorf("read incomplete: expected %d, got %d", size, bytesRead))
	}

	return buf, nil
}

// ListProcesses enumerates running processes from a toolhelp snapshot,
// sorted by name.
func ListProcesses() ([]process.ProcessInfo, error) {
	snapshot, _, err := procCreateToolhelp32Snapshot.Call(uintptr(TH32CS_SNAPPROCESS), 0)
	if snapshot == invalidHandle {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot failed: %v", err)
	}
	defer procCloseHandle.Call(snapshot)

	var entry processEntry32W
	entry.Size = uint32(unsafe.Sizeof(entry))

	ret, _, err := procProcess32FirstW.Call(snapshot, uintptr(unsafe.Pointer(&entry)))
	if ret == 0 {
		return nil, fmt.Errorf("Process32First failed: %v", err)
	}

	var out []process.ProcessInfo
	for {
		name := syscall.UTF16ToString(entry.ExeFile[:])
		if name != "" {
			out = append(out, process.ProcessInfo{
				PID:  process.ProcessID(entry.ProcessID),
				Name: name,
			})
		}
		ret, _, _ = procProcess32NextW.Call(snapshot, uintptr(unsafe.Pointer(&entry)))
		if ret == 0 {
			break
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
