package process

import (
	"uedump/process/memory_map"
)

// Process is the interface that defines read-only operations for
// interacting with a system process.
type Process interface {
	// Open opens a process with the given PID for memory operations
	Open(pid ProcessID) error

	// Close closes the process and releases resources
	Close() error

	// GetPID returns the process ID
	GetPID() ProcessID

	// ExePath returns the path of the main executable, if known
	ExePath() string

	// UpdateMemoryMap refreshes the memory map for the process
	UpdateMemoryMap() error

	// IsValidAddress checks if the given memory address lies inside a
	// mapped, readable region
	IsValidAddress(addr ProcessMemoryAddress) bool

	// IsPointer checks that a single byte at addr is readable
	IsPointer(addr ProcessMemoryAddress) bool

	// GetMemoryMap returns a copy of the current memory map
	GetMemoryMap() ([]memory_map.MemoryMapItem, error)

	// Modules returns the loaded modules, acquired on attach
	Modules() ([]ModuleInfo, error)

	// MainModule returns the primary executable module
	MainModule() (ModuleInfo, error)

	// ReadMemory reads memory from the process at the specified address.
	// Partial reads fail.
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)

	// Memory scanning operations
	MemoryScanner

	// Typed memory reading operations
	ProcessRead
}

// ProcessRead defines typed read operations for process memory
type ProcessRead interface {
	// ReadUINT8 reads an unsigned 8-bit integer from the specified address
	ReadUINT8(addr ProcessMemoryAddress) (uint8, error)

	// ReadUINT16 reads an unsigned 16-bit integer from the specified address
	ReadUINT16(addr ProcessMemoryAddress) (uint16, error)

	// ReadUINT32 reads an unsigned 32-bit integer from the specified address
	ReadUINT32(addr ProcessMemoryAddress) (uint32, error)

	// ReadUINT64 reads an unsigned 64-bit integer from the specified address
	ReadUINT64(addr ProcessMemoryAddress) (uint64, error)

	// ReadINT8 reads a signed 8-bit integer from the specified address
	ReadINT8(addr ProcessMemoryAddress) (int8, error)

	// ReadINT16 reads a signed 16-bit integer from the specified address
	ReadINT16(addr ProcessMemoryAddress) (int16, error)

	// ReadINT32 reads a signed 32-bit integer from the specified address
	ReadINT32(addr ProcessMemoryAddress) (int32, error)

	// ReadINT64 reads a signed 64-bit integer from the specified address
	ReadINT64(addr ProcessMemoryAddress) (int64, error)

	// ReadFLOAT32 reads a 32-bit floating point number from the specified address
	ReadFLOAT32(addr ProcessMemoryAddress) (float32, error)

	// ReadFLOAT64 reads a 64-bit floating point number from the specified address
	ReadFLOAT64(addr ProcessMemoryAddress) (float64, error)

	// ReadNTS reads a null-terminated string from the specified address with a maximum length
	ReadNTS(addr ProcessMemoryAddress, maxLength ProcessMemorySize) (string, error)

	// ReadPOINTER reads a pointer value from the specified address
	ReadPOINTER(addr ProcessMemoryAddress) (ProcessMemoryAddress, error)

	// ReadPOINTER2 reads a pointer value from the specified address, zero on error
	ReadPOINTER2(addr ProcessMemoryAddress) ProcessMemoryAddress

	// ReadBlob reads a blob of memory from the specified address with the given size
	ReadBlob(addr ProcessMemoryAddress, size ProcessMemorySize) (ProcessReadOffset, error)
}

// ProcessReadOffset combines both ProcessRead and ProcessOffset interfaces
type ProcessReadOffset interface {
	ProcessRead
	ProcessOffset
}

// ProcessOffset defines typed read operations relative to a blob start
type ProcessOffset interface {
	// Data returns the raw data read from the process memory
	Data() []byte

	// OffsetUINT8 reads an unsigned 8-bit integer at the given offset
	OffsetUINT8(offset ProcessMemoryAddress) (uint8, error)

	// OffsetUINT16 reads an unsigned 16-bit integer at the given offset
	OffsetUINT16(offset ProcessMemoryAddress) (uint16, error)

	// OffsetUINT32 reads an unsigned 32-bit integer at the given offset
	OffsetUINT32(offset ProcessMemoryAddress) (uint32, error)

	// OffsetUINT64 reads an unsigned 64-bit integer at the given offset
	OffsetUINT64(offset ProcessMemoryAddress) (uint64, error)

	// OffsetINT32 reads a signed 32-bit integer at the given offset
	OffsetINT32(offset ProcessMemoryAddress) (int32, error)

	// OffsetINT64 reads a signed 64-bit integer at the given offset
	OffsetINT64(offset ProcessMemoryAddress) (int64, error)

	// OffsetPOINTER reads a pointer value at the given offset
	OffsetPOINTER(offset ProcessMemoryAddress) (ProcessMemoryAddress, error)

	// OffsetPOINTER2 reads a pointer value at the given offset, zero on error
	OffsetPOINTER2(offset ProcessMemoryAddress) ProcessMemoryAddress
}

// MemoryScanner defines operations for searching patterns in process memory
type MemoryScanner interface {
	// Scan searches for a pattern in the readable regions between start and
	// end. A zero end means the whole mapped space.
	Scan(aob AOB, start, end ProcessMemoryAddress) ([]ProcessMemoryAddress, error)

	// ScanFirst searches for the first occurrence of a pattern
	ScanFirst(aob AOB, start, end ProcessMemoryAddress) (ProcessMemoryAddress, error)
}
