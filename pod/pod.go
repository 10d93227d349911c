// Package pod reads plain-old-data structures straight out of target
// memory: the value is materialized from the remote bytes with the
// in-memory layout of T. T must be POD and match the target's packing.
package pod

import (
	"errors"
	"unsafe"

	"uedump/process"
)

func SizeOf[T any]() process.ProcessMemorySize {
	var t T
	return process.ProcessMemorySize(unsafe.Sizeof(t))
}

// ReadT reads one T at addr.
func ReadT[T any](proc process.ProcessRead, addr process.ProcessMemoryAddress) (T, error) {
	var zero T
	size := SizeOf[T]()
	if size == 0 {
		return zero, errors.New("ReadT: size of T is zero")
	}

	blob, err := proc.ReadBlob(addr, size)
	if err != nil {
		return zero, err
	}

	data := blob.Data()
	if len(data) < int(size) {
		return zero, errors.New("ReadT: short read")
	}

	var result T
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&result)), size), data)
	return result, nil
}

// ReadSliceT reads count consecutive T values starting at addr with one
// remote read.
func ReadSliceT[T any](proc process.ProcessRead, addr process.ProcessMemoryAddress, count int) ([]T, error) {
	if count < 0 {
		return nil, errors.New("ReadSliceT: count must not be negative")
	}
	size := SizeOf[T]()
	if size == 0 || count == 0 {
		return []T{}, nil
	}

	blob, err := proc.ReadBlob(addr, size*process.ProcessMemorySize(count))
	if err != nil {
		return nil, err
	}

	data := blob.Data()
	result := make([]T, count)
	for i := range result {
		off := i * int(size)
		copy(unsafe.Slice((*byte)(unsafe.Pointer(&result[i])), size), data[off:off+int(size)])
	}
	return result, nil
}

// Wire shapes of the target containers the inspector decodes.

// FUObjectItem is one slot of an object registry chunk.
type FUObjectItem struct {
	Object           uint64
	Flags            int32
	ClusterRootIndex int32
	SerialNumber     int32
	_                int32
}

// TArrayHeader is the header of a dynamic array: data pointer, element
// count, capacity.
type TArrayHeader struct {
	Data  uint64
	Count int32
	Max   int32
}

// FStringHeader shares the array layout; Count includes the NUL
// terminator and the payload is UTF-16.
type FStringHeader = TArrayHeader

// FScriptSetHeader models the sparse-array backed set/map storage; the
// element count lives past the allocation fields.
type FScriptSetHeader struct {
	Data  uint64
	_     [16]byte
	Count int32
	_     int32
}
