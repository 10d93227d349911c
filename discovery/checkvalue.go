package discovery

import (
	"encoding/binary"
	"strings"

	"uedump/process"
)

// Check is a CheckValue-style proximity scan: within a bounded window
// around a pivot address, walk at a fixed stride looking for either an
// integer match or a name id whose resolved string matches a sentinel.
// Returns the address of the first hit. The locators do not call it.

// Checker holds the scan configuration.
type Checker struct {
	Window int // bytes scanned after the pivot
	Stride int // step between probes
	match  func(data []byte) bool
}

// Option configures a Checker.
type Option func(*Checker)

func WithWindow(size int) Option {
	return func(c *Checker) { c.Window = size }
}

func WithStride(stride int) Option {
	return func(c *Checker) { c.Stride = stride }
}

// WithIntEquals matches a little-endian integer of the given byte width
// (2, 4 or 8) equal to value.
func WithIntEquals(value int64, width int) Option {
	return WithIntRange(value, value, width)
}

// WithIntRange matches an integer of the given width inside [lo, hi].
func WithIntRange(lo, hi int64, width int) Option {
	return func(c *Checker) {
		c.Stride = width
		c.match = func(data []byte) bool {
			if len(data) < width {
				return false
			}
			var v int64
			switch width {
			case 2:
				v = int64(int16(binary.LittleEndian.Uint16(data)))
			case 4:
				v = int64(int32(binary.LittleEndian.Uint32(data)))
			case 8:
				v = int64(binary.LittleEndian.Uint64(data))
			default:
				return false
			}
			return v >= lo && v <= hi
		}
	}
}

// WithSentinelName treats each probe as a 32-bit name id, resolves it
// through the supplied callback and compares against sentinel: equality
// when fullCompare is set, substring otherwise. Tilde ranges are
// deliberately not supported.
func WithSentinelName(resolve func(uint32) (string, error), sentinel string, fullCompare bool) Option {
	return func(c *Checker) {
		c.Stride = 4
		c.match = func(data []byte) bool {
			if len(data) < 4 {
				return false
			}
			id := binary.LittleEndian.Uint32(data)
			name, err := resolve(id)
			if err != nil || name == "" {
				return false
			}
			if fullCompare {
				return name == sentinel
			}
			return strings.Contains(name, sentinel)
		}
	}
}

// Check scans the window after pivot and returns the address of the
// first probe the matcher accepts.
func Check(proc process.Process, pivot process.ProcessMemoryAddress, options ...Option) (process.ProcessMemoryAddress, bool) {
	c := &Checker{
		Window: 0x100,
		Stride: 4,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.match == nil || c.Stride <= 0 {
		return 0, false
	}

	if !proc.IsPointer(pivot) {
		return 0, false
	}

	data, err := proc.ReadMemory(pivot, process.ProcessMemorySize(c.Window))
	if err != nil {
		return 0, false
	}

	for off := 0; off+c.Stride <= len(data); off += c.Stride {
		if c.match(data[off:]) {
			return pivot + process.ProcessMemoryAddress(off), true
		}
	}
	return 0, false
}
