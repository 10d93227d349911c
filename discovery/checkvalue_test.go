package discovery

import (
	"encoding/binary"
	"fmt"
	"testing"

	"uedump/process"
	"uedump/process_blob"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imageWith(base process.ProcessMemoryAddress, data []byte) *process_blob.ProcessImage {
	img := process_blob.NewProcessImage(1)
	img.AddSegment(base, data)
	return img
}

func TestCheckIntEquals(t *testing.T) {
	data := make([]byte, 0x40)
	binary.LittleEndian.PutUint32(data[0x0C:], 1234)
	img := imageWith(0x1000, data)

	addr, ok := Check(img, 0x1000, WithWindow(0x40), WithIntEquals(1234, 4))
	require.True(t, ok)
	assert.Equal(t, process.ProcessMemoryAddress(0x100C), addr)

	_, ok = Check(img, 0x1000, WithWindow(0x40), WithIntEquals(99, 4))
	assert.False(t, ok)
}

func TestCheckIntRange(t *testing.T) {
	data := make([]byte, 0x20)
	binary.LittleEndian.PutUint32(data[0x08:], 500)
	img := imageWith(0x1000, data)

	addr, ok := Check(img, 0x1000, WithWindow(0x20), WithIntRange(100, 1000, 4))
	require.True(t, ok)
	assert.Equal(t, process.ProcessMemoryAddress(0x1008), addr)

	_, ok = Check(img, 0x1000, WithWindow(0x20), WithIntRange(501, 1000, 4))
	assert.False(t, ok)
}

func TestCheckIntWidths(t *testing.T) {
	data := make([]byte, 0x20)
	binary.LittleEndian.PutUint16(data[0x02:], 7)
	binary.LittleEndian.PutUint64(data[0x10:], 0x1_0000_0000)
	img := imageWith(0x2000, data)

	addr, ok := Check(img, 0x2000, WithWindow(0x20), WithIntEquals(7, 2))
	require.True(t, ok)
	assert.Equal(t, process.ProcessMemoryAddress(0x2002), addr)

	addr, ok = Check(img, 0x2000, WithWindow(0x20), WithIntEquals(0x1_0000_0000, 8))
	require.True(t, ok)
	assert.Equal(t, process.ProcessMemoryAddress(0x2010), addr)
}

// The sentinel variant treats probes as name ids and compares the
// resolved strings: equality with full compare, substring otherwise.
func TestCheckSentinelName(t *testing.T) {
	names := map[uint32]string{
		3: "ByteProperty",
		9: "None",
	}
	resolve := func(id uint32) (string, error) {
		if s, ok := names[id]; ok {
			return s, nil
		}
		return "", fmt.Errorf("unknown id %d", id)
	}

	data := make([]byte, 0x20)
	binary.LittleEndian.PutUint32(data[0x04:], 3)
	binary.LittleEndian.PutUint32(data[0x10:], 9)
	img := imageWith(0x3000, data)

	addr, ok := Check(img, 0x3000, WithWindow(0x20), WithSentinelName(resolve, "None", true))
	require.True(t, ok)
	assert.Equal(t, process.ProcessMemoryAddress(0x3010), addr)

	addr, ok = Check(img, 0x3000, WithWindow(0x20), WithSentinelName(resolve, "Property", false))
	require.True(t, ok)
	assert.Equal(t, process.ProcessMemoryAddress(0x3004), addr)

	_, ok = Check(img, 0x3000, WithWindow(0x20), WithSentinelName(resolve, "Property", true))
	assert.False(t, ok)
}

func TestCheckInvalidPivot(t *testing.T) {
	img := process_blob.NewProcessImage(1)
	_, ok := Check(img, 0xDEAD, WithIntEquals(1, 4))
	assert.False(t, ok)
}
