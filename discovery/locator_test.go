package discovery

import (
	"encoding/binary"
	"testing"

	"uedump/process"
	"uedump/process_blob"
	"uedump/storage"
	"uedump/uelayout"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	modBase   = process.ProcessMemoryAddress(0x140000000)
	poolCand  = process.ProcessMemoryAddress(0x140010000)
	blockAddr = process.ProcessMemoryAddress(0x140020000)
)

// plantPool builds a module whose body carries the second NamePool
// signature ("48 8D 0D disp32 E8 ...") with a RIP displacement leading
// to a structurally valid pool candidate.
func plantPool(t *testing.T) *process_blob.ProcessImage {
	t.Helper()

	profile, _ := uelayout.ProfileFor(5)

	body := make([]byte, 0x100)
	instr := 0x10
	body[instr] = 0x48
	body[instr+1] = 0x8D
	body[instr+2] = 0x0D
	disp := int32(int64(poolCand) - (int64(modBase) + int64(instr) + 7))
	binary.LittleEndian.PutUint32(body[instr+3:], uint32(disp))
	body[instr+7] = 0xE8
	body[instr+13] = 0x8B
	body[instr+15] = 0xC6

	img := process_blob.NewProcessImage(1)
	img.AddModule("game.exe", modBase, uint64(len(body)))
	img.AddSegment(modBase, body)

	// Pool candidate: Blocks[0] points at a block whose first entry is
	// a printable four-byte name.
	pool := make([]byte, 0x40)
	binary.LittleEndian.PutUint64(pool[profile.NameBlocksOffset:], uint64(blockAddr))
	img.AddSegment(poolCand, pool)

	block := make([]byte, 0x20)
	binary.LittleEndian.PutUint16(block, 4<<6)
	copy(block[2:], "None")
	img.AddSegment(blockAddr, block)

	return img
}

func TestLocateNamePool(t *testing.T) {
	img := plantPool(t)
	profile, _ := uelayout.ProfileFor(5)
	store := storage.NewStore()

	addr, err := NewLocator(img, profile, store).NamePool()
	require.NoError(t, err)
	assert.Equal(t, poolCand, addr)

	// The latch caches the result.
	cached, ok := store.NamePoolBase.Get()
	require.True(t, ok)
	assert.Equal(t, poolCand, cached)
}

func TestLocateNamePoolIdempotent(t *testing.T) {
	img := plantPool(t)
	profile, _ := uelayout.ProfileFor(5)
	store := storage.NewStore()
	locator := NewLocator(img, profile, store)

	first, err := locator.NamePool()
	require.NoError(t, err)
	second, err := locator.NamePool()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLocateNotFound(t *testing.T) {
	img := process_blob.NewProcessImage(1)
	img.AddModule("game.exe", modBase, 0x100)
	img.AddSegment(modBase, make([]byte, 0x100))

	profile, _ := uelayout.ProfileFor(5)
	locator := NewLocator(img, profile, storage.NewStore())

	_, err := locator.NamePool()
	var notFound *NotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "NamePool", notFound.What)

	_, err = locator.GUObjectArray()
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "GUObjectArray", notFound.What)

	_, err = locator.GWorld()
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "GWorld", notFound.What)
}

// A signature match whose candidate fails the structural fingerprint is
// rejected rather than returned.
func TestLocateRejectsBadCandidate(t *testing.T) {
	profile, _ := uelayout.ProfileFor(5)

	body := make([]byte, 0x100)
	instr := 0x10
	body[instr] = 0x48
	body[instr+1] = 0x8D
	body[instr+2] = 0x0D
	disp := int32(int64(poolCand) - (int64(modBase) + int64(instr) + 7))
	binary.LittleEndian.PutUint32(body[instr+3:], uint32(disp))
	body[instr+7] = 0xE8
	body[instr+13] = 0x8B
	body[instr+15] = 0xC6

	img := process_blob.NewProcessImage(1)
	img.AddModule("game.exe", modBase, uint64(len(body)))
	img.AddSegment(modBase, body)
	// Candidate memory exists but holds no valid block pointer.
	img.AddSegment(poolCand, make([]byte, 0x40))

	_, err := NewLocator(img, profile, storage.NewStore()).NamePool()
	var notFound *NotFound
	require.ErrorAs(t, err, &notFound)
}
