package namepool

import (
	"context"
	"encoding/binary"
	"testing"

	"uedump/events"
	"uedump/process_blob"
	"uedump/storage"
	"uedump/uefixture"
	"uedump/uelayout"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProfile() uelayout.Profile {
	profile, _ := uelayout.ProfileFor(5)
	profile.NameBlockSize = 0x100
	return profile
}

func TestParsePoolThreeBlocks(t *testing.T) {
	fix := uefixture.New(testProfile())
	// Block 0 holds "None" from the fixture setup.
	fix.Name("ByteProperty")
	fix.CloseBlock()
	fix.Name("Actor")
	fix.Name("Vector")
	fix.CloseBlock()
	fix.Name("X")
	fix.Name("Y")
	fix.Finalize()

	img := fix.Image()
	pool := NewPool(img, fix.PoolBase(), fix.Profile)
	store := storage.NewStore()
	bus := events.NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	table, err := NewParser(pool, store, bus).Parse(context.Background())
	require.NoError(t, err)
	require.Equal(t, fix.NameCount(), table.Count())
	assert.Equal(t, 0, table.Skipped())

	// One event per block; the terminal event reports the exact count.
	var got []events.Progress
	for {
		select {
		case ev := <-ch:
			got = append(got, ev)
			continue
		default:
		}
		break
	}
	require.Len(t, got, 3)
	last := got[2]
	assert.Equal(t, 3, last.CurrentChunk)
	assert.Equal(t, 3, last.TotalChunks)
	assert.Equal(t, table.Count(), last.CurrentItems)
	assert.Equal(t, table.Count(), last.TotalItems)

	// Id 0 is always "None".
	assert.Equal(t, "None", table.Resolve(0))
}

// Name round-trip: every interned name resolves back through a live
// pool read.
func TestResolveRoundTrip(t *testing.T) {
	fix := uefixture.New(testProfile())
	names := []string{"ByteProperty", "Package", "Actor", "RootComponent"}
	ids := make(map[string]uint32, len(names))
	for _, n := range names {
		ids[n] = fix.Name(n)
	}
	fix.CloseBlock()
	ids["LateName"] = fix.Name("LateName")
	fix.Finalize()

	pool := NewPool(fix.Image(), fix.PoolBase(), fix.Profile)
	for name, id := range ids {
		resolved, err := pool.Resolve(id)
		require.NoError(t, err, name)
		assert.Equal(t, name, resolved)
	}
}

func TestParsePoolIdempotent(t *testing.T) {
	fix := uefixture.New(testProfile())
	fix.Name("Actor")
	fix.Finalize()

	pool := NewPool(fix.Image(), fix.PoolBase(), fix.Profile)
	store := storage.NewStore()
	parser := NewParser(pool, store, nil)

	first, err := parser.Parse(context.Background())
	require.NoError(t, err)
	second, err := parser.Parse(context.Background())
	require.NoError(t, err)

	// The second invocation observes the installed snapshot.
	assert.Same(t, first, second)
}

func TestParsePoolCancelled(t *testing.T) {
	fix := uefixture.New(testProfile())
	fix.Name("Actor")
	fix.Finalize()

	store := storage.NewStore()
	parser := NewParser(NewPool(fix.Image(), fix.PoolBase(), fix.Profile), store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := parser.Parse(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, store.Names.IsInitialized())
}

// A header whose length exceeds the block remainder ends that block;
// the entries before it survive.
func TestParsePoolCorruptEntry(t *testing.T) {
	profile := testProfile()

	block := make([]byte, profile.NameBlockSize)
	// Entry 0: "Hi"
	binary.LittleEndian.PutUint16(block[0:], 2<<6)
	copy(block[2:], "Hi")
	// Entry 1 at offset 4: length 200 runs past the cursor.
	binary.LittleEndian.PutUint16(block[4:], 200<<6)

	blockAddr := uint64(0x300001000)
	header := make([]byte, 0x20)
	binary.LittleEndian.PutUint32(header[profile.NameCurrentBlockOffset:], 0)
	binary.LittleEndian.PutUint32(header[profile.NameCurrentCursorOffset:], 0x10)
	binary.LittleEndian.PutUint64(header[profile.NameBlocksOffset:], blockAddr)

	img := process_blob.NewProcessImage(1)
	img.AddSegment(0x300000000, header)
	img.AddSegment(0x300001000, block)

	store := storage.NewStore()
	table, err := NewParser(NewPool(img, 0x300000000, profile), store, nil).Parse(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, table.Count())
	assert.Equal(t, 1, table.Skipped())
	assert.Equal(t, "Hi", table.Resolve(0))
}
