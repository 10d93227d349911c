package objectarray

import (
	"context"
	"testing"

	"uedump/events"
	"uedump/namepool"
	"uedump/storage"
	"uedump/uefixture"
	"uedump/uelayout"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProfile() uelayout.Profile {
	profile, _ := uelayout.ProfileFor(5)
	profile.NameBlockSize = 0x800
	profile.ElementsPerChunk = 4
	return profile
}

// buildWorld assembles a minimal reflected hierarchy: the Package and
// Class meta-classes, the CoreUObject package with Object inside, the
// Engine package with Actor and a live actor instance.
func buildWorld(t *testing.T) (*uefixture.Fixture, *storage.Store) {
	t.Helper()

	fix := uefixture.New(testProfile())

	classClass := fix.AddObject("Class", nil, nil)
	classClass.SetClass(classClass)
	packageClass := fix.AddObject("Package", classClass, nil)

	corePkg := fix.AddObject("/Script/CoreUObject", packageClass, nil)
	objectClass := fix.AddObject("Object", classClass, corePkg)

	enginePkg := fix.AddObject("/Script/Engine", packageClass, nil)
	actorClass := fix.AddObject("Actor", classClass, enginePkg)
	actorClass.SetSuper(objectClass)

	fix.AddObject("DefaultActor", actorClass, enginePkg)

	fix.Finalize()

	store := storage.NewStore()
	pool := namepool.NewPool(fix.Image(), fix.PoolBase(), fix.Profile)
	_, err := namepool.NewParser(pool, store, nil).Parse(context.Background())
	require.NoError(t, err)

	return fix, store
}

func TestParseObjects(t *testing.T) {
	fix, store := buildWorld(t)
	img := fix.Image()

	bus := events.NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	table, err := NewParser(img, fix.GUObjectArrayBase(), fix.Profile, store, bus).Parse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, table.Count())
	assert.Equal(t, 0, table.Skipped())

	// Ids equal the target's internal indices, and the address index
	// round-trips every record.
	for _, rec := range table.All() {
		byAddr, ok := table.ByAddress(rec.Address)
		require.True(t, ok)
		assert.Equal(t, rec.ID, byAddr.ID)
	}

	// 7 objects at 4 per chunk means 2 chunks and one event each.
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
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[1].CurrentChunk)
	assert.Equal(t, 2, got[1].TotalChunks)
	assert.Equal(t, 7, got[1].CurrentItems)
}

func TestEnrichment(t *testing.T) {
	fix, store := buildWorld(t)
	img := fix.Image()

	table, err := NewParser(img, fix.GUObjectArrayBase(), fix.Profile, store, nil).Parse(context.Background())
	require.NoError(t, err)

	object, ok := table.ByAddress(fix.MustObject(3).Addr)
	require.True(t, ok)
	assert.Equal(t, "Object", object.Name)
	assert.Equal(t, "Class", object.TypeName)
	assert.Equal(t, "/Script/CoreUObject.Object", object.FullName)
	assert.Equal(t, "/Script/CoreUObject", object.Package)

	actor, ok := table.ByAddress(fix.MustObject(5).Addr)
	require.True(t, ok)
	assert.Equal(t, "/Script/Engine.Actor", actor.FullName)
	assert.Equal(t, "/Script/Engine", actor.Package)

	// The package object groups under itself.
	pkg, ok := table.ByAddress(fix.MustObject(2).Addr)
	require.True(t, ok)
	assert.Equal(t, "Package", pkg.TypeName)
	assert.Equal(t, "/Script/CoreUObject", pkg.Package)

	// Package index is installed alongside the table, sorted ascending.
	packages, err := store.Packages.MustGet()
	require.NoError(t, err)
	require.Len(t, packages, 2)
	assert.Equal(t, "/Script/CoreUObject", packages[0].Name)
	assert.Equal(t, "/Script/Engine", packages[1].Name)
}

func TestParseIdempotent(t *testing.T) {
	fix, store := buildWorld(t)
	img := fix.Image()

	parser := NewParser(img, fix.GUObjectArrayBase(), fix.Profile, store, nil)
	first, err := parser.Parse(context.Background())
	require.NoError(t, err)
	second, err := parser.Parse(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestParseRequiresNames(t *testing.T) {
	fix := uefixture.New(testProfile())
	fix.AddObject("Loose", nil, nil)
	fix.Finalize()

	store := storage.NewStore()
	_, err := NewParser(fix.Image(), fix.GUObjectArrayBase(), fix.Profile, store, nil).Parse(context.Background())
	var notReady *storage.NotReady
	require.ErrorAs(t, err, &notReady)
	assert.Equal(t, "NameTable", notReady.Component)
}

func TestParseCancelled(t *testing.T) {
	fix, store := buildWorld(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewParser(fix.Image(), fix.GUObjectArrayBase(), fix.Profile, store, nil).Parse(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, store.Objects.IsInitialized())
}
