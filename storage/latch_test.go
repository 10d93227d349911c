package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatchSetOnce(t *testing.T) {
	l := NewLatch[int]("test")

	assert.False(t, l.IsInitialized())
	_, ok := l.Get()
	assert.False(t, ok)

	require.NoError(t, l.Set(42))
	assert.True(t, l.IsInitialized())

	v, ok := l.Get()
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	err := l.Set(43)
	require.Error(t, err)
	var already *ErrAlreadySet
	assert.True(t, errors.As(err, &already))

	// The first value survives.
	v, _ = l.Get()
	assert.Equal(t, 42, v)
}

func TestLatchMustGet(t *testing.T) {
	l := NewLatch[string]("NameTable")

	_, err := l.MustGet()
	var notReady *NotReady
	require.True(t, errors.As(err, &notReady))
	assert.Equal(t, "NameTable", notReady.Component)

	require.NoError(t, l.Set("ready"))
	v, err := l.MustGet()
	require.NoError(t, err)
	assert.Equal(t, "ready", v)
}

func TestLatchWait(t *testing.T) {
	l := NewLatch[int]("test")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := l.Wait(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, 7, v)
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, l.Set(7))
	wg.Wait()
}

func TestLatchWaitCancelled(t *testing.T) {
	l := NewLatch[int]("test")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNameTableResolve(t *testing.T) {
	table := NewNameTable(map[uint32]string{0: "None", 7: "Actor"}, 1)

	assert.Equal(t, "Actor", table.Resolve(7))
	assert.Equal(t, "None", table.Resolve(999))
	assert.Equal(t, 2, table.Count())
	assert.Equal(t, 1, table.Skipped())

	_, found := table.Lookup(999)
	assert.False(t, found)
}

func TestObjectTableIndexes(t *testing.T) {
	records := []ObjectRecord{
		{ID: 0, Address: 0x1000, Name: "CoreUObject", TypeName: "Package", Package: "/Script/CoreUObject"},
		{ID: 1, Address: 0x2000, Name: "Object", TypeName: "Class", Package: "/Script/CoreUObject"},
		{ID: 5, Address: 0x3000, Name: "Actor", TypeName: "Class", Package: "/Script/Engine"},
	}
	table := NewObjectTable(records, 0)

	rec, ok := table.ByAddress(0x2000)
	require.True(t, ok)
	assert.Equal(t, uint32(1), rec.ID)

	// Index consistency: every record resolves back to its own id.
	for _, r := range table.All() {
		got, ok := table.ByAddress(r.Address)
		require.True(t, ok)
		assert.Equal(t, r.ID, got.ID)
	}

	// ByID handles holes in the id space.
	rec, ok = table.ByID(5)
	require.True(t, ok)
	assert.Equal(t, "Actor", rec.Name)

	_, ok = table.ByID(4)
	assert.False(t, ok)
}

func TestBuildPackagesSorted(t *testing.T) {
	records := []ObjectRecord{
		{ID: 0, Address: 0x1, Package: "/Script/Engine"},
		{ID: 1, Address: 0x2, Package: "/Script/CoreUObject"},
		{ID: 2, Address: 0x3, Package: "/Script/Engine"},
		{ID: 3, Address: 0x4, Package: ""},
	}
	packages := NewObjectTable(records, 0).BuildPackages()

	require.Len(t, packages, 2)
	assert.Equal(t, "/Script/CoreUObject", packages[0].Name)
	assert.Equal(t, "/Script/Engine", packages[1].Name)
	assert.Len(t, packages[1].ObjectIDs, 2)
}

func TestObjectRecordKinds(t *testing.T) {
	cases := []struct {
		typeName string
		class    bool
		strct    bool
		enum     bool
		fn       bool
	}{
		{"Class", true, false, false, false},
		{"BlueprintGeneratedClass", true, false, false, false},
		{"ScriptStruct", false, true, false, false},
		{"Enum", false, false, true, false},
		{"UserDefinedEnum", false, false, true, false},
		{"Function", false, false, false, true},
	}
	for _, tc := range cases {
		rec := ObjectRecord{TypeName: tc.typeName}
		assert.Equal(t, tc.class, rec.IsClass(), tc.typeName)
		assert.Equal(t, tc.strct, rec.IsStruct(), tc.typeName)
		assert.Equal(t, tc.enum, rec.IsEnum(), tc.typeName)
		assert.Equal(t, tc.fn, rec.IsFunction(), tc.typeName)
	}
}
