package facade

import (
	"context"
	"errors"
	"sync"
	"testing"

	"uedump/process"
	"uedump/query"
	"uedump/storage"
	"uedump/uefixture"
	"uedump/uelayout"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const instanceBase = process.ProcessMemoryAddress(0x500000000)

// buildTarget assembles a fixture with the default UE5 profile so the
// attach-time profile selection matches the image layout.
func buildTarget(t *testing.T) (*uefixture.Fixture, *Core) {
	t.Helper()

	profile, _ := uelayout.ProfileFor(5)
	fix := uefixture.New(profile)

	classClass := fix.AddObject("Class", nil, nil)
	classClass.SetClass(classClass)
	packageClass := fix.AddObject("Package", classClass, nil)
	corePkg := fix.AddObject("/Script/CoreUObject", packageClass, nil)
	enginePkg := fix.AddObject("/Script/Engine", packageClass, nil)

	objectClass := fix.AddObject("Object", classClass, corePkg)
	actorClass := fix.AddObject("Actor", classClass, enginePkg)
	actorClass.SetSuper(objectClass)
	actorClass.AddField(uefixture.Prop{Name: "Health", TypeName: "IntProperty", Offset: 0x30, ElementSize: 4})
	fix.AddObject("DefaultActor", actorClass, enginePkg)

	fix.Finalize()

	img := fix.Image()
	core := NewCore(
		func() process.Process { return img },
		func() ([]process.ProcessInfo, error) {
			return []process.ProcessInfo{{PID: 4242, Name: "FixtureGame.exe"}}, nil
		},
	)
	return fix, core
}

// attach also seeds the discovery latches: the fixture has no planted
// signatures, so tests install the bases the way a successful scan
// would.
func attach(t *testing.T, fix *uefixture.Fixture, core *Core) *Session {
	t.Helper()

	_, err := core.AttachToProcess(4242, "FixtureGame.exe")
	require.NoError(t, err)

	s, err := core.Session()
	require.NoError(t, err)
	require.NoError(t, s.Store.NamePoolBase.Set(fix.PoolBase()))
	require.NoError(t, s.Store.GUObjectArray.Set(fix.GUObjectArrayBase()))
	return s
}

func TestNotAttached(t *testing.T) {
	_, core := buildTarget(t)

	_, err := core.ShowBaseAddress()
	assert.ErrorIs(t, err, ErrNotAttached)
	_, err = core.GetPackages()
	assert.ErrorIs(t, err, ErrNotAttached)
	_, err = core.ParseFNamePool(context.Background())
	assert.ErrorIs(t, err, ErrNotAttached)
}

func TestFetchSystemProcesses(t *testing.T) {
	_, core := buildTarget(t)
	procs, err := core.FetchSystemProcesses()
	require.NoError(t, err)
	require.Len(t, procs, 1)
	assert.Equal(t, process.ProcessID(4242), procs[0].PID)
}

func TestParseRequiresDiscovery(t *testing.T) {
	fix, core := buildTarget(t)
	_ = fix

	_, err := core.AttachToProcess(4242, "FixtureGame.exe")
	require.NoError(t, err)

	_, err = core.ParseFNamePool(context.Background())
	var notReady *storage.NotReady
	require.ErrorAs(t, err, &notReady)
	assert.Equal(t, "NamePool", notReady.Component)
}

func TestQueriesRequireParse(t *testing.T) {
	fix, core := buildTarget(t)
	attach(t, fix, core)

	_, err := core.GetPackages()
	var notReady *storage.NotReady
	require.ErrorAs(t, err, &notReady)
}

func TestFullPipeline(t *testing.T) {
	fix, core := buildTarget(t)
	attach(t, fix, core)
	ctx := context.Background()

	names, err := core.ParseFNamePool(ctx)
	require.NoError(t, err)
	assert.Equal(t, fix.NameCount(), names)

	name, err := core.AnalyzeFName(0)
	require.NoError(t, err)
	assert.Equal(t, "None", name)

	objects, err := core.ParseGUObjectArray(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, objects)

	packages, err := core.GetPackages()
	require.NoError(t, err)
	require.Len(t, packages, 2)
	assert.Equal(t, "/Script/CoreUObject", packages[0].Name)

	list, err := core.GetObjects("/Script/Engine", "Class")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Actor", list[0].Name)

	hits, err := core.GlobalSearch("Actor", query.SearchObjects)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	details, err := core.GetObjectDetails(list[0].Address)
	require.NoError(t, err)
	assert.Equal(t, "Actor", details.Name)
	require.Len(t, details.Properties, 1)
	assert.Equal(t, "Health", details.Properties[0].Name)
}

// ParseGUObjectArray pulls the name table in when it is missing.
func TestParseObjectsChainsNames(t *testing.T) {
	fix, core := buildTarget(t)
	s := attach(t, fix, core)

	_, err := core.ParseGUObjectArray(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Store.Names.IsInitialized())
	assert.True(t, s.Store.Objects.IsInitialized())
}

// Concurrent parse invocations coalesce onto one walk and agree on the
// result.
func TestParseCoalesces(t *testing.T) {
	fix, core := buildTarget(t)
	attach(t, fix, core)

	const callers = 4
	counts := make([]int, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			counts[i], errs[i] = core.ParseFNamePool(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, counts[0], counts[i])
	}
}

func TestInstanceCommands(t *testing.T) {
	fix, core := buildTarget(t)
	attach(t, fix, core)
	ctx := context.Background()

	_, err := core.ParseGUObjectArray(ctx)
	require.NoError(t, err)

	actors, err := core.GetObjects("/Script/Engine", "Class")
	require.NoError(t, err)
	actorAddr := actors[0].Address

	instances, err := core.SearchObjectInstances(actorAddr.Hex())
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "DefaultActor", instances[0].ObjectName)

	hierarchy, err := core.AddInspector(instances[0].InstanceAddress)
	require.NoError(t, err)
	require.Len(t, hierarchy, 2)
	assert.Equal(t, "Actor", hierarchy[0].ClassName)
	assert.Equal(t, "Object", hierarchy[1].ClassName)
}

func TestAnalyzeObject(t *testing.T) {
	fix, core := buildTarget(t)
	attach(t, fix, core)
	ctx := context.Background()

	_, err := core.ParseGUObjectArray(ctx)
	require.NoError(t, err)

	actors, err := core.GetObjects("/Script/Engine", "Class")
	require.NoError(t, err)

	info, err := core.AnalyzeObject(actors[0].Address.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Actor", info.Name)
	assert.Equal(t, "Class", info.TypeName)
	assert.NotEmpty(t, info.HeaderDump)
}

func TestDetachInvalidates(t *testing.T) {
	fix, core := buildTarget(t)
	attach(t, fix, core)

	core.Detach()
	_, err := core.GetPackages()
	assert.ErrorIs(t, err, ErrNotAttached)

	var parseErr error
	_, parseErr = core.ParseFNamePool(context.Background())
	assert.True(t, errors.Is(parseErr, ErrNotAttached))
}

func TestParseHexAddress(t *testing.T) {
	addr, err := parseHexAddress("0x1A0")
	require.NoError(t, err)
	assert.Equal(t, process.ProcessMemoryAddress(0x1A0), addr)

	addr, err = parseHexAddress("1a0")
	require.NoError(t, err)
	assert.Equal(t, process.ProcessMemoryAddress(0x1A0), addr)

	_, err = parseHexAddress("zz")
	assert.Error(t, err)
}
