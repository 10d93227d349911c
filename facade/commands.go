package facade

import (
	"context"
	"fmt"
	"strconv"

	"uedump/namepool"
	"uedump/objectarray"
	"uedump/process"
	"uedump/query"
	"uedump/uemodel"

	"github.com/pkg/errors"
)

// ShowBaseAddress runs all three locators and renders the text block
// the UI shows on the base address page.
func (c *Core) ShowBaseAddress() (string, error) {
	s, err := c.Session()
	if err != nil {
		return "", err
	}

	fname, err := s.locator.NamePool()
	if err != nil {
		return "", errors.Wrap(err, "failed to get FNamePool")
	}
	guobj, err := s.locator.GUObjectArray()
	if err != nil {
		return "", errors.Wrap(err, "failed to get GUObjectArray")
	}
	gworld, err := s.locator.GWorld()
	if err != nil {
		return "", errors.Wrap(err, "failed to get GWorld")
	}

	return fmt.Sprintf("[ FNamePool ] %s\n[ GUObject  ] %s\n[ GWorld    ] %s",
		fname.ToString(), guobj.ToString(), gworld.ToString()), nil
}

// GetUEVersion returns the major version as a string.
func (c *Core) GetUEVersion() (string, error) {
	s, err := c.Session()
	if err != nil {
		return "", err
	}
	major, err := s.Store.UEVersion.MustGet()
	if err != nil {
		return "", err
	}
	return strconv.Itoa(major), nil
}

func (c *Core) GetFNamePoolAddress() (process.ProcessMemoryAddress, error) {
	s, err := c.Session()
	if err != nil {
		return 0, err
	}
	return s.locator.NamePool()
}

func (c *Core) GetGUObjectArrayAddress() (process.ProcessMemoryAddress, error) {
	s, err := c.Session()
	if err != nil {
		return 0, err
	}
	return s.locator.GUObjectArray()
}

func (c *Core) GetGWorldAddress() (process.ProcessMemoryAddress, error) {
	s, err := c.Session()
	if err != nil {
		return 0, err
	}
	return s.locator.GWorld()
}

// ParseFNamePool walks the whole pool and returns the name count.
// Concurrent invocations coalesce onto one walk.
func (c *Core) ParseFNamePool(ctx context.Context) (int, error) {
	s, err := c.Session()
	if err != nil {
		return 0, err
	}
	pool, err := s.pool()
	if err != nil {
		return 0, err
	}

	err = s.namesWork.do(ctx, func(ctx context.Context) error {
		parser := namepool.NewParser(pool, s.Store, c.bus)
		_, err := parser.Parse(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}

	table, err := s.Store.Names.MustGet()
	if err != nil {
		return 0, err
	}
	return table.Count(), nil
}

// ParseGUObjectArray walks the registry and returns the object count.
// The name pool is parsed first when no name table is installed yet.
func (c *Core) ParseGUObjectArray(ctx context.Context) (int, error) {
	s, err := c.Session()
	if err != nil {
		return 0, err
	}
	base, err := s.Store.GUObjectArray.MustGet()
	if err != nil {
		return 0, err
	}
	if !s.Store.Names.IsInitialized() {
		if _, err := c.ParseFNamePool(ctx); err != nil {
			return 0, err
		}
	}

	err = s.objectsWork.do(ctx, func(ctx context.Context) error {
		parser := objectarray.NewParser(s.Proc, base, s.Profile, s.Store, c.bus)
		_, err := parser.Parse(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}

	table, err := s.Store.Objects.MustGet()
	if err != nil {
		return 0, err
	}
	return table.Count(), nil
}

// GetPackages lists every package of the parsed snapshot.
func (c *Core) GetPackages() ([]query.PackageInfo, error) {
	s, err := c.Session()
	if err != nil {
		return nil, err
	}
	engine, err := s.engine()
	if err != nil {
		return nil, err
	}
	return engine.ListPackages(), nil
}

// GetObjects lists one package's objects filtered by category.
func (c *Core) GetObjects(packageName, category string) ([]query.ObjectSummary, error) {
	s, err := c.Session()
	if err != nil {
		return nil, err
	}
	engine, err := s.engine()
	if err != nil {
		return nil, err
	}
	return engine.ListObjects(packageName, category)
}

// GlobalSearch matches query against object or member names.
func (c *Core) GlobalSearch(q string, mode query.SearchMode) ([]query.SearchResult, error) {
	s, err := c.Session()
	if err != nil {
		return nil, err
	}
	engine, err := s.engine()
	if err != nil {
		return nil, err
	}
	return engine.GlobalSearch(q, mode), nil
}

// GetObjectDetails builds the reflection model of one object.
func (c *Core) GetObjectDetails(addr process.ProcessMemoryAddress) (*uemodel.DetailedObjectInfo, error) {
	s, err := c.Session()
	if err != nil {
		return nil, err
	}
	engine, err := s.engine()
	if err != nil {
		return nil, err
	}
	return engine.ObjectDetails(addr)
}

// AnalyzeFName resolves one name id, from the table when parsed, live
// from the pool otherwise.
func (c *Core) AnalyzeFName(id uint32) (string, error) {
	s, err := c.Session()
	if err != nil {
		return "", err
	}
	if table, ok := s.Store.Names.Get(); ok {
		if name, found := table.Lookup(id); found {
			return name, nil
		}
	}
	pool, err := s.pool()
	if err != nil {
		return "", err
	}
	name, err := pool.Resolve(id)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read FName %d", id)
	}
	return name, nil
}

// AddInspector returns the inheritance chain of a live instance,
// leaf-most class first.
func (c *Core) AddInspector(instanceAddrHex string) ([]query.InstanceHierarchyNode, error) {
	s, err := c.Session()
	if err != nil {
		return nil, err
	}
	addr, err := parseHexAddress(instanceAddrHex)
	if err != nil {
		return nil, err
	}
	engine, err := s.engine()
	if err != nil {
		return nil, err
	}
	return engine.InstanceHierarchy(addr)
}

// GetInstanceDetails resolves every property of the class off a live
// instance.
func (c *Core) GetInstanceDetails(instanceAddrHex, classAddrHex string) ([]query.InstancePropertySample, error) {
	s, err := c.Session()
	if err != nil {
		return nil, err
	}
	instanceAddr, err := parseHexAddress(instanceAddrHex)
	if err != nil {
		return nil, err
	}
	classAddr, err := parseHexAddress(classAddrHex)
	if err != nil {
		return nil, err
	}
	engine, err := s.engine()
	if err != nil {
		return nil, err
	}
	return engine.InstanceDetails(instanceAddr, classAddr)
}

// GetArrayElements expands count container elements at the given data
// address.
func (c *Core) GetArrayElements(arrayAddrHex, innerType string, count int) ([]query.InstancePropertySample, error) {
	s, err := c.Session()
	if err != nil {
		return nil, err
	}
	addr, err := parseHexAddress(arrayAddrHex)
	if err != nil {
		return nil, err
	}
	engine, err := s.engine()
	if err != nil {
		return nil, err
	}
	return engine.ArrayElements(addr, innerType, count)
}

// SearchObjectInstances lists every record whose class chain contains
// the hunted class.
func (c *Core) SearchObjectInstances(classAddrHex string) ([]query.InstanceHit, error) {
	s, err := c.Session()
	if err != nil {
		return nil, err
	}
	addr, err := parseHexAddress(classAddrHex)
	if err != nil {
		return nil, err
	}
	engine, err := s.engine()
	if err != nil {
		return nil, err
	}
	return engine.SearchInstances(addr)
}
