package storage

import (
	"sort"
	"strings"

	"uedump/process"
)

// ObjectRecord is one slot of the target's global object registry. The
// ID equals the target's own InternalIndex for the whole attach.
type ObjectRecord struct {
	ID       uint32
	Address  process.ProcessMemoryAddress
	ClassPtr process.ProcessMemoryAddress
	OuterPtr process.ProcessMemoryAddress
	NameID   uint32
	Flags    uint32

	// Enrichment pass results
	Name     string
	TypeName string
	FullName string
	Package  string
}

// IsClass reports a Class-like record (UClass, BlueprintGeneratedClass, ...)
// excluding functions.
func (r *ObjectRecord) IsClass() bool {
	return strings.Contains(r.TypeName, "Class") && !strings.Contains(r.TypeName, "Function")
}

func (r *ObjectRecord) IsStruct() bool {
	return strings.Contains(r.TypeName, "Struct") && !strings.Contains(r.TypeName, "Function")
}

func (r *ObjectRecord) IsEnum() bool {
	return strings.Contains(r.TypeName, "Enum")
}

func (r *ObjectRecord) IsFunction() bool {
	return strings.Contains(r.TypeName, "Function")
}

// Package groups the objects sharing one root outer.
type Package struct {
	Name      string
	ObjectIDs []uint32
}

// ObjectTable is the immutable object registry snapshot plus its
// address index. Built once per attach by the object array parser.
type ObjectTable struct {
	records []ObjectRecord
	byAddr  map[process.ProcessMemoryAddress]int
	skipped int
}

func NewObjectTable(records []ObjectRecord, skipped int) *ObjectTable {
	byAddr := make(map[process.ProcessMemoryAddress]int, len(records))
	for i := range records {
		if records[i].Address != 0 {
			byAddr[records[i].Address] = i
		}
	}
	return &ObjectTable{records: records, byAddr: byAddr, skipped: skipped}
}

func (t *ObjectTable) Count() int {
	if t == nil {
		return 0
	}
	return len(t.records)
}

func (t *ObjectTable) Skipped() int {
	if t == nil {
		return 0
	}
	return t.skipped
}

// ByAddress resolves an object by its remote address.
func (t *ObjectTable) ByAddress(addr process.ProcessMemoryAddress) (*ObjectRecord, bool) {
	if t == nil {
		return nil, false
	}
	i, ok := t.byAddr[addr]
	if !ok {
		return nil, false
	}
	return &t.records[i], true
}

// ByID resolves an object by its slot index.
func (t *ObjectTable) ByID(id uint32) (*ObjectRecord, bool) {
	if t == nil {
		return nil, false
	}
	// Records are dense but ids may have holes where slots were empty;
	// fall back to a scan only when the direct index misses.
	if int(id) < len(t.records) && t.records[id].ID == id {
		return &t.records[id], true
	}
	for i := range t.records {
		if t.records[i].ID == id {
			return &t.records[i], true
		}
	}
	return nil, false
}

// All returns the record slice. Callers must not mutate it.
func (t *ObjectTable) All() []ObjectRecord {
	if t == nil {
		return nil
	}
	return t.records
}

// BuildPackages groups records by their Package field, sorted ascending
// by package name.
func (t *ObjectTable) BuildPackages() []Package {
	groups := make(map[string][]uint32)
	for i := range t.records {
		pkg := t.records[i].Package
		if pkg == "" {
			continue
		}
		groups[pkg] = append(groups[pkg], t.records[i].ID)
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	packages := make([]Package, 0, len(names))
	for _, name := range names {
		packages = append(packages, Package{Name: name, ObjectIDs: groups[name]})
	}
	return packages
}

// Store groups every latch of one attach. Parsers are the only writers
// of their latches; detach drops the whole Store.
type Store struct {
	UEVersion     *Latch[int]
	NamePoolBase  *Latch[process.ProcessMemoryAddress]
	GUObjectArray *Latch[process.ProcessMemoryAddress]
	GWorld        *Latch[process.ProcessMemoryAddress]
	Names         *Latch[*NameTable]
	Objects       *Latch[*ObjectTable]
	Packages      *Latch[[]Package]
}

func NewStore() *Store {
	return &Store{
		UEVersion:     NewLatch[int]("UEVersion"),
		NamePoolBase:  NewLatch[process.ProcessMemoryAddress]("NamePool"),
		GUObjectArray: NewLatch[process.ProcessMemoryAddress]("GUObjectArray"),
		GWorld:        NewLatch[process.ProcessMemoryAddress]("GWorld"),
		Names:         NewLatch[*NameTable]("NameTable"),
		Objects:       NewLatch[*ObjectTable]("ObjectTable"),
		Packages:      NewLatch[[]Package]("PackageIndex"),
	}
}
