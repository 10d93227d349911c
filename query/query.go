// Package query answers the read-side questions against the parsed
// snapshot: package browsing, global search, object details, live
// instance resolution and instance hunting.
package query

import (
	"fmt"
	"sort"
	"strings"

	"uedump/process"
	"uedump/storage"
	"uedump/uelayout"
	"uedump/uemodel"
)

// NotFound reports a lookup miss: the object, name id or package does
// not exist in the snapshot.
type NotFound struct {
	What string
	Key  string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s %q not found", e.What, e.Key)
}

// SearchLimit caps global search results.
const SearchLimit = 500

// PackageInfo is one entry of the package listing.
type PackageInfo struct {
	Name        string `json:"name"`
	ObjectCount int    `json:"object_count"`
}

// ObjectSummary is one entry of a package object listing.
type ObjectSummary struct {
	Address  process.ProcessMemoryAddress `json:"address"`
	Name     string                       `json:"name"`
	FullName string                       `json:"full_name"`
	TypeName string                       `json:"type_name"`
}

// SearchResult is one global search hit. MemberName is set only for
// member-mode hits.
type SearchResult struct {
	Package    string                       `json:"package"`
	ObjectName string                       `json:"object_name"`
	TypeName   string                       `json:"type_name"`
	Address    process.ProcessMemoryAddress `json:"address"`
	MemberName string                       `json:"member_name,omitempty"`
}

// InstanceHit is one live instance of a hunted class.
type InstanceHit struct {
	InstanceAddress string `json:"instance_address"`
	ObjectName      string `json:"object_name"`
}

// InstanceHierarchyNode is one class of an instance's inheritance
// chain, leaf-most first.
type InstanceHierarchyNode struct {
	ClassName    string `json:"class_name"`
	ClassAddress string `json:"class_address"`
	TypeName     string `json:"type_name"`
}

// SearchMode selects what global search matches against.
type SearchMode string

const (
	SearchObjects SearchMode = "Object"
	SearchMembers SearchMode = "Member"
)

// Engine runs queries against one attach's snapshot, re-entering the
// remote reader for live values.
type Engine struct {
	proc     process.Process
	profile  uelayout.Profile
	names    *storage.NameTable
	objects  *storage.ObjectTable
	packages []storage.Package
	builder  *uemodel.Builder
}

func NewEngine(proc process.Process, profile uelayout.Profile, names *storage.NameTable, objects *storage.ObjectTable, packages []storage.Package, moduleBase process.ProcessMemoryAddress) *Engine {
	return &Engine{
		proc:     proc,
		profile:  profile,
		names:    names,
		objects:  objects,
		packages: packages,
		builder:  uemodel.NewBuilder(proc, profile, names, objects, moduleBase),
	}
}

// ListPackages returns every package sorted ascending by name.
func (e *Engine) ListPackages() []PackageInfo {
	out := make([]PackageInfo, 0, len(e.packages))
	for _, pkg := range e.packages {
		out = append(out, PackageInfo{Name: pkg.Name, ObjectCount: len(pkg.ObjectIDs)})
	}
	return out
}

func matchesCategory(rec *storage.ObjectRecord, category string) bool {
	switch category {
	case "Class":
		return rec.IsClass()
	case "Struct":
		return rec.IsStruct()
	case "Enum":
		return rec.IsEnum()
	case "Function":
		return rec.IsFunction()
	}
	return false
}

// ListObjects returns the objects of one package filtered by category,
// ordered by name.
func (e *Engine) ListObjects(packageName, category string) ([]ObjectSummary, error) {
	var pkg *storage.Package
	for i := range e.packages {
		if e.packages[i].Name == packageName {
			pkg = &e.packages[i]
			break
		}
	}
	if pkg == nil {
		return nil, &NotFound{What: "package", Key: packageName}
	}

	var out []ObjectSummary
	for _, id := range pkg.ObjectIDs {
		rec, ok := e.objects.ByID(id)
		if !ok || !matchesCategory(rec, category) {
			continue
		}
		out = append(out, ObjectSummary{
			Address:  rec.Address,
			Name:     rec.Name,
			FullName: rec.FullName,
			TypeName: rec.TypeName,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func isSearchableType(rec *storage.ObjectRecord) bool {
	return rec.IsClass() || rec.IsStruct() || rec.IsEnum() || rec.IsFunction()
}

// GlobalSearch matches query case-insensitively against object names
// (object mode) or against the member names of every class, struct and
// enum (member mode). Results are ordered packages ascending, then
// object name ascending, then member ordinal, capped at SearchLimit.
func (e *Engine) GlobalSearch(query string, mode SearchMode) []SearchResult {
	needle := strings.ToLower(query)

	ordered := make([]*storage.ObjectRecord, 0, e.objects.Count())
	all := e.objects.All()
	for i := range all {
		if isSearchableType(&all[i]) {
			ordered = append(ordered, &all[i])
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Package != ordered[j].Package {
			return ordered[i].Package < ordered[j].Package
		}
		return ordered[i].Name < ordered[j].Name
	})

	var results []SearchResult
	for _, rec := range ordered {
		if len(results) >= SearchLimit {
			break
		}
		switch mode {
		case SearchMembers:
			results = e.searchMembers(rec, needle, results)
		default:
			if strings.Contains(strings.ToLower(rec.Name), needle) {
				results = append(results, SearchResult{
					Package:    rec.Package,
					ObjectName: rec.Name,
					TypeName:   rec.TypeName,
					Address:    rec.Address,
				})
			}
		}
	}
	return results
}

func (e *Engine) searchMembers(rec *storage.ObjectRecord, needle string, results []SearchResult) []SearchResult {
	appendHit := func(member string) bool {
		if len(results) >= SearchLimit {
			return false
		}
		results = append(results, SearchResult{
			Package:    rec.Package,
			ObjectName: rec.Name,
			TypeName:   rec.TypeName,
			Address:    rec.Address,
			MemberName: member,
		})
		return true
	}

	switch {
	case rec.IsClass() || rec.IsStruct():
		for _, prop := range e.builder.Properties(rec.Address) {
			if strings.Contains(strings.ToLower(prop.Name), needle) {
				if !appendHit(prop.Name) {
					return results
				}
			}
		}
	case rec.IsEnum():
		for _, entry := range e.builder.EnumValues(rec.Address) {
			if strings.Contains(strings.ToLower(entry.Name), needle) {
				if !appendHit(entry.Name) {
					return results
				}
			}
		}
	}
	return results
}

// ObjectDetails builds the full model for the object at addr.
func (e *Engine) ObjectDetails(addr process.ProcessMemoryAddress) (*uemodel.DetailedObjectInfo, error) {
	rec, ok := e.objects.ByAddress(addr)
	if !ok {
		return nil, &NotFound{What: "object", Key: addr.Hex()}
	}
	return e.builder.Details(rec), nil
}

// SearchInstances scans the object table for every record whose class
// is classAddr or whose class chain contains it.
func (e *Engine) SearchInstances(classAddr process.ProcessMemoryAddress) ([]InstanceHit, error) {
	if _, ok := e.objects.ByAddress(classAddr); !ok {
		return nil, &NotFound{What: "class", Key: classAddr.Hex()}
	}

	superOf := func(addr process.ProcessMemoryAddress) process.ProcessMemoryAddress {
		return e.proc.ReadPOINTER2(addr + process.ProcessMemoryAddress(e.profile.SuperOffset))
	}

	var hits []InstanceHit
	all := e.objects.All()
	for i := range all {
		rec := &all[i]
		if rec.ClassPtr == 0 {
			continue
		}
		match := rec.ClassPtr == classAddr
		if !match {
			// Walk the class chain; depth-capped like every Super walk.
			cls := superOf(rec.ClassPtr)
			for depth := 0; cls != 0 && depth < 64; depth++ {
				if cls == classAddr {
					match = true
					break
				}
				cls = superOf(cls)
			}
		}
		if match {
			hits = append(hits, InstanceHit{
				InstanceAddress: rec.Address.Hex(),
				ObjectName:      rec.Name,
			})
		}
	}
	return hits, nil
}

// InstanceHierarchy reads the instance's class pointer and returns the
// inheritance chain from its concrete class up to the root.
func (e *Engine) InstanceHierarchy(instanceAddr process.ProcessMemoryAddress) ([]InstanceHierarchyNode, error) {
	classPtr, err := e.proc.ReadPOINTER(instanceAddr + process.ProcessMemoryAddress(e.profile.ClassOffset))
	if err != nil {
		return nil, process.FaultField(instanceAddr, 8, "ClassPrivate", err)
	}
	if classPtr == 0 {
		return nil, &NotFound{What: "instance class", Key: instanceAddr.Hex()}
	}

	var nodes []InstanceHierarchyNode
	current := classPtr
	for depth := 0; current != 0 && depth < 64; depth++ {
		rec, ok := e.objects.ByAddress(current)
		if !ok {
			break
		}
		nodes = append(nodes, InstanceHierarchyNode{
			ClassName:    rec.Name,
			ClassAddress: rec.Address.Hex(),
			TypeName:     rec.TypeName,
		})
		current = e.proc.ReadPOINTER2(current + process.ProcessMemoryAddress(e.profile.SuperOffset))
	}
	if len(nodes) == 0 {
		return nil, &NotFound{What: "class", Key: classPtr.Hex()}
	}
	return nodes, nil
}
