// Package objectarray walks the target's global object registry, a
// chunked pointer table, and installs the object table snapshot.
package objectarray

import (
	"context"
	"strings"

	"uedump/events"
	"uedump/process"
	"uedump/storage"
	"uedump/uelayout"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Parser walks the chunk table and enriches the records. It is the only
// writer of the Objects and Packages latches.
type Parser struct {
	proc    process.Process
	base    process.ProcessMemoryAddress
	profile uelayout.Profile
	store   *storage.Store
	bus     *events.Bus
	log     *logger.Logger
}

func NewParser(proc process.Process, base process.ProcessMemoryAddress, profile uelayout.Profile, store *storage.Store, bus *events.Bus) *Parser {
	return &Parser{
		proc:    proc,
		base:    base,
		profile: profile,
		store:   store,
		bus:     bus,
		log:     logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "guobject-array")),
	}
}

// header mirrors the registry header fields the walk needs.
type header struct {
	Objects     process.ProcessMemoryAddress
	MaxElements int32
	NumElements int32
	MaxChunks   int32
	NumChunks   int32
}

func (p *Parser) readHeader() (header, error) {
	var h header
	var err error
	if h.Objects, err = p.proc.ReadPOINTER(p.base + process.ProcessMemoryAddress(p.profile.ObjectsOffset)); err != nil {
		return h, process.FaultField(p.base, 8, "Objects", err)
	}
	if h.MaxElements, err = p.proc.ReadINT32(p.base + process.ProcessMemoryAddress(p.profile.MaxElementsOffset)); err != nil {
		return h, process.FaultField(p.base, 4, "MaxElements", err)
	}
	if h.NumElements, err = p.proc.ReadINT32(p.base + process.ProcessMemoryAddress(p.profile.NumElementsOffset)); err != nil {
		return h, process.FaultField(p.base, 4, "NumElements", err)
	}
	if h.MaxChunks, err = p.proc.ReadINT32(p.base + process.ProcessMemoryAddress(p.profile.MaxChunksOffset)); err != nil {
		return h, process.FaultField(p.base, 4, "MaxChunks", err)
	}
	if h.NumChunks, err = p.proc.ReadINT32(p.base + process.ProcessMemoryAddress(p.profile.NumChunksOffset)); err != nil {
		return h, process.FaultField(p.base, 4, "NumChunks", err)
	}
	return h, nil
}

// Parse walks every chunk, validates each slot, then runs the
// enrichment pass. Cancellation is checked at chunk boundaries; a
// cancelled parse does not install its latch. Slot-level faults are
// counted and skipped, never fatal.
func (p *Parser) Parse(ctx context.Context) (*storage.ObjectTable, error) {
	if table, ok := p.store.Objects.Get(); ok {
		p.log.Infoln("GUObjectArray already parsed,", table.Count(), "objects")
		return table, nil
	}

	names, err := p.store.Names.MustGet()
	if err != nil {
		return nil, err
	}

	h, err := p.readHeader()
	if err != nil {
		return nil, err
	}
	if h.NumChunks <= 0 || h.NumElements < 0 {
		return nil, &storage.NotReady{Component: "GUObjectArray"}
	}

	p.log.Infoln("Parsing GUObjectArray:", h.NumChunks, "chunks,", h.NumElements, "objects")

	perChunk := int(p.profile.ElementsPerChunk)
	itemSize := int(p.profile.UObjectItemSize)

	var records []storage.ObjectRecord
	skipped := 0

	for chunk := 0; chunk < int(h.NumChunks); chunk++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chunkPtr := p.proc.ReadPOINTER2(h.Objects + process.ProcessMemoryAddress(8*chunk))
		if chunkPtr == 0 {
			p.publish(chunk+1, int(h.NumChunks), len(records), int(h.NumElements))
			continue
		}

		items := perChunk
		if remaining := int(h.NumElements) - chunk*perChunk; remaining < items {
			items = remaining
		}
		if items <= 0 {
			p.publish(chunk+1, int(h.NumChunks), len(records), int(h.NumElements))
			continue
		}

		blob, err := p.proc.ReadBlob(chunkPtr, process.ProcessMemorySize(items*itemSize))
		if err != nil {
			p.log.Warn("Chunk unreadable, skipping chunk ", chunk)
			skipped += items
			p.publish(chunk+1, int(h.NumChunks), len(records), int(h.NumElements))
			continue
		}

		for elem := 0; elem < items; elem++ {
			globalIdx := uint32(chunk*perChunk + elem)
			objAddr := blob.OffsetPOINTER2(process.ProcessMemoryAddress(elem*itemSize) + process.ProcessMemoryAddress(p.profile.UObjectItemObject))
			if objAddr == 0 {
				continue
			}

			rec, ok := p.readObject(globalIdx, objAddr)
			if !ok {
				skipped++
				continue
			}
			records = append(records, rec)
		}

		p.publish(chunk+1, int(h.NumChunks), len(records), int(h.NumElements))
	}

	p.enrich(records, names)

	table := storage.NewObjectTable(records, skipped)
	if err := p.store.Objects.Set(table); err != nil {
		installed, _ := p.store.Objects.Get()
		return installed, nil
	}
	if packages := table.BuildPackages(); p.store.Packages.Set(packages) == nil {
		p.log.Infoln("Indexed", len(packages), "packages")
	}

	p.log.Infoln("GUObjectArray parsed:", table.Count(), "objects,", skipped, "skipped")
	return table, nil
}

// readObject reads and cross-validates one UObject header.
func (p *Parser) readObject(globalIdx uint32, objAddr process.ProcessMemoryAddress) (storage.ObjectRecord, bool) {
	var rec storage.ObjectRecord

	head, err := p.proc.ReadBlob(objAddr, process.ProcessMemorySize(p.profile.OuterOffset+8))
	if err != nil {
		return rec, false
	}

	internalIndex, err := head.OffsetUINT32(process.ProcessMemoryAddress(p.profile.InternalIndexOffset))
	if err != nil || internalIndex != globalIdx {
		return rec, false
	}

	classPtr := head.OffsetPOINTER2(process.ProcessMemoryAddress(p.profile.ClassOffset))
	outerPtr := head.OffsetPOINTER2(process.ProcessMemoryAddress(p.profile.OuterOffset))
	if classPtr != 0 && !p.proc.IsPointer(classPtr) {
		return rec, false
	}
	if outerPtr != 0 && !p.proc.IsPointer(outerPtr) {
		return rec, false
	}

	nameID, _ := head.OffsetUINT32(process.ProcessMemoryAddress(p.profile.NameIDOffset))
	flags, _ := head.OffsetUINT32(process.ProcessMemoryAddress(p.profile.ObjectFlagsOffset))

	rec = storage.ObjectRecord{
		ID:       globalIdx,
		Address:  objAddr,
		ClassPtr: classPtr,
		OuterPtr: outerPtr,
		NameID:   nameID,
		Flags:    flags,
	}
	return rec, true
}

func (p *Parser) publish(chunk, totalChunks, count, total int) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(events.Progress{
		Name:         events.GUObjectArrayProgress,
		CurrentChunk: chunk,
		TotalChunks:  totalChunks,
		CurrentItems: count,
		TotalItems:   total,
	})
}

// enrich resolves names, type names, full names and packages for every
// record. All cross-references go through the address index; a class
// outside the table falls back to one remote read of its name id.
func (p *Parser) enrich(records []storage.ObjectRecord, names *storage.NameTable) {
	byAddr := make(map[process.ProcessMemoryAddress]*storage.ObjectRecord, len(records))
	for i := range records {
		byAddr[records[i].Address] = &records[i]
	}

	resolveName := func(addr process.ProcessMemoryAddress) string {
		if rec, ok := byAddr[addr]; ok {
			return names.Resolve(rec.NameID)
		}
		id, err := p.proc.ReadUINT32(addr + process.ProcessMemoryAddress(p.profile.NameIDOffset))
		if err != nil {
			return "None"
		}
		return names.Resolve(id)
	}

	for i := range records {
		rec := &records[i]
		rec.Name = names.Resolve(rec.NameID)
		if rec.ClassPtr != 0 {
			rec.TypeName = resolveName(rec.ClassPtr)
		} else {
			rec.TypeName = "None"
		}
	}

	for i := range records {
		rec := &records[i]
		rec.FullName, rec.Package = p.fullName(rec, byAddr)
	}
}

const maxOuterDepth = 10

// fullName is the reverse outer walk joined with ".", switching to ":"
// after a Property or Function segment like the engine's own rendering.
func (p *Parser) fullName(rec *storage.ObjectRecord, byAddr map[process.ProcessMemoryAddress]*storage.ObjectRecord) (string, string) {
	result := rec.Name
	prevType := rec.TypeName
	root := rec

	outer := rec.OuterPtr
	for depth := 0; outer != 0 && depth < maxOuterDepth; depth++ {
		parent, ok := byAddr[outer]
		if !ok {
			break
		}
		sep := "."
		if isPropOrFunc(prevType) && !isPropOrFunc(parent.TypeName) {
			sep = ":"
		}
		result = parent.Name + sep + result
		prevType = parent.TypeName
		root = parent
		outer = parent.OuterPtr
	}

	pkg := ""
	if root.TypeName == "Package" {
		pkg = root.Name
	}
	return result, pkg
}

func isPropOrFunc(typeName string) bool {
	return strings.Contains(typeName, "Property") || strings.Contains(typeName, "Function")
}
