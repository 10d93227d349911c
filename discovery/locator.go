package discovery

import (
	"fmt"

	"uedump/process"
	"uedump/storage"
	"uedump/uelayout"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/pkg/errors"
)

// NotFound is returned when no signature produced a candidate that passed
// validation. No proximity scan is attempted after the signatures.
type NotFound struct {
	What string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s not found", e.What)
}

// Locator resolves the registry globals. Results go through the Store
// latches, so a second invocation returns the cached address.
type Locator struct {
	proc    process.Process
	profile uelayout.Profile
	store   *storage.Store
	log     *logger.Logger
}

func NewLocator(proc process.Process, profile uelayout.Profile, store *storage.Store) *Locator {
	return &Locator{
		proc:    proc,
		profile: profile,
		store:   store,
		log:     logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "discovery")),
	}
}

// NamePool locates the string interning pool.
func (l *Locator) NamePool() (process.ProcessMemoryAddress, error) {
	if addr, ok := l.store.NamePoolBase.Get(); ok {
		return addr, nil
	}
	addr, err := l.scanAndResolve("NamePool", namePoolSignatures, l.validateNamePool)
	if err != nil {
		return 0, err
	}
	if err := l.store.NamePoolBase.Set(addr); err != nil {
		addr, _ = l.store.NamePoolBase.Get()
	}
	return addr, nil
}

// GUObjectArray locates the global object registry.
func (l *Locator) GUObjectArray() (process.ProcessMemoryAddress, error) {
	if addr, ok := l.store.GUObjectArray.Get(); ok {
		return addr, nil
	}
	addr, err := l.scanAndResolve("GUObjectArray", guObjectArraySignatures, l.validateGUObjectArray)
	if err != nil {
		return 0, err
	}
	if err := l.store.GUObjectArray.Set(addr); err != nil {
		addr, _ = l.store.GUObjectArray.Get()
	}
	return addr, nil
}

// GWorld locates the world singleton pointer.
func (l *Locator) GWorld() (process.ProcessMemoryAddress, error) {
	if addr, ok := l.store.GWorld.Get(); ok {
		return addr, nil
	}
	addr, err := l.scanAndResolve("GWorld", gWorldSignatures, l.validateGWorld)
	if err != nil {
		return 0, err
	}
	if err := l.store.GWorld.Set(addr); err != nil {
		addr, _ = l.store.GWorld.Get()
	}
	return addr, nil
}

// scanAndResolve runs each signature over the main module, resolves the
// RIP-relative operand of every match and keeps the first candidate that
// survives validation.
func (l *Locator) scanAndResolve(what string, sigs []Signature, validate func(process.ProcessMemoryAddress) bool) (process.ProcessMemoryAddress, error) {
	mod, err := l.proc.MainModule()
	if err != nil {
		return 0, errors.Wrapf(err, "locating %s", what)
	}
	start := mod.Base
	end := mod.Base + process.ProcessMemoryAddress(mod.Size)

	for idx, sig := range sigs {
		aob, err := process.ParseAOB(sig.Pattern)
		if err != nil {
			l.log.Warn("Bad signature ", idx, " for ", what, ": ", err)
			continue
		}

		matches, err := l.proc.Scan(aob, start, end)
		if err != nil {
			l.log.Debugln("Scan failed for", what, "signature", idx, ":", err)
			continue
		}
		if len(matches) == 0 {
			l.log.Debugln("Signature", idx, "for", what, "not found")
			continue
		}

		for _, match := range matches {
			resolved, err := l.resolveRIP(match, sig.DispOffset, sig.InstrLen)
			if err != nil {
				continue
			}
			if resolved < minUserAddress || resolved > maxUserAddress {
				continue
			}
			if !validate(resolved) {
				l.log.Debugln("Candidate for", what, "at", resolved.ToString(), "failed validation")
				continue
			}
			l.log.Infoln("Found", what, "at", resolved.ToString(), "(signature", idx, ")")
			return resolved, nil
		}
	}

	return 0, &NotFound{What: what}
}

// resolveRIP resolves a RIP-relative operand: the absolute target is the
// instruction end plus the signed 32-bit displacement.
func (l *Locator) resolveRIP(instrAddr process.ProcessMemoryAddress, dispOffset, instrLen int) (process.ProcessMemoryAddress, error) {
	disp, err := l.proc.ReadINT32(instrAddr + process.ProcessMemoryAddress(dispOffset))
	if err != nil {
		return 0, err
	}
	return process.ProcessMemoryAddress(int64(instrAddr) + int64(instrLen) + int64(disp)), nil
}

// validateNamePool reads the structural fingerprint of a pool candidate:
// the first entry of block 0 must carry a sane length and printable
// payload.
func (l *Locator) validateNamePool(cand process.ProcessMemoryAddress) bool {
	block0, err := l.proc.ReadPOINTER(cand + process.ProcessMemoryAddress(l.profile.NameBlocksOffset))
	if err != nil || block0 == 0 || !l.proc.IsPointer(block0) {
		return false
	}

	header, err := l.proc.ReadUINT16(block0)
	if err != nil {
		return false
	}
	length := int(header >> 6)
	if length <= 0 || length >= 255 {
		return false
	}

	payload, err := l.proc.ReadMemory(block0+process.ProcessMemoryAddress(l.profile.NameEntryHeaderSize), process.ProcessMemorySize(length))
	if err != nil {
		return false
	}
	for _, b := range payload {
		if b < 0x20 || b > 0x7E {
			return false
		}
	}
	return true
}

// validateGUObjectArray checks chunk 0 and its first object: the object
// pointer and the object's class pointer must both be live, and the
// first slot's internal index must be zero.
func (l *Locator) validateGUObjectArray(cand process.ProcessMemoryAddress) bool {
	objects, err := l.proc.ReadPOINTER(cand + process.ProcessMemoryAddress(l.profile.ObjectsOffset))
	if err != nil || objects == 0 || !l.proc.IsPointer(objects) {
		return false
	}

	chunk0, err := l.proc.ReadPOINTER(objects)
	if err != nil || chunk0 == 0 || !l.proc.IsPointer(chunk0) {
		return false
	}

	obj0, err := l.proc.ReadPOINTER(chunk0 + process.ProcessMemoryAddress(l.profile.UObjectItemObject))
	if err != nil || obj0 == 0 || !l.proc.IsPointer(obj0) {
		return false
	}

	index, err := l.proc.ReadUINT32(obj0 + process.ProcessMemoryAddress(l.profile.InternalIndexOffset))
	if err != nil || index != 0 {
		return false
	}

	class, err := l.proc.ReadPOINTER(obj0 + process.ProcessMemoryAddress(l.profile.ClassOffset))
	if err != nil || class == 0 || !l.proc.IsPointer(class) {
		return false
	}

	// The second slot confirms the element stride: it holds either null
	// or another live object.
	obj1 := l.proc.ReadPOINTER2(chunk0 + process.ProcessMemoryAddress(uint64(l.profile.UObjectItemSize)+l.profile.UObjectItemObject))
	if obj1 != 0 && !l.proc.IsPointer(obj1) {
		return false
	}

	return true
}

// validateGWorld accepts a slot holding null or a live object pointer
// whose own class pointer is null or live.
func (l *Locator) validateGWorld(cand process.ProcessMemoryAddress) bool {
	world, err := l.proc.ReadPOINTER(cand)
	if err != nil {
		return false
	}
	if world == 0 {
		return true
	}
	if !l.proc.IsPointer(world) {
		return false
	}
	class := l.proc.ReadPOINTER2(world + process.ProcessMemoryAddress(l.profile.ClassOffset))
	return class == 0 || l.proc.IsPointer(class)
}
