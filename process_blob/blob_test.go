package process_blob

import (
	"errors"
	"testing"

	"uedump/process"
)

func TestProcessBlobReads(t *testing.T) {
	data := []byte{
		0x78, 0x56, 0x34, 0x12, // u32
		'h', 'i', 0x00, 0xFF, // nts
	}
	blob := NewProcessBlob(0x1000, data)

	v, err := blob.ReadUINT32(0x1000)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x12345678 {
		t.Errorf("u32 = %08X, want 12345678", v)
	}

	s, err := blob.ReadNTS(0x1004, 4)
	if err != nil {
		t.Fatal(err)
	}
	if s != "hi" {
		t.Errorf("nts = %q, want \"hi\"", s)
	}

	if _, err := blob.ReadUINT64(0x1004); err == nil {
		t.Error("read past end should fail")
	}

	off, err := blob.OffsetUINT32(0)
	if err != nil || off != 0x12345678 {
		t.Errorf("offset u32 = %08X, %v", off, err)
	}
}

func TestProcessBlobOutOfBounds(t *testing.T) {
	blob := NewProcessBlob(0x1000, []byte{1, 2, 3, 4})

	_, err := blob.ReadMemory(0x900, 4)
	if err == nil {
		t.Fatal("expected fault below base")
	}
	var fault *process.ReadFault
	if !errors.As(err, &fault) {
		t.Fatalf("error %T, want *process.ReadFault", err)
	}
	if fault.Address != 0x900 {
		t.Errorf("fault address = %s", fault.Address.ToString())
	}
}

func TestProcessImageSegments(t *testing.T) {
	img := NewProcessImage(1)
	img.AddModule("game.exe", 0x1000, 0x100)
	img.AddSegment(0x1000, []byte{0xAA, 0xBB})
	img.AddSegment(0x2000, []byte{0xCC})

	if !img.IsValidAddress(0x1001) || !img.IsValidAddress(0x2000) {
		t.Error("mapped addresses should be valid")
	}
	if img.IsValidAddress(0x1800) {
		t.Error("gap between segments should be invalid")
	}
	if img.IsPointer(0) {
		t.Error("null is never a pointer")
	}

	b, err := img.ReadUINT8(0x1001)
	if err != nil || b != 0xBB {
		t.Errorf("read = %02X, %v", b, err)
	}

	mod, err := img.MainModule()
	if err != nil || mod.Name != "game.exe" {
		t.Errorf("main module = %v, %v", mod, err)
	}
}

func TestProcessImageScan(t *testing.T) {
	img := NewProcessImage(1)
	img.AddSegment(0x1000, []byte{0x00, 0xDE, 0xAD, 0xBE, 0xEF, 0x00})

	aob, _ := process.ParseAOB("DE AD BE EF")
	hits, err := img.Scan(aob, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0] != 0x1001 {
		t.Errorf("hits = %v, want [0x1001]", hits)
	}

	first, err := img.ScanFirst(aob, 0x1002, 0)
	if err == nil {
		t.Errorf("match before start should be excluded, got %s", first.ToString())
	}
}
