package hexdump

import (
	"strings"
	"testing"
)

func TestDumpBasic(t *testing.T) {
	out := Dump([]byte("Hello, World!!!!"), Options{BaseAddress: 0x1000})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines = %d, want 1", len(lines))
	}
	if !strings.HasPrefix(lines[0], "0000000000001000  ") {
		t.Errorf("missing base address column: %q", lines[0])
	}
	if !strings.Contains(lines[0], "48 65 6C 6C 6F") {
		t.Errorf("missing hex bytes: %q", lines[0])
	}
	if !strings.Contains(lines[0], "|Hello, World!!!!|") {
		t.Errorf("missing ascii column: %q", lines[0])
	}
}

func TestDumpNonPrintable(t *testing.T) {
	out := Dump([]byte{0x00, 0x41, 0xFF}, Options{})
	if !strings.Contains(out, "|.A.|") {
		t.Errorf("non-printable bytes should render as dots: %q", out)
	}
}

func TestDumpMultiLine(t *testing.T) {
	out := Dump(make([]byte, 33), Options{BytesPerLine: 16})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
}

func TestDumpNoASCII(t *testing.T) {
	out := Dump([]byte{0x41}, Options{NoASCII: true})
	if strings.Contains(out, "|") {
		t.Errorf("ascii column should be suppressed: %q", out)
	}
}

func TestDumpEmpty(t *testing.T) {
	if out := Dump(nil, Options{}); out != "" {
		t.Errorf("empty input should render nothing, got %q", out)
	}
}
