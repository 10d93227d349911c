// Package hexdump renders raw memory for the analyzer views.
package hexdump

import (
	"fmt"
	"strings"
)

// Options customize the rendering.
type Options struct {
	// BaseAddress is shown in the offset column.
	BaseAddress uint64

	// BytesPerLine defaults to 16.
	BytesPerLine int

	// NoASCII suppresses the trailing character column, which the zero
	// Options value shows.
	NoASCII bool
}

// Dump renders data in the classic offset/hex/ASCII layout.
func Dump(data []byte, opts Options) string {
	perLine := opts.BytesPerLine
	if perLine <= 0 {
		perLine = 16
	}

	var sb strings.Builder
	for off := 0; off < len(data); off += perLine {
		end := off + perLine
		if end > len(data) {
			end = len(data)
		}
		line := data[off:end]

		fmt.Fprintf(&sb, "%016X  ", opts.BaseAddress+uint64(off))

		for i := 0; i < perLine; i++ {
			if i < len(line) {
				fmt.Fprintf(&sb, "%02X ", line[i])
			} else {
				sb.WriteString("   ")
			}
			if i == perLine/2-1 {
				sb.WriteByte(' ')
			}
		}

		if !opts.NoASCII {
			sb.WriteString(" |")
			for _, b := range line {
				if b >= 0x20 && b <= 0x7E {
					sb.WriteByte(b)
				} else {
					sb.WriteByte('.')
				}
			}
			sb.WriteByte('|')
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
