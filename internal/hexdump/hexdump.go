// Package hexdump renders byte slices in the style of hd(1) for
// protocol traffic logs.
package hexdump

import (
	"fmt"
	"strings"
)

const bytesPerLine = 16

// Dump formats b as a hex dump, one line per 16 bytes with an address
// column and an ASCII gutter. base is the address reported for b[0];
// the first line starts at base rounded down to a multiple of 16,
// with the skipped leading cells left blank.
func Dump(b []byte, base uint32) string {
	if len(b) == 0 {
		return ""
	}

	var sb strings.Builder
	start := base &^ (bytesPerLine - 1)
	end := base + uint32(len(b))

	for addr := start; addr < end; addr += bytesPerLine {
		var hexc, ascii strings.Builder
		for i := uint32(0); i < bytesPerLine; i++ {
			if i == bytesPerLine/2 {
				hexc.WriteByte(' ')
			}

			a := addr + i
			if a >= end {
				continue
			}
			if a < base {
				hexc.WriteString("   ")
				ascii.WriteByte(' ')
				continue
			}

			c := b[a-base]
			fmt.Fprintf(&hexc, "%02x ", c)
			if c < ' ' || c >= '~' {
				ascii.WriteByte('.')
			} else {
				ascii.WriteByte(c)
			}
		}
		fmt.Fprintf(&sb, "%08x  %-49s |%s|\n", addr, hexc.String(), ascii.String())
	}

	return sb.String()
}
