package syndicate

import (
	"fmt"
	"strings"
	"unicode/utf16"
)

// EncodeToUnicode converts text into an ASCII-safe escaped form.
//
// Every byte in the printable-and-control ASCII range (0x00-0x7F), newlines
// included, passes through unchanged. Codepoints in the BMP at or above 0x80
// become a single lower-hex escape `\uXXXX`, zero-padded to four digits.
// Codepoints above the BMP become two escapes, one per UTF-16 surrogate unit.
// Ill-formed input decodes as U+FFFD and is escaped like any other non-ASCII
// unit. The function is pure: same input, same output.
func EncodeToUnicode(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		switch {
		case r < 0x80:
			sb.WriteRune(r)
		case r > 0xFFFF:
			hi, lo := utf16.EncodeRune(r)
			fmt.Fprintf(&sb, `\u%04x\u%04x`, hi, lo)
		default:
			fmt.Fprintf(&sb, `\u%04x`, r)
		}
	}
	return sb.String()
}
