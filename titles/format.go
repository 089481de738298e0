package titles

import (
	"fmt"
	"strings"
)

// FormatVersion formats as decimal with a v prefix
func FormatVersion(version uint32) string {
	return fmt.Sprintf("v%d", version)
}

// FormatVersionHuman splits a packed title version into its dotted form.
// The packing is major:6 minor:6 micro:4 bugfix:16 bits, high to low, and leading
// zero fields are left off. Version 0 is the initial release and formats as ""
func FormatVersionHuman(version uint32) string {
	if version == 0 {
		return ""
	}
	fields := []uint32{
		version >> 26,
		(version >> 20) & 0x3F,
		(version >> 16) & 0xF,
		version & 0xFFFF,
	}
	for len(fields) > 1 && fields[0] == 0 {
		fields = fields[1:]
	}
	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = fmt.Sprint(field)
	}
	return "v" + strings.Join(parts, ".")
}
