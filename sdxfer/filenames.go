package sdxfer

import (
	"strings"

	"github.com/samber/lo"
)

// ParseFilenames extracts filenames from a one-line directory listing.
//
// Everything up to and including the last ':' is a human-readable preamble
// and is dropped. The rest is split on ',', each piece is trimmed, and empty
// pieces are discarded. Order is preserved and duplicates are kept.
func ParseFilenames(line string) []string {
	if i := strings.LastIndexByte(line, ':'); i >= 0 {
		line = line[i+1:]
	}

	names := make([]string, 0, strings.Count(line, ",")+1)
	for _, piece := range strings.Split(line, ",") {
		if name := strings.TrimSpace(piece); name != "" {
			names = append(names, name)
		}
	}

	return names
}

// FilterByExtension keeps the names whose extension (the text after the last
// '.') equals one of exts, ignoring case. Leading dots in exts are ignored.
func FilterByExtension(names []string, exts ...string) []string {
	want := lo.SliceToMap(exts, func(ext string) (string, struct{}) {
		return strings.ToLower(strings.TrimPrefix(ext, ".")), struct{}{}
	})

	return lo.Filter(names, func(name string, _ int) bool {
		i := strings.LastIndexByte(name, '.')
		if i < 0 {
			return false
		}
		_, ok := want[strings.ToLower(name[i+1:])]

		return ok
	})
}
