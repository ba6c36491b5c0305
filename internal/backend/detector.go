package backend

import (
	"path/filepath"
	"strings"
)

// HandleScheme is the URI scheme prefix that marks a Location as belonging
// to the handle (document-tree) backend. Anything else is treated as a
// filesystem path.
const HandleScheme = "handle://"

// Detect classifies a Location by scheme prefix.
func Detect(loc Location) Kind {
	if strings.HasPrefix(string(loc), HandleScheme) {
		return KindHandle
	}
	return KindPath
}

// SameBackend reports whether two locations resolve to the same backend
// kind, the condition the move engine uses to decide between an in-place
// rename and a cross-backend transaction.
func SameBackend(a, b Location) bool {
	return Detect(a) == Detect(b)
}

// Split divides loc into its parent location and final path component,
// the way the rename and move engines need to when a backend operation
// reports only success/failure and the caller must independently know
// where the node ended up.
func Split(loc Location) (parent Location, name string) {
	if Detect(loc) == KindPath {
		return Location(filepath.Dir(string(loc))), filepath.Base(string(loc))
	}

	s := string(loc)
	idx := strings.LastIndexByte(s, '/')
	if idx < 0 {
		return loc, s
	}
	return Location(s[:idx]), s[idx+1:]
}

// Join appends name under parent, inverting Split.
func Join(parent Location, name string) Location {
	if Detect(parent) == KindPath {
		return Location(filepath.Join(string(parent), name))
	}
	return Location(string(parent) + "/" + name)
}
