// Package validator rejects node names and path locations the storage
// backends would mangle or refuse, before any lock is taken or journal
// record written for them.
package validator

import (
	"fmt"
	"path/filepath"
	"strings"
)

// maxNameLength is the ceiling most filesystems place on a single path
// component, in bytes.
const maxNameLength = 255

// invalidNameChars are rejected anywhere in a node name: the path
// separators, the punctuation Windows reserves, and NUL.
const invalidNameChars = "/\\:*?\"<>|\x00"

// windowsReservedNames are device names Windows refuses as file names,
// with or without an extension.
var windowsReservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// ValidateFilename reports why name can't be used as a single path
// component on either backend, or nil if it can.
func ValidateFilename(name string) error {
	if name == "" {
		return fmt.Errorf("name is empty")
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("name exceeds %d bytes", maxNameLength)
	}
	if i := strings.IndexAny(name, invalidNameChars); i >= 0 {
		return fmt.Errorf("name contains %q", name[i])
	}
	if strings.Trim(name, ".") == "" {
		return fmt.Errorf("name consists only of dots")
	}

	stem := strings.ToUpper(strings.TrimSuffix(name, filepath.Ext(name)))
	if windowsReservedNames[stem] {
		return fmt.Errorf("name %q is reserved", name)
	}
	return nil
}

// ValidatePath reports why path can't address a node on the path backend:
// empty, or still carrying parent-directory references after cleaning —
// a traversal attempt rather than a real location.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	if strings.Contains(filepath.Clean(path), "..") {
		return fmt.Errorf("path contains parent directory references")
	}
	return nil
}
