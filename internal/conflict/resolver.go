// Package conflict implements pure, I/O-free naming negotiation: given an
// existence predicate, a policy, and an optional manual name, it decides
// the final name a create/rename/copy/move should use.
//
// The Policy type lives here, at the bottom of the import graph, so both
// the backend drivers (which resolve names against their own existence
// checks) and the engines above them can share it; internal/backend
// re-exports it as ConflictPolicy for its callers.
package conflict

import "fmt"

// Policy is the stable wire code for a naming conflict strategy.
type Policy int

const (
	Fail         Policy = 0
	Replace      Policy = 1
	RenameNew    Policy = 2
	RenameManual Policy = 3
)

// MaxRenameAttempts bounds the "{base} (k)" search under RenameNew so a
// pathological existence predicate can't loop forever.
const MaxRenameAttempts = 10000

// Resolve returns the chosen name and true, or ("", false) when the policy
// declines (Fail with a conflict, or RenameManual with an empty manual
// name). exists is called with candidate names only, never performs I/O
// itself — that is the caller's existence predicate.
func Resolve(exists func(name string) bool, base string, policy Policy, manual string) (string, bool) {
	if !exists(base) {
		return base, true
	}

	switch policy {
	case Fail:
		return "", false

	case Replace:
		return base, true

	case RenameNew:
		for k := 1; k <= MaxRenameAttempts; k++ {
			candidate := fmt.Sprintf("%s (%d)", base, k)
			if !exists(candidate) {
				return candidate, true
			}
		}
		return "", false

	case RenameManual:
		if manual == "" {
			return "", false
		}
		return manual, true

	default:
		return "", false
	}
}
