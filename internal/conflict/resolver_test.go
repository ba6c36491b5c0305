package conflict

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func existsIn(set map[string]bool) func(string) bool {
	return func(name string) bool { return set[name] }
}

func TestResolveReturnsBaseWhenAbsent(t *testing.T) {
	name, ok := Resolve(existsIn(nil), "a.txt", Fail, "")
	assert.True(t, ok)
	assert.Equal(t, "a.txt", name)
}

func TestResolveFailDeclinesOnConflict(t *testing.T) {
	name, ok := Resolve(existsIn(map[string]bool{"a.txt": true}), "a.txt", Fail, "")
	assert.False(t, ok)
	assert.Empty(t, name)
}

func TestResolveReplaceKeepsBase(t *testing.T) {
	name, ok := Resolve(existsIn(map[string]bool{"a.txt": true}), "a.txt", Replace, "")
	assert.True(t, ok)
	assert.Equal(t, "a.txt", name)
}

func TestResolveRenameNewFindsMinimalSuffix(t *testing.T) {
	existing := map[string]bool{"a.txt": true, "a.txt (1)": true, "a.txt (2)": true}
	name, ok := Resolve(existsIn(existing), "a.txt", RenameNew, "")
	assert.True(t, ok)
	assert.Equal(t, "a.txt (3)", name)
}

func TestResolveRenameManual(t *testing.T) {
	existing := map[string]bool{"a.txt": true}

	name, ok := Resolve(existsIn(existing), "a.txt", RenameManual, "b.txt")
	assert.True(t, ok)
	assert.Equal(t, "b.txt", name)

	name, ok = Resolve(existsIn(existing), "a.txt", RenameManual, "")
	assert.False(t, ok)
	assert.Empty(t, name)
}

func TestResolveRenameNewNoConflictReturnsBase(t *testing.T) {
	name, ok := Resolve(existsIn(nil), "a.txt", RenameNew, "")
	assert.True(t, ok)
	assert.Equal(t, "a.txt", name)
}

// TestResolveProperty checks that Resolve always returns a name the
// existence predicate reports as free, or explicitly declines, across
// random (base, policy, manual, existing-set) combinations.
func TestResolveProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		base := rapid.StringMatching(`[a-zA-Z][a-zA-Z0-9_.]{0,12}`).Draw(rt, "base")
		manual := rapid.StringMatching(`[a-zA-Z0-9_.]{0,12}`).Draw(rt, "manual")
		policy := Policy(rapid.IntRange(0, 3).Draw(rt, "policy"))
		conflictBase := rapid.Bool().Draw(rt, "conflictBase")

		existing := map[string]bool{}
		if conflictBase {
			existing[base] = true
			// Occasionally pre-populate some "{base} (k)" slots too.
			n := rapid.IntRange(0, 4).Draw(rt, "prefilled")
			for k := 1; k <= n; k++ {
				existing[fmt.Sprintf("%s (%d)", base, k)] = true
			}
		}

		name, ok := Resolve(existsIn(existing), base, policy, manual)

		if !conflictBase {
			if !ok || name != base {
				rt.Fatalf("expected base unchanged when absent, got (%q, %v)", name, ok)
			}
			return
		}

		switch policy {
		case Fail:
			if ok {
				rt.Fatalf("FAIL must decline on conflict, got (%q, %v)", name, ok)
			}
		case Replace:
			if !ok || name != base {
				rt.Fatalf("REPLACE must return base, got (%q, %v)", name, ok)
			}
		case RenameNew:
			if !ok {
				rt.Fatalf("RENAME_NEW should find a free slot within bound, got ok=false")
			}
			if !strings.HasPrefix(name, base+" (") || !strings.HasSuffix(name, ")") {
				rt.Fatalf("expected %q to match %q (k)", name, base)
			}
			if existing[name] {
				rt.Fatalf("chosen name %q must not already exist", name)
			}
		case RenameManual:
			if manual == "" {
				if ok {
					rt.Fatalf("RENAME_MANUAL with empty manual must decline, got (%q, %v)", name, ok)
				}
			} else {
				if !ok || name != manual {
					rt.Fatalf("RENAME_MANUAL must return manual name, got (%q, %v)", name, ok)
				}
			}
		}
	})
}
