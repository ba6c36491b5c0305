package orchestrator

import (
	"github.com/xuanyiying/storax/internal/backend"
	pkgerrors "github.com/xuanyiying/storax/pkg/errors"
	"github.com/xuanyiying/storax/pkg/validator"
)

// validateName rejects names the backends would mangle or refuse, before
// any lock is taken or journal record written for them.
func validateName(name string) error {
	if err := validator.ValidateFilename(name); err != nil {
		return pkgerrors.Wrap(pkgerrors.IOError, err, "invalid name %q", name)
	}
	return nil
}

// validateLocation rejects empty or traversal-laden path locations before
// a backend sees them. Handle URIs are opaque to us and pass through —
// their provider is the only party that can judge them.
func validateLocation(loc backend.Location) error {
	if backend.Detect(loc) != backend.KindPath {
		return nil
	}
	if err := validator.ValidatePath(string(loc)); err != nil {
		return pkgerrors.Wrap(pkgerrors.IOError, err, "invalid location %q", loc)
	}
	return nil
}

// validatePolicy rejects policy codes outside the stable 0..3 range. An
// empty manual name under RENAME_MANUAL is not an error here: the
// resolver declines it, which is the documented outcome.
func validatePolicy(policy backend.ConflictPolicy, manual string) error {
	switch policy {
	case backend.PolicyFail, backend.PolicyReplace, backend.PolicyRenameNew:
		return nil
	case backend.PolicyRenameManual:
		if manual != "" {
			return validateName(manual)
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.IOError, "unknown conflict policy %d", policy)
	}
}

func validateNodeType(t backend.NodeType) error {
	if t != backend.TypeFile && t != backend.TypeDir {
		return pkgerrors.New(pkgerrors.IOError, "unknown node type %d", t)
	}
	return nil
}
