//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"strconv"
)

// Identity is a capability token naming the system user an operation runs as
// or hands file ownership to. Constructors of the fetcher and installer take
// an Identity so the privilege boundary is visible in the types rather than
// switched ambiently at runtime.
type Identity struct {
	// Username is the account name, for logs.
	Username string
	// UID is the numeric user id.
	UID int
	// GID is the numeric primary group id.
	GID int
}

// ErrNotRoot is returned when the process lacks the privilege to write system
// directories and manage the service.
var ErrNotRoot = errors.New("root privileges are required")

// Root returns the privileged identity.
func Root() Identity {
	return Identity{Username: "root", UID: 0, GID: 0}
}

// IsRoot reports whether the identity is the privileged one.
func (id Identity) IsRoot() bool {
	return id.UID == 0
}

// LookupIdentity resolves a username into an Identity.
func LookupIdentity(username string) (Identity, error) {
	account, err := user.Lookup(username)
	if err != nil {
		return Identity{}, fmt.Errorf("lookup user %s: %w", username, err)
	}

	uid, err := strconv.Atoi(account.Uid)
	if err != nil {
		return Identity{}, fmt.Errorf("parse uid for %s: %w", username, err)
	}

	gid, err := strconv.Atoi(account.Gid)
	if err != nil {
		return Identity{}, fmt.Errorf("parse gid for %s: %w", username, err)
	}

	return Identity{Username: username, UID: uid, GID: gid}, nil
}

// RequireRoot fails with ErrNotRoot when the effective user is not privileged.
// This is the pipeline's precondition check and has no side effects.
func RequireRoot() error {
	if os.Geteuid() != 0 {
		return fmt.Errorf("%w: effective uid is %d", ErrNotRoot, os.Geteuid())
	}

	return nil
}

// Own transfers ownership of path to the identity. Ownership changes require
// the process itself to be privileged; when it is not (tests, dry runs), the
// call is a no-op since chown would be rejected by the kernel anyway.
func (id Identity) Own(path string) error {
	if os.Geteuid() != 0 {
		return nil
	}

	if err := os.Chown(path, id.UID, id.GID); err != nil {
		return fmt.Errorf("chown %s to %s: %w", path, id.Username, err)
	}

	return nil
}
