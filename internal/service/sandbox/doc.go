// Package sandbox provisions the isolated temporary workspace used for
// untrusted downloads. The workspace is owned by an unprivileged identity,
// restricted to owner-only access, and removed on every exit path.
package sandbox
