//go:build unix

package common

import "syscall"

// SysProcAttr returns process attributes that run a child command under this
// identity. Used for network-facing subprocesses (the tag query) so elevated
// credentials are never exposed to a third-party host.
func (id Identity) SysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Credential: &syscall.Credential{
			Uid: uint32(id.UID),
			Gid: uint32(id.GID),
		},
	}
}
