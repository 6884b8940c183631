// Package backup snapshots installed files into timestamped directories
// before the installer mutates anything.
package backup
