// Package packager prepares release metadata for distribution.
//
// It walks a distribution directory, records a SHA-512 checksum per file and
// writes a YAML manifest that operators publish next to the artifacts.
package packager
