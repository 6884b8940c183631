// Package installer copies new application files, service units and
// configuration into their install locations.
//
// Unit, config and secret installs are gated on byte comparison and set
// per-category change flags on the run's report; application files are
// overwritten unconditionally since they are versioned by the release tag.
package installer
