// Package selfupdate implements the deployer's self-replacement gate.
//
// After extraction the gate byte-compares the deployer bundled in the source
// tree with the running executable. A differing bundle is backed up and
// applied atomically; the pipeline then terminates in favor of the new copy,
// which starts its own run from the beginning.
package selfupdate
