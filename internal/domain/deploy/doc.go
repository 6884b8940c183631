// Package deploy holds the value types threaded through a deployment run.
//
// The Report carries per-category change flags and the restart/reload/marker
// decision rules as pure methods, keeping the decision logic testable without
// touching the filesystem or the init system. The Outcome models the
// self-update gate's continue-or-hand-off result.
package deploy
