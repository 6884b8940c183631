// Package deployer runs the deployment pipeline: precondition check, sandbox
// provisioning, version resolution, artifact fetch, self-update gate, backup,
// install, and service reconciliation.
//
// Control flows strictly downward through the stages. The only way back is
// the self-update hand-off, where the replaced deployer starts its own run
// from the beginning.
package deployer
