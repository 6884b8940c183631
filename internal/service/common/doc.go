// Package common holds helpers shared by the deployment services: privilege
// identities, file comparison and copying, and release checksums.
package common
