// Package source resolves the target version and fetches release artifacts.
//
// The Resolver queries the git remote for tags and picks the highest by
// semantic-version order. The Fetcher downloads the release payload (a
// tag-derived zip or a pre-built tarball at a fixed key) into the sandbox,
// unpacks it and discovers the source root. Both run on behalf of the
// unprivileged identity.
package source
