// Package marker implements persistence for the installed-version marker.
//
// The FileRepository stores the marker as a one-line text file and exposes a
// Repository interface that the reconciler depends on. ErrNotFound signals a
// first install.
package marker
