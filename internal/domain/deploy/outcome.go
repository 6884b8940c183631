package deploy

// Outcome is the result of the self-update gate.
// A replaced outcome means the running deployer was swapped for the copy
// bundled in the fetched source tree; the caller must hand control to the
// new binary instead of continuing the pipeline.
type Outcome struct {
	// Replaced is true when the running deployer was updated.
	Replaced bool
	// Path is the executable to hand control to when Replaced is true.
	Path string
}

// Continue returns the outcome for an up-to-date deployer.
func Continue() Outcome {
	return Outcome{}
}

// Replaced returns the outcome handing control to the executable at path.
func Replaced(path string) Outcome {
	return Outcome{Replaced: true, Path: path}
}
