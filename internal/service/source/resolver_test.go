package source

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLatestVersion verifies semantic ordering, not lexicographic.
func TestLatestVersion(t *testing.T) {
	t.Parallel()

	tag, err := LatestVersion([]string{"v1.9.0", "v1.10.0", "v1.2.3"})
	require.NoError(t, err)
	require.Equal(t, "v1.10.0", tag)

	// Pre-releases sort below their release.
	tag, err = LatestVersion([]string{"v2.0.0-rc.1", "v2.0.0", "v1.9.9"})
	require.NoError(t, err)
	require.Equal(t, "v2.0.0", tag)

	// Bare versions without the "v" prefix are accepted.
	tag, err = LatestVersion([]string{"1.0.0", "1.1.0"})
	require.NoError(t, err)
	require.Equal(t, "1.1.0", tag)
}

// TestLatestVersion_Empty verifies the fatal no-tags condition.
func TestLatestVersion_Empty(t *testing.T) {
	t.Parallel()

	_, err := LatestVersion(nil)
	require.ErrorIs(t, err, ErrNoVersionFound)

	// Non-version tags alone do not count.
	_, err = LatestVersion([]string{"nightly", "latest"})
	require.ErrorIs(t, err, ErrNoVersionFound)
}

// TestParseTagRefs covers ls-remote output parsing, including noise lines.
func TestParseTagRefs(t *testing.T) {
	t.Parallel()

	output := []byte(
		"8f2c1a0deadbeef\trefs/tags/v1.0.0\n" +
			"malformed line without tab\n" +
			"9a3b2c1cafebabe\trefs/tags/v1.1.0\n" +
			"0000000000000000\trefs/heads/main\n")

	tags := parseTagRefs(output)
	require.Equal(t, []string{"v1.0.0", "v1.1.0"}, tags)
}
