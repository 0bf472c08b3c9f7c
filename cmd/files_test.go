package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesCommands(t *testing.T) {
	f := newCLIFixture(t)

	stdout, _, err := f.run(t, "", "files", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 file(s)")
	assert.Contains(t, stdout, "comps.pdf")
	assert.Contains(t, stdout, "2.0 KB")

	stdout, _, err = f.run(t, "", "files", "delete", "file-1", "-y")
	require.NoError(t, err)
	assert.Contains(t, stdout, "File file-1 deleted successfully.")

	stdout, _, err = f.run(t, "", "files", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No files")

	_, _, err = f.run(t, "", "files", "delete", "file-1", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{n: 0, want: "0 B"},
		{n: 1023, want: "1023 B"},
		{n: 1024, want: "1.0 KB"},
		{n: 1536, want: "1.5 KB"},
		{n: 5 * 1024 * 1024, want: "5.0 MB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatBytes(tt.n))
		})
	}
}
