package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/iksnae/cre-chat/testutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// cliFixture runs the root command against a fake backend and a private
// storage directory.
type cliFixture struct {
	backend *testutil.FakeBackend
	storage string
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	// keep the user's config file and environment out of the run
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CRE_API_URL", "")
	t.Setenv("NEXT_PUBLIC_API_URL", "")
	t.Setenv("CRE_STORAGE_PATH", "")
	t.Setenv("CRE_STORAGE_BACKEND", "")

	return &cliFixture{
		backend: testutil.NewFakeBackend(t),
		storage: t.TempDir(),
	}
}

// withChats writes the default fixture conversations into storage
func (f *cliFixture) withChats(t *testing.T) *cliFixture {
	t.Helper()
	testutil.CreateDirFixture(t, f.storage, testutil.DefaultChatFixtures())
	return f
}

func (f *cliFixture) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	full := append([]string{"--api-url", f.backend.URL(), "--storage", f.storage}, args...)
	return executeCommand(t, stdin, full...)
}

// executeCommand runs rootCmd with args after resetting every flag
func executeCommand(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// resetFlags restores flag defaults, which otherwise carry over between
// Execute calls on the shared command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
