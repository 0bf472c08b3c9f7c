package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/cre-chat/internal"
	"github.com/spf13/cobra"
)

var (
	healthcheckDetails bool
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check that cre-chat can reach the backend and its local storage",
	Long: `Check the health of cre-chat by verifying:
  • Configuration resolution
  • Saved conversation storage access
  • Backend reachability
  • Agent availability

This command is useful for debugging connection and storage issues.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		println := func(a ...interface{}) { _, _ = fmt.Fprintln(out, a...) }
		detail := func(format string, a ...interface{}) {
			if healthcheckDetails {
				_, _ = fmt.Fprintf(out, "   "+format+"\n", a...)
			}
		}

		println(sectionStyle.Render("🔍 cre-chat Health Check"))
		println()

		// Step 1: Configuration
		println(infoStyle.Render("Step 1: Resolving configuration..."))
		println(successStyle.Render("✅ Configuration loaded"))
		detail("API URL: %s", cfg.APIURL)
		detail("Agent: %s", cfg.Agent)
		detail("Storage: %s (%s)", cfg.StorageLocation(), cfg.Storage.Backend)
		println()

		// Step 2: Storage
		println(infoStyle.Render("Step 2: Opening conversation storage..."))
		storageOK, chatCount := checkStorage(out)
		println()

		// Step 3: Backend
		println(infoStyle.Render("Step 3: Contacting backend..."))
		client := newClient()
		backendOK := true
		if err := client.Health(cmd.Context()); err != nil {
			backendOK = false
			println(errorStyle.Render("❌ Backend unreachable:"), err)
		} else {
			println(successStyle.Render("✅ Backend reachable"))
			detail("URL: %s", client.BaseURL())
		}
		println()

		// Step 4: Agents
		println(infoStyle.Render("Step 4: Listing agents..."))
		if backendOK {
			list, err := client.Agents(cmd.Context())
			switch {
			case err != nil:
				println(warningStyle.Render("⚠️  Failed to list agents:"), err)
			case len(list.Agents) == 0:
				println(warningStyle.Render("⚠️  Backend reports no agents"))
			default:
				println(successStyle.Render(fmt.Sprintf("✅ %d agent(s) available", len(list.Agents))))
				for _, name := range list.Agents {
					detail("• %s", name)
				}
			}
		} else {
			println(warningStyle.Render("⚠️  Skipped, backend unreachable"))
		}
		println()

		// Summary
		println(sectionStyle.Render("📊 Summary"))
		println()
		switch {
		case storageOK && backendOK:
			println(successStyle.Render("✅ Health check passed!"))
			println(successStyle.Render(fmt.Sprintf("   • Saved conversations: %d", chatCount)))
			return nil
		case storageOK:
			println(errorStyle.Render("❌ Health check failed"))
			println("   • Local storage is working")
			println("   • The backend at " + cfg.APIURL + " did not answer")
			return fmt.Errorf("health check failed: backend unreachable")
		default:
			println(errorStyle.Render("❌ Health check failed"))
			println("   • Cannot access saved conversations at " + cfg.StorageLocation())
			return fmt.Errorf("health check failed: storage unavailable")
		}
	},
}

func checkStorage(out io.Writer) (bool, int) {
	store, err := openSessionStore()
	if err != nil {
		_, _ = fmt.Fprintln(out, errorStyle.Render("❌ Storage unavailable:"), err)
		return false, 0
	}
	defer closeStore(store)

	count := len(store.LoadIndex())
	if count == 0 {
		_, _ = fmt.Fprintln(out, warningStyle.Render("⚠️  Storage available but no saved conversations"))
	} else {
		_, _ = fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ Found %d saved conversation(s)", count)))
	}

	orphans, err := store.OrphanedChats()
	if err != nil {
		internal.LogWarn("Failed to scan stored chats: %v", err)
	} else if len(orphans) > 0 {
		internal.PrintWarning(out, fmt.Sprintf("%d stored conversation(s) missing from the index: %s",
			len(orphans), strings.Join(orphans, ", ")))
	}
	return true, count
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVarP(&healthcheckDetails, "details", "d", false, "Show detailed diagnostic information")
}
