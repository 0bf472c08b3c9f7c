package cmd

import (
	"fmt"
	"io"

	"github.com/iksnae/cre-chat/internal"
	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the agents the backend can route to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := newClient().Agents(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list agents: %w", err)
		}
		displayAgents(cmd.OutOrStdout(), list, cfg.Agent)
		return nil
	},
}

func displayAgents(w io.Writer, list *internal.AgentList, current string) {
	if len(list.Agents) == 0 {
		_, _ = fmt.Fprintln(w, headerStyle.Render("🤖 No agents available"))
		return
	}
	_, _ = fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("🤖 %d agent(s)", len(list.Agents))))
	for _, name := range list.Agents {
		marks := ""
		if name == list.DefaultAgent {
			marks += " " + dateStyle.Render("(default)")
		}
		if name == current {
			marks += " " + countStyle.Render("← current")
		}
		_, _ = fmt.Fprintf(w, "  • %s%s\n", chatTitleStyle.Render(name), marks)
	}
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}
