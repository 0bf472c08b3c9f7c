package cmd

import (
	"fmt"
	"strings"

	"github.com/iksnae/cre-chat/internal"
	"github.com/spf13/cobra"
)

var (
	askAgent    string
	askChat     string
	askMarkdown bool
)

// askCmd sends one question and streams the reply
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question and stream the reply",
	Long: `Ask a single question and stream the reply to stdout. The exchange is
saved as a new conversation, or appended to the one named by --chat.`,
	Example: `  cre-chat ask "What are industrial cap rates in Phoenix?"
  cre-chat ask --agent market "Vacancy trends in Austin office"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.TrimSpace(strings.Join(args, " "))
		if question == "" {
			return fmt.Errorf("question must not be empty")
		}

		store, err := openSessionStore()
		if err != nil {
			return err
		}
		defer closeStore(store)

		renderer := internal.NewMarkdownRenderer(cmd.OutOrStdout(), internal.DefaultWrapWidth, !askMarkdown)
		observer := newTerminalObserver(cmd.OutOrStdout(), cmd.ErrOrStderr(), renderer)
		ctrl := newController(newClient(), store, askAgent, observer)
		defer ctrl.Cancel()
		defer flushController(ctrl)

		if askChat != "" {
			if err := ctrl.SelectChat(askChat); err != nil {
				return fmt.Errorf("failed to open %s: %w", askChat, err)
			}
		}

		if err := ctrl.Send(cmd.Context(), question); err != nil {
			return err
		}
		if err := ctrl.Wait(cmd.Context()); err != nil {
			observer.finishLine()
			return err
		}
		observer.finishLine()

		if observer.failures() > 0 {
			return fmt.Errorf("the reply did not complete")
		}
		messages := ctrl.Messages()
		if n := len(messages); n == 0 || messages[n-1].Role != internal.RoleAssistant {
			return fmt.Errorf("no reply received")
		}
		if id := ctrl.ChatID(); id != "" {
			internal.LogInfo("saved as %s", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askAgent, "agent", "a", "", "Agent to ask (default from config)")
	askCmd.Flags().StringVar(&askChat, "chat", "", "Append the exchange to a saved conversation")
	askCmd.Flags().BoolVarP(&askMarkdown, "markdown", "m", false, "Render the reply as Markdown once complete")
}
