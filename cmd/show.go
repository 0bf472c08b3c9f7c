package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/cre-chat/internal"
	"github.com/spf13/cobra"
)

var (
	showLimit int
	showRaw   bool
)

var (
	// Styles for show command
	sessionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212")).
				Padding(0, 1).
				MarginBottom(1)

	sessionMetaStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				MarginBottom(1)

	userMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 1)

	assistantMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("135")).
				Bold(true).
				Padding(0, 1)

	messageContentStyle = lipgloss.NewStyle().
				Padding(0, 2).
				MarginBottom(1)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <chat-id>",
	Short: "Show the messages of a saved conversation",
	Long: `Display the messages of a saved conversation. Assistant replies are
rendered as Markdown unless --raw is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSessionStore()
		if err != nil {
			return err
		}
		defer closeStore(store)

		transcript, err := store.Transcript(args[0])
		if err != nil {
			if errors.Is(err, internal.ErrChatNotFound) {
				return fmt.Errorf("conversation not found: %s (use 'cre-chat list' to see saved conversations)", args[0])
			}
			return err
		}

		out := cmd.OutOrStdout()
		renderer := internal.NewMarkdownRenderer(cmd.OutOrStdout(), internal.DefaultWrapWidth, showRaw)
		displayTranscriptHeader(out, transcript)

		messages := transcript.Messages
		total := len(messages)
		if showLimit > 0 && showLimit < total {
			messages = messages[:showLimit]
		}
		for i, msg := range messages {
			displayMessage(out, renderer, i+1, msg, total)
		}

		if showLimit > 0 && showLimit < total {
			_, _ = fmt.Fprintln(out, lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				Italic(true).
				Render(fmt.Sprintf("... (%d more message(s))", total-showLimit)))
		}
		return nil
	},
}

func displayTranscriptHeader(w io.Writer, t *internal.Transcript) {
	_, _ = fmt.Fprintln(w, sessionHeaderStyle.Render(fmt.Sprintf("💬 %s", t.Chat.Title)))

	metaParts := []string{fmt.Sprintf("Messages: %d", len(t.Messages))}
	if !t.Chat.Timestamp.IsZero() {
		metaParts = append(metaParts, "Updated: "+t.Chat.Timestamp.Local().Format("2006-01-02 15:04"))
	}
	if t.Chat.ThreadID != "" {
		metaParts = append(metaParts, "Thread: "+t.Chat.ThreadID)
	}
	_, _ = fmt.Fprintln(w, sessionMetaStyle.Render(strings.Join(metaParts, " • ")))
	_, _ = fmt.Fprintln(w)
}

func displayMessage(w io.Writer, renderer *internal.MarkdownRenderer, index int, msg internal.Message, total int) {
	var header string
	if msg.Role == internal.RoleUser {
		header = userMessageStyle.Render("👤 You")
	} else {
		label := "🤖 Assistant"
		if msg.Agent != "" {
			label += " (" + msg.Agent + ")"
		}
		header = assistantMessageStyle.Render(label)
	}
	header += " " + timestampStyle.Render(fmt.Sprintf("[%d/%d]", index, total))
	if !msg.Timestamp.IsZero() {
		header += " " + timestampStyle.Render(msg.Timestamp.Local().Format("15:04:05"))
	}
	_, _ = fmt.Fprintln(w, header)

	content := strings.TrimSpace(msg.Content)
	switch {
	case content == "":
		_, _ = fmt.Fprintln(w, messageContentStyle.Foreground(lipgloss.Color("240")).Render("(empty message)"))
	case msg.Role == internal.RoleAssistant && !renderer.Plain():
		_, _ = fmt.Fprintln(w, renderer.Render(content))
	default:
		_, _ = fmt.Fprintln(w, messageContentStyle.Render(content))
	}
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().IntVarP(&showLimit, "limit", "n", 0, "Limit number of messages to show")
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "Print replies without Markdown rendering")
}
