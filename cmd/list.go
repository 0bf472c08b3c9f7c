package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/cre-chat/internal"
	"github.com/spf13/cobra"
)

const watchDebounce = 100 * time.Millisecond

var (
	listSearch string
	listWatch  bool
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	chatTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	previewStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved conversations",
	Long: `List saved conversations, newest first.

With --watch the listing is redrawn whenever conversations are saved or
deleted, including by another cre-chat process sharing the same storage.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSessionStore()
		if err != nil {
			return err
		}
		defer closeStore(store)

		out := cmd.OutOrStdout()
		render := func() {
			displayChats(out, listChats(store, listSearch), timeNow())
		}
		render()

		if !listWatch {
			return nil
		}
		return watchChats(cmd.Context(), store, render)
	},
}

func listChats(store *internal.SessionStore, query string) []internal.SavedChat {
	if query != "" {
		return store.Search(query)
	}
	return store.LoadIndex()
}

// watchChats calls render after every burst of storage changes until ctx
// is done.
func watchChats(ctx context.Context, store *internal.SessionStore, render func()) error {
	events, cancel := store.Notifier().Subscribe(16)
	defer cancel()

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- internal.WatchStorage(ctx, cfg.StorageLocation(), store.Notifier(), watchDebounce)
	}()

	for {
		select {
		case <-ctx.Done():
			<-watchErr
			return nil
		case err := <-watchErr:
			if err != nil {
				return fmt.Errorf("failed to watch storage: %w", err)
			}
			return nil
		case ev := <-events:
			internal.LogDebug("storage changed (%s %s), refreshing", ev.Kind, ev.ChatID)
			render()
		}
	}
}

func displayChats(w io.Writer, chats []internal.SavedChat, now time.Time) {
	if len(chats) == 0 {
		_, _ = fmt.Fprintln(w, headerStyle.Render("📋 No saved conversations"))
		return
	}

	_, _ = fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("📋 %d saved conversation(s)", len(chats))))
	_, _ = fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(tw, titleStyle.Render("ID")+"\t"+titleStyle.Render("Title")+"\t"+titleStyle.Render("Last message")+"\t"+titleStyle.Render("Updated")+"\t")
	_, _ = fmt.Fprintln(tw, strings.Repeat("─", 100))

	for _, chat := range chats {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n",
			idStyle.Render(chat.ID),
			chatTitleStyle.Render(chat.Title),
			previewStyle.Render(chat.LastMessage),
			dateStyle.Render(formatRelative(chat.Timestamp, now)))
	}

	_ = tw.Flush()
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, idStyle.Render("💡 Tip: Use the ID with `cre-chat show <id>` or `cre-chat chat --open <id>`"))
}

func formatRelative(t, now time.Time) string {
	if t.IsZero() {
		return "—"
	}
	t = t.Local()
	diff := now.Sub(t)
	switch {
	case diff < 24*time.Hour:
		return t.Format("Today 15:04")
	case diff < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	case diff < 365*24*time.Hour:
		return t.Format("Jan 02 15:04")
	default:
		return t.Format("2006-01-02")
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVarP(&listSearch, "search", "s", "", "Only show conversations whose title contains the text")
	listCmd.Flags().BoolVarP(&listWatch, "watch", "w", false, "Keep running and refresh when conversations change")
}
