package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/iksnae/cre-chat/internal"
	"github.com/spf13/cobra"
)

var (
	storeDeleteYes    bool
	uploadConcurrency int
)

var storesCmd = &cobra.Command{
	Use:     "stores",
	Aliases: []string{"vector-stores"},
	Short:   "Manage the backend's vector stores",
}

var storesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List vector stores",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, err := newClient().ListVectorStores(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list vector stores: %w", err)
		}
		displayStores(cmd.OutOrStdout(), stores)
		return nil
	},
}

var storesCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a vector store",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newClient().CreateVectorStore(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("failed to create vector store: %w", err)
		}
		internal.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Created vector store %s (%s)", store.Name, store.ID))
		return nil
	},
}

var storesGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one vector store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newClient().GetVectorStore(cmd.Context(), args[0])
		if err != nil {
			if internal.IsNotFound(err) {
				return fmt.Errorf("vector store not found: %s", args[0])
			}
			return fmt.Errorf("failed to get vector store: %w", err)
		}
		displayStores(cmd.OutOrStdout(), []internal.VectorStore{*store})
		return nil
	},
}

var storesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a vector store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !storeDeleteYes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete vector store %s?", args[0])) {
			internal.PrintInfo(cmd.OutOrStdout(), "Cancelled")
			return nil
		}
		msg, err := newClient().DeleteVectorStore(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to delete vector store: %w", err)
		}
		if msg == "" {
			msg = "Deleted vector store " + args[0]
		}
		internal.PrintSuccess(cmd.OutOrStdout(), msg)
		return nil
	},
}

var storesSearchCmd = &cobra.Command{
	Use:   "search <id> <query>",
	Short: "Search a vector store",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args[1:], " ")
		results, err := newClient().SearchVectorStore(cmd.Context(), args[0], query)
		if err != nil {
			return fmt.Errorf("failed to search vector store: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(results) == 0 {
			_, _ = fmt.Fprintln(out, headerStyle.Render("🔎 No results"))
			return nil
		}
		_, _ = fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("🔎 %d result(s) for %q", len(results), query)))
		for i, r := range results {
			_, _ = fmt.Fprintf(out, "%s %s\n", countStyle.Render(fmt.Sprintf("%d.", i+1)), dateStyle.Render(fmt.Sprintf("score %.3f", r.Score)))
			_, _ = fmt.Fprintln(out, messageContentStyle.Render(strings.TrimSpace(r.Text)))
		}
		return nil
	},
}

var storesUploadCmd = &cobra.Command{
	Use:   "upload <id> <file>...",
	Short: "Upload files into a vector store",
	Long: `Upload files into a vector store, one request per file. A file that
fails does not stop the others; the command fails if any file failed.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		concurrency := uploadConcurrency
		if !cmd.Flags().Changed("concurrency") {
			concurrency = cfg.UploadConcurrency
		}

		out := cmd.OutOrStdout()
		storeID, paths := args[0], args[1:]
		summary := internal.UploadFiles(cmd.Context(), newClient(), storeID, paths, concurrency, func(p internal.UploadProgress) {
			displayUploadProgress(out, p)
		})

		if summary.Succeeded > 0 {
			internal.PrintSuccess(out, fmt.Sprintf("%d file(s) uploaded to vector store %s", summary.Succeeded, storeID))
		}
		if summary.Failed > 0 {
			return fmt.Errorf("failed to upload %d file(s)", summary.Failed)
		}
		return nil
	},
}

func displayStores(w io.Writer, stores []internal.VectorStore) {
	if len(stores) == 0 {
		_, _ = fmt.Fprintln(w, headerStyle.Render("🗂  No vector stores"))
		return
	}
	_, _ = fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("🗂  %d vector store(s)", len(stores))))

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(tw, titleStyle.Render("ID")+"\t"+titleStyle.Render("Name")+"\t"+titleStyle.Render("Status")+"\t"+titleStyle.Render("Created")+"\t")
	for _, s := range stores {
		created := "—"
		if s.CreatedAt > 0 {
			created = time.Unix(s.CreatedAt, 0).Local().Format("2006-01-02 15:04")
		}
		status := s.Status
		if status == "" {
			status = "—"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", idStyle.Render(s.ID), chatTitleStyle.Render(s.Name), status, dateStyle.Render(created))
	}
	_ = tw.Flush()
}

func displayUploadProgress(w io.Writer, p internal.UploadProgress) {
	var mark string
	switch p.Item.Status {
	case internal.UploadUploading:
		mark = "…"
	case internal.UploadSuccess:
		mark = countStyle.Render("✓")
	case internal.UploadError:
		mark = "✗"
	default:
		mark = "·"
	}
	line := fmt.Sprintf("%s %s %s", internal.RenderProgressBar(p.Percent, 20), mark, p.Item.Name)
	if p.Item.Err != nil {
		line += ": " + p.Item.Err.Error()
	}
	_, _ = fmt.Fprintln(w, line)
}

// confirm asks a yes/no question on in, defaulting to no
func confirm(in io.Reader, out io.Writer, question string) bool {
	_, _ = fmt.Fprintf(out, "%s [y/N] ", question)
	reader := bufio.NewReader(in)
	answer, _ := reader.ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func init() {
	rootCmd.AddCommand(storesCmd)
	storesCmd.AddCommand(storesListCmd, storesCreateCmd, storesGetCmd, storesDeleteCmd, storesSearchCmd, storesUploadCmd)
	storesDeleteCmd.Flags().BoolVarP(&storeDeleteYes, "yes", "y", false, "Delete without asking for confirmation")
	storesUploadCmd.Flags().IntVarP(&uploadConcurrency, "concurrency", "c", 1, "Number of files uploaded at once (default from config)")
}
