package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/iksnae/cre-chat/internal"
	"github.com/spf13/cobra"
)

var fileDeleteYes bool

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Manage files held by the backend",
}

var filesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := newClient().ListFiles(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list files: %w", err)
		}
		displayFiles(cmd.OutOrStdout(), files)
		return nil
	},
}

var filesDeleteCmd = &cobra.Command{
	Use:   "delete <file-id>",
	Short: "Delete a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !fileDeleteYes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete file %s?", args[0])) {
			internal.PrintInfo(cmd.OutOrStdout(), "Cancelled")
			return nil
		}
		msg, err := newClient().DeleteFile(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to delete file: %w", err)
		}
		if msg == "" {
			msg = "Deleted file " + args[0]
		}
		internal.PrintSuccess(cmd.OutOrStdout(), msg)
		return nil
	},
}

func displayFiles(w io.Writer, files []internal.StoredFile) {
	if len(files) == 0 {
		_, _ = fmt.Fprintln(w, headerStyle.Render("📄 No files"))
		return
	}
	_, _ = fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("📄 %d file(s)", len(files))))

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(tw, titleStyle.Render("ID")+"\t"+titleStyle.Render("Filename")+"\t"+titleStyle.Render("Purpose")+"\t"+titleStyle.Render("Size")+"\t")
	for _, f := range files {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", idStyle.Render(f.ID), chatTitleStyle.Render(f.Filename), f.Purpose, dateStyle.Render(formatBytes(f.Bytes)))
	}
	_ = tw.Flush()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

func init() {
	rootCmd.AddCommand(filesCmd)
	filesCmd.AddCommand(filesListCmd, filesDeleteCmd)
	filesDeleteCmd.Flags().BoolVarP(&fileDeleteYes, "yes", "y", false, "Delete without asking for confirmation")
}
