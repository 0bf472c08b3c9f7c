package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/iksnae/cre-chat/internal"
	"github.com/spf13/cobra"
)

var (
	excelSheet   string
	excelMaxRows int
)

var excelCmd = &cobra.Command{
	Use:   "excel",
	Short: "Browse the spreadsheets the agents can read",
}

var excelFilesCmd = &cobra.Command{
	Use:   "files",
	Short: "List spreadsheets and their sheets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := newClient().ExcelFiles(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list spreadsheets: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(files) == 0 {
			_, _ = fmt.Fprintln(out, headerStyle.Render("📊 No spreadsheets"))
			return nil
		}

		names := make([]string, 0, len(files))
		for name := range files {
			names = append(names, name)
		}
		sort.Strings(names)

		_, _ = fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("📊 %d spreadsheet(s)", len(files))))
		for _, name := range names {
			file := files[name]
			_, _ = fmt.Fprintf(out, "  %s %s\n", chatTitleStyle.Render(name), dateStyle.Render(file.Modified))
			for _, sheet := range file.Sheets {
				rows := ""
				if n, ok := file.RowCount[sheet]; ok {
					rows = dateStyle.Render(fmt.Sprintf("(%d rows)", n))
				}
				_, _ = fmt.Fprintf(out, "    • %s %s\n", sheet, rows)
			}
		}
		return nil
	},
}

var excelSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search every spreadsheet",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := newClient().SearchExcel(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("failed to search spreadsheets: %w", err)
		}
		return writeIndentedJSON(cmd.OutOrStdout(), results)
	},
}

var excelReadCmd = &cobra.Command{
	Use:   "read <filename>",
	Short: "Read rows of one sheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := newClient().ReadExcelSheet(cmd.Context(), args[0], excelSheet, excelMaxRows)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		displayRows(cmd.OutOrStdout(), rows)
		return nil
	},
}

var excelPreviewCmd = &cobra.Command{
	Use:   "preview <filename>",
	Short: "Preview the first rows of every sheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		preview, err := newClient().PreviewExcel(cmd.Context(), args[0])
		if err != nil {
			if internal.IsNotFound(err) {
				return fmt.Errorf("spreadsheet not found: %s", args[0])
			}
			return fmt.Errorf("failed to preview %s: %w", args[0], err)
		}

		sheets := make([]string, 0, len(preview))
		for sheet := range preview {
			sheets = append(sheets, sheet)
		}
		sort.Strings(sheets)

		out := cmd.OutOrStdout()
		for _, sheet := range sheets {
			_, _ = fmt.Fprintln(out, sessionHeaderStyle.Render("📄 "+sheet))
			displayRows(out, preview[sheet])
		}
		return nil
	},
}

var excelRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Ask the backend to rescan its spreadsheets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var changes json.RawMessage
		err := internal.ShowProgress(cmd.Context(), cmd.ErrOrStderr(), "Refreshing spreadsheets", func() error {
			var err error
			changes, err = newClient().RefreshExcel(cmd.Context())
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to refresh spreadsheets: %w", err)
		}
		return writeIndentedJSON(cmd.OutOrStdout(), changes)
	},
}

// displayRows prints rows as a table with columns in sorted order
func displayRows(w io.Writer, rows []internal.Row) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, dateStyle.Render("(no rows)"))
		return
	}

	seen := map[string]bool{}
	var columns []string
	for _, row := range rows {
		for col := range row {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
	}
	sort.Strings(columns)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(columns, "\t")+"\t")
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			if v, ok := row[col]; ok && v != nil {
				cells[i] = fmt.Sprint(v)
			}
		}
		_, _ = fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	_ = tw.Flush()
}

func writeIndentedJSON(w io.Writer, raw json.RawMessage) error {
	if len(raw) == 0 {
		_, _ = fmt.Fprintln(w, "null")
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return &internal.ParseError{Source: "api", Key: "excel", Err: err}
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

func init() {
	rootCmd.AddCommand(excelCmd)
	excelCmd.AddCommand(excelFilesCmd, excelSearchCmd, excelReadCmd, excelPreviewCmd, excelRefreshCmd)
	excelReadCmd.Flags().StringVar(&excelSheet, "sheet", "", "Sheet to read")
	_ = excelReadCmd.MarkFlagRequired("sheet")
	excelReadCmd.Flags().IntVarP(&excelMaxRows, "max-rows", "n", 100, "Maximum number of rows to read")
}
