package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/iksnae/cre-chat/internal"
	"github.com/iksnae/cre-chat/internal/export"
	"github.com/spf13/cobra"
)

var (
	format    string
	outputDir string
	chatID    string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export saved conversations to files",
	Long: `Export saved conversations to various formats (jsonl, md, yaml, json).

Every saved conversation is exported unless --id names a single one.
Use 'cre-chat list' to see available conversation IDs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := export.NewExporter(format)
		if err != nil {
			return err
		}

		store, err := openSessionStore()
		if err != nil {
			return err
		}
		defer closeStore(store)

		var ids []string
		if chatID != "" {
			ids = []string{chatID}
		} else {
			for _, chat := range store.LoadIndex() {
				ids = append(ids, chat.ID)
			}
		}
		if len(ids) == 0 {
			internal.PrintInfo(cmd.OutOrStdout(), "No saved conversations to export")
			return nil
		}

		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		exported := 0
		steps := make([]internal.ProgressStep, 0, len(ids))
		for _, id := range ids {
			id := id
			steps = append(steps, internal.ProgressStep{
				Message: fmt.Sprintf("Exporting %s", id),
				Fn: func() error {
					err := exportChat(store, exporter, id)
					switch {
					case err != nil && chatID != "":
						return err
					case err != nil:
						internal.LogWarn("Skipping %s: %v", id, err)
					default:
						exported++
					}
					return nil
				},
			})
		}
		if err := internal.ShowProgressWithSteps(cmd.Context(), cmd.ErrOrStderr(), steps); err != nil {
			return err
		}

		internal.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Export complete: %d conversation(s) exported to %s", exported, outputDir))
		return nil
	},
}

// exportChat writes one conversation into outputDir
func exportChat(store *internal.SessionStore, exporter export.Exporter, id string) error {
	transcript, err := store.Transcript(id)
	if errors.Is(err, internal.ErrChatNotFound) {
		return fmt.Errorf("conversation not found: %s (use 'cre-chat list' to see saved conversations)", id)
	}
	if err != nil {
		return err
	}
	path := filepath.Join(outputDir, fmt.Sprintf("%s.%s", id, exporter.Extension()))
	return writeExport(exporter, transcript, path)
}

func writeExport(exporter export.Exporter, transcript *internal.Transcript, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return &internal.ExportError{Format: exporter.Extension(), Path: path, Err: err}
	}
	if err := exporter.Export(transcript, file); err != nil {
		_ = file.Close()
		return &internal.ExportError{Format: exporter.Extension(), Path: path, Err: err}
	}
	if err := file.Close(); err != nil {
		return &internal.ExportError{Format: exporter.Extension(), Path: path, Err: err}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&format, "format", "f", "jsonl", "Export format ("+strings.Join(export.Formats, ", ")+")")
	exportCmd.Flags().StringVarP(&outputDir, "output", "o", "./exports", "Output directory")
	exportCmd.Flags().StringVar(&chatID, "id", "", "Export a specific conversation by ID")
}
