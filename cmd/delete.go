package cmd

import (
	"errors"
	"fmt"

	"github.com/iksnae/cre-chat/internal"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <chat-id>...",
	Short: "Delete saved conversations",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSessionStore()
		if err != nil {
			return err
		}
		defer closeStore(store)

		for _, id := range args {
			if _, ok := store.Find(id); !ok {
				if _, err := store.LoadChat(id); errors.Is(err, internal.ErrChatNotFound) {
					return fmt.Errorf("conversation not found: %s", id)
				}
			}
			if err := store.DeleteChat(id); err != nil {
				return fmt.Errorf("failed to delete %s: %w", id, err)
			}
			internal.PrintSuccess(cmd.OutOrStdout(), "Deleted "+id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
