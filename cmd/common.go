package cmd

import (
	"fmt"
	"time"

	"github.com/iksnae/cre-chat/internal"
	"github.com/spf13/cobra"
)

var timeNow = time.Now

// loadConfig resolves settings with the persistent flags bound over the
// environment and config file.
func loadConfig(cmd *cobra.Command) (*internal.Config, error) {
	internal.LoadDotEnv(".")
	v := internal.NewViper(cfgFile)

	bindings := map[string]string{
		"api_url":         "api-url",
		"storage.path":    "storage",
		"storage.backend": "backend",
	}
	for key, flag := range bindings {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind --%s: %w", flag, err)
			}
		}
	}

	return internal.LoadConfig(v)
}

func newClient() *internal.Client {
	return internal.NewClient(cfg.APIURL, internal.WithRequestTimeout(cfg.RequestTimeout))
}

// openSessionStore opens the configured saved-chat storage. The caller
// must Close it.
func openSessionStore() (*internal.SessionStore, error) {
	kv, err := internal.OpenStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return internal.NewSessionStore(kv, internal.NewNotifier()), nil
}

// newController wires a chat controller to the backend and the store
func newController(client *internal.Client, store *internal.SessionStore, agent string, observer internal.Observer) *internal.ChatController {
	if agent == "" {
		agent = cfg.Agent
	}
	return internal.NewChatController(client, store, internal.ControllerOptions{
		Agent:           agent,
		PersistDebounce: cfg.PersistDebounce,
		StreamTimeout:   cfg.StreamTimeout,
		Observer:        observer,
	})
}

func closeStore(store *internal.SessionStore) {
	if err := store.Close(); err != nil {
		internal.LogWarn("Failed to close storage: %v", err)
	}
}

// flushController writes any conversation state the persist debounce held back
func flushController(ctrl *internal.ChatController) {
	if err := ctrl.Flush(); err != nil {
		internal.LogWarn("Failed to save conversation: %v", err)
	}
}
