package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/cre-chat/internal"
	"github.com/spf13/cobra"
)

var (
	chatAgent    string
	chatOpen     string
	chatMarkdown bool
)

const chatHelp = `Commands:
  /new               start a new conversation
  /clear             clear the current conversation
  /agent [name]      show or switch the agent
  /agents            list the backend's agents
  /sessions [text]   list saved conversations
  /open <id>         continue a saved conversation
  /delete <id>       delete a saved conversation
  /help              show this help
  /quit              leave`

// chatCmd represents the interactive chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat",
	Long: `Start an interactive chat with the research assistant. Replies stream
in as they are generated and the conversation is saved as it goes.

` + chatHelp,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSessionStore()
		if err != nil {
			return err
		}
		defer closeStore(store)

		client := newClient()
		renderer := internal.NewMarkdownRenderer(cmd.OutOrStdout(), internal.DefaultWrapWidth, !chatMarkdown)
		observer := newTerminalObserver(cmd.OutOrStdout(), cmd.ErrOrStderr(), renderer)
		ctrl := newController(client, store, chatAgent, observer)
		defer ctrl.Cancel()
		defer flushController(ctrl)

		session := &chatSession{
			ctx:      cmd.Context(),
			out:      cmd.OutOrStdout(),
			ctrl:     ctrl,
			client:   client,
			store:    store,
			observer: observer,
			renderer: renderer,
		}
		if chatOpen != "" {
			if err := session.open(chatOpen); err != nil {
				return err
			}
		}
		return session.run(cmd.InOrStdin())
	},
}

// chatSession is one run of the interactive loop
type chatSession struct {
	ctx      context.Context
	out      io.Writer
	ctrl     *internal.ChatController
	client   *internal.Client
	store    *internal.SessionStore
	observer *terminalObserver
	renderer *internal.MarkdownRenderer
}

func (s *chatSession) run(in io.Reader) error {
	_, _ = fmt.Fprintln(s.out, headerStyle.Render("💬 CRE research assistant"))
	_, _ = fmt.Fprintln(s.out, idStyle.Render(fmt.Sprintf("agent %s · /help for commands · /quit to leave", s.ctrl.Agent())))

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		_, _ = fmt.Fprint(s.out, promptStyle.Render("› "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := s.command(line)
			if err != nil {
				internal.PrintError(s.out, err.Error())
			}
			if quit {
				return nil
			}
			continue
		}

		if err := s.ctrl.Send(s.ctx, line); err != nil {
			// the failure was already shown as a notice
			internal.LogDebug("send failed: %v", err)
			continue
		}
		if err := s.ctrl.Wait(s.ctx); err != nil {
			s.observer.finishLine()
			return nil
		}
		s.observer.finishLine()
	}
	_, _ = fmt.Fprintln(s.out)
	return scanner.Err()
}

// command runs one slash command and reports whether the loop should end
func (s *chatSession) command(line string) (bool, error) {
	fields := strings.Fields(line)
	name, rest := fields[0], strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch name {
	case "/quit", "/exit", "/q":
		return true, nil
	case "/help":
		_, _ = fmt.Fprintln(s.out, chatHelp)
	case "/new":
		_, err := s.ctrl.NewChat()
		return false, err
	case "/clear":
		return false, s.ctrl.Clear()
	case "/agent":
		if rest == "" {
			_, _ = fmt.Fprintf(s.out, "Current agent: %s\n", s.ctrl.Agent())
			return false, nil
		}
		s.ctrl.SetAgent(rest)
		internal.PrintSuccess(s.out, "Switched to agent "+s.ctrl.Agent())
	case "/agents":
		list, err := s.client.Agents(s.ctx)
		if err != nil {
			return false, fmt.Errorf("failed to list agents: %w", err)
		}
		displayAgents(s.out, list, s.ctrl.Agent())
	case "/sessions":
		displayChats(s.out, listChats(s.store, rest), timeNow())
	case "/open":
		if rest == "" {
			return false, fmt.Errorf("usage: /open <id>")
		}
		return false, s.open(rest)
	case "/delete":
		if rest == "" {
			return false, fmt.Errorf("usage: /delete <id>")
		}
		if err := s.ctrl.DeleteChat(rest); err != nil {
			return false, err
		}
		internal.PrintSuccess(s.out, "Deleted "+rest)
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return false, nil
}

// open loads a saved conversation and replays it
func (s *chatSession) open(id string) error {
	if err := s.ctrl.SelectChat(id); err != nil {
		return fmt.Errorf("failed to open %s: %w", id, err)
	}
	title := id
	if chat, ok := s.store.Find(id); ok {
		title = chat.Title
	}
	_, _ = fmt.Fprintln(s.out, sessionHeaderStyle.Render("💬 "+title))

	messages := s.ctrl.Messages()
	for i, msg := range messages {
		displayMessage(s.out, s.renderer, i+1, msg, len(messages))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&chatAgent, "agent", "a", "", "Agent to talk to (default from config)")
	chatCmd.Flags().StringVar(&chatOpen, "open", "", "Continue a saved conversation")
	chatCmd.Flags().BoolVarP(&chatMarkdown, "markdown", "m", false, "Render finished replies as Markdown instead of streaming them")
}
