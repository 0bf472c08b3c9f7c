package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/cre-chat/internal"
)

var (
	agentLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Bold(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)
)

// terminalObserver prints controller output. Without a renderer reply
// text is written as it streams in; with one the finished reply is
// rendered as Markdown in one piece.
type terminalObserver struct {
	mu       sync.Mutex
	out      io.Writer
	errOut   io.Writer
	renderer *internal.MarkdownRenderer
	printed  int
	open     bool
	echoUser bool
	errors   int
}

func newTerminalObserver(out, errOut io.Writer, renderer *internal.MarkdownRenderer) *terminalObserver {
	return &terminalObserver{out: out, errOut: errOut, renderer: renderer}
}

func (o *terminalObserver) MessageAppended(msg internal.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if msg.Role == internal.RoleUser {
		if o.echoUser {
			_, _ = fmt.Fprintf(o.out, "%s %s\n", promptStyle.Render("you ›"), msg.Content)
		}
		return
	}

	if !o.renderer.Plain() {
		o.writeLabel(msg.Agent)
		_, _ = fmt.Fprint(o.out, o.renderer.Render(msg.Content))
	} else {
		if !o.open {
			o.writeLabel(msg.Agent)
		}
		if o.printed <= len(msg.Content) {
			_, _ = fmt.Fprint(o.out, msg.Content[o.printed:])
		}
		_, _ = fmt.Fprintln(o.out)
	}
	o.printed = 0
	o.open = false
}

func (o *terminalObserver) StreamUpdated(msg internal.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if msg.Content == "" {
		// a fresh placeholder starts a new reply
		o.printed = 0
		return
	}
	if !o.renderer.Plain() || len(msg.Content) <= o.printed {
		return
	}
	if !o.open {
		o.writeLabel(msg.Agent)
		o.open = true
	}
	_, _ = fmt.Fprint(o.out, msg.Content[o.printed:])
	o.printed = len(msg.Content)
}

func (o *terminalObserver) AgentSwitched(agent string) {
	internal.LogDebug("agent is now %s", agent)
}

func (o *terminalObserver) Notify(n internal.Notice) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if n.Level == internal.NoticeError {
		o.errors++
		if o.open {
			_, _ = fmt.Fprintln(o.out)
		}
	}
	internal.PrintNotice(o.errOut, n)
}

// failures returns how many error notices have been shown
func (o *terminalObserver) failures() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.errors
}

// finishLine terminates a streamed reply that ended without being appended
func (o *terminalObserver) finishLine() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.open {
		_, _ = fmt.Fprintln(o.out)
	}
	o.printed = 0
	o.open = false
}

func (o *terminalObserver) writeLabel(agent string) {
	if agent == "" {
		agent = internal.DefaultAgent
	}
	_, _ = fmt.Fprint(o.out, agentLabelStyle.Render(strings.ToLower(agent)+" ›")+" ")
}
