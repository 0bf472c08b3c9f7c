package internal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// DefaultPersistDebounce is the minimum spacing between two persists
const DefaultPersistDebounce = 150 * time.Millisecond

// ChatState is the lifecycle stage of the exchange in progress
type ChatState int

const (
	StateIdle ChatState = iota
	StateSending
	StateStreaming
	StateFinalizing
)

func (s ChatState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// Streamer opens the server-push connection for one exchange
type Streamer interface {
	OpenStream(ctx context.Context, req StreamRequest) (EventStream, error)
}

// NoticeLevel classifies a user-facing notice
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeSuccess
	NoticeError
)

// Notice is a short user-facing status line
type Notice struct {
	Level NoticeLevel
	Text  string
}

// Observer receives controller updates. Callbacks run while the controller
// is locked and must not call back into it.
type Observer interface {
	MessageAppended(msg Message)
	StreamUpdated(msg Message)
	AgentSwitched(agent string)
	Notify(n Notice)
}

// NopObserver ignores every update
type NopObserver struct{}

func (NopObserver) MessageAppended(Message) {}
func (NopObserver) StreamUpdated(Message)   {}
func (NopObserver) AgentSwitched(string)    {}
func (NopObserver) Notify(Notice)           {}

// ControllerOptions configures a ChatController
type ControllerOptions struct {
	Agent           string
	ThreadID        string
	PersistDebounce time.Duration
	StreamTimeout   time.Duration
	Observer        Observer
	Clock           func() time.Time
}

// activeStream is the single open stream handle of a controller
type activeStream struct {
	id     string
	handle EventStream
	cancel context.CancelFunc
	done   chan struct{}
	closed sync.Once
	signal sync.Once
}

func (a *activeStream) close() {
	a.closed.Do(func() {
		a.cancel()
		if err := a.handle.Close(); err != nil {
			LogDebug("Closing stream %s: %v", a.id, err)
		}
	})
}

func (a *activeStream) finish() {
	a.signal.Do(func() { close(a.done) })
}

// ChatController drives one chat session: it sends user messages, folds
// stream events into the assistant reply, and persists the conversation.
type ChatController struct {
	mu sync.Mutex

	streamer      Streamer
	store         *SessionStore
	observer      Observer
	now           func() time.Time
	debounce      time.Duration
	streamTimeout time.Duration

	state       ChatState
	threadID    string
	chatID      string
	agent       string
	messages    []Message
	streaming   *Message
	active      *activeStream
	lastStream  string
	lastPersist time.Time
	pending     []Message

	dedup *Deduplicator
	guard *completionGuard
}

// NewChatController creates a controller sending through streamer and
// persisting into store.
func NewChatController(streamer Streamer, store *SessionStore, opts ControllerOptions) *ChatController {
	c := &ChatController{
		streamer:      streamer,
		store:         store,
		observer:      opts.Observer,
		now:           opts.Clock,
		debounce:      opts.PersistDebounce,
		streamTimeout: opts.StreamTimeout,
		threadID:      opts.ThreadID,
		agent:         strings.ToLower(opts.Agent),
		dedup:         NewDeduplicator(),
		guard:         newCompletionGuard(),
	}
	if c.observer == nil {
		c.observer = NopObserver{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.debounce <= 0 {
		c.debounce = DefaultPersistDebounce
	}
	if c.threadID == "" {
		c.threadID = NewThreadID()
	}
	if c.agent == "" {
		c.agent = DefaultAgent
	}
	return c
}

// Send appends message as a user turn and opens a stream for the reply.
// A repeat of the previous call within the same millisecond is ignored.
// Send returns once the stream is open; use Wait to block for the reply.
func (c *ChatController) Send(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.dedup.SeenSubmit(message, now) {
		LogDebug("Ignoring duplicate submit: %s", SubmitKey(message, now))
		return nil
	}

	if c.active != nil {
		LogDebug("Closing previous stream %s", c.active.id)
		c.abandonLocked()
	}

	user := Message{Role: RoleUser, Content: message, Timestamp: now}
	c.messages = append(c.messages, user)
	c.observer.MessageAppended(user)
	c.state = StateSending

	streamID := NewStreamID()
	var (
		streamCtx context.Context
		cancel    context.CancelFunc
	)
	if c.streamTimeout > 0 {
		streamCtx, cancel = context.WithTimeout(ctx, c.streamTimeout)
	} else {
		streamCtx, cancel = context.WithCancel(ctx)
	}

	handle, err := c.streamer.OpenStream(streamCtx, StreamRequest{
		Message:  message,
		ThreadID: c.threadID,
		Agent:    c.agent,
	})
	if err != nil {
		cancel()
		c.state = StateIdle
		LogError("Failed to open stream: %v", err)
		c.observer.Notify(Notice{Level: NoticeError, Text: "Failed to send message. Please try again."})
		return &StreamError{StreamID: streamID, Err: err}
	}

	as := &activeStream{id: streamID, handle: handle, cancel: cancel, done: make(chan struct{})}
	c.active = as
	c.lastStream = streamID
	c.streaming = &Message{
		Role:        RoleAssistant,
		Timestamp:   now,
		Agent:       c.agent,
		IsStreaming: true,
	}
	c.state = StateStreaming
	c.observer.StreamUpdated(*c.streaming)

	go c.consume(as)
	return nil
}

// Wait blocks until the current stream completes or ctx is done
func (c *ChatController) Wait(ctx context.Context) error {
	c.mu.Lock()
	as := c.active
	c.mu.Unlock()
	if as == nil {
		return nil
	}
	select {
	case <-as.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel abandons the stream in progress, discarding its partial reply
func (c *ChatController) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		LogDebug("Cancelling stream %s", c.active.id)
		c.abandonLocked()
		c.state = StateIdle
	}
}

// abandonLocked completes the active stream without finalizing its reply
func (c *ChatController) abandonLocked() {
	as := c.active
	c.guard.complete(as.id)
	c.active = nil
	c.streaming = nil
	as.close()
	as.finish()
}

// consume reads events from one handle until it completes
func (c *ChatController) consume(as *activeStream) {
	defer as.close()
	for {
		ev, err := as.handle.Next()
		if err != nil {
			var perr *ParseError
			if errors.As(err, &perr) {
				c.handleParseFailure(as.id, err)
			} else {
				c.handleTransportError(as.id, err)
			}
			return
		}
		if finished := c.handleEvent(as.id, ev); finished {
			return
		}
	}
}

// handleEvent applies one event of stream streamID and reports whether the
// stream is complete.
func (c *ChatController) handleEvent(streamID string, ev StreamEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.guard.isComplete(streamID) {
		LogDebug("Dropping %s event for completed stream %s", ev.Type, streamID)
		return true
	}
	if c.active == nil || c.active.id != streamID || c.streaming == nil {
		return true
	}

	switch ev.Type {
	case EventContent:
		if text := ev.Text(); text != "" {
			c.streaming.Content += text
			c.observer.StreamUpdated(*c.streaming)
		}
	case EventAgentSwitch:
		if name := strings.ToLower(ev.AgentName()); name != "" {
			LogDebug("Agent switched to %s", name)
			c.streaming.Agent = name
			c.agent = name
			c.observer.AgentSwitched(name)
			c.observer.StreamUpdated(*c.streaming)
		}
	case EventToolCall:
		if ev.HasData() {
			c.streaming.Content += "\n\nUsing tool: " + ev.ToolName() + "\n"
			c.observer.StreamUpdated(*c.streaming)
		}
	case EventToolOutput:
		if ev.HasData() {
			c.streaming.Content += "\n " + ev.Text() + "\n\n"
			c.observer.StreamUpdated(*c.streaming)
		}
	case EventError:
		LogError("Stream %s reported error: %s", streamID, ev.Error)
		c.failLocked(streamID, "\n\nError: "+ev.Error, ev.Error)
		return true
	case EventDone:
		c.finishLocked(streamID)
		return true
	default:
		LogDebug("Ignoring unknown event type %q", ev.Type)
	}
	return false
}

func (c *ChatController) handleTransportError(streamID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.guard.isComplete(streamID) {
		return
	}

	text := "Connection error."
	if errors.Is(err, context.DeadlineExceeded) {
		text = "The response timed out."
	}
	LogError("Stream %s failed: %v", streamID, err)
	c.failLocked(streamID, "\n\nConnection error.", text)
}

func (c *ChatController) handleParseFailure(streamID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	as, ok := c.completeLocked(streamID)
	if !ok {
		return
	}
	defer as.finish()

	LogError("Stream %s sent a malformed event: %v", streamID, err)
	c.observer.Notify(Notice{Level: NoticeError, Text: "Received a malformed response from the server."})
	c.streaming = nil
	c.state = StateIdle
}

// completeLocked marks streamID complete and detaches its handle. It
// returns false when the stream was already completed or is not active.
func (c *ChatController) completeLocked(streamID string) (*activeStream, bool) {
	if !c.guard.complete(streamID) {
		LogDebug("Stream %s already complete", streamID)
		return nil, false
	}
	as := c.active
	if as == nil || as.id != streamID {
		return nil, false
	}
	c.active = nil
	as.close()
	c.state = StateFinalizing
	return as, true
}

// takeStreamingLocked detaches the placeholder and returns it finalized,
// or nil when it holds no content.
func (c *ChatController) takeStreamingLocked() *Message {
	msg := c.streaming
	c.streaming = nil
	if msg == nil || msg.Content == "" {
		return nil
	}
	msg.IsStreaming = false
	return msg
}

func (c *ChatController) finishLocked(streamID string) {
	as, ok := c.completeLocked(streamID)
	if !ok {
		return
	}
	defer as.finish()

	if final := c.takeStreamingLocked(); final != nil {
		if IsDuplicateFinal(c.messages, *final) {
			LogDebug("Skipping duplicate final message")
		} else {
			c.messages = append(c.messages, *final)
			c.observer.MessageAppended(*final)
			c.persistLocked(c.messages)
		}
	}
	c.state = StateIdle
}

func (c *ChatController) failLocked(streamID, suffix, text string) {
	as, ok := c.completeLocked(streamID)
	if !ok {
		return
	}
	defer as.finish()

	c.observer.Notify(Notice{Level: NoticeError, Text: text})
	if final := c.takeStreamingLocked(); final != nil {
		final.Content += suffix
		c.messages = append(c.messages, *final)
		c.observer.MessageAppended(*final)
	}
	c.state = StateIdle
}

// Persist saves messages as the current chat, subject to the debounce
func (c *ChatController) Persist(messages []Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persistLocked(messages)
}

func (c *ChatController) persistLocked(messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	now := c.now()
	if c.chatID == "" {
		c.chatID = NewChatID(now)
		LogDebug("Assigned chat id %s", c.chatID)
	}
	if !c.lastPersist.IsZero() && now.Sub(c.lastPersist) < c.debounce {
		LogDebug("Skipping persist of %s within debounce window", c.chatID)
		c.pending = append([]Message(nil), messages...)
		return nil
	}
	c.lastPersist = now
	c.pending = nil

	summary := SavedChat{
		ID:          c.chatID,
		Title:       DeriveTitle(messages),
		LastMessage: DerivePreview(messages),
		Timestamp:   now,
		ThreadID:    c.threadID,
	}
	record := ChatRecord{
		Messages: append([]Message(nil), messages...),
		ThreadID: c.threadID,
	}
	if err := c.store.SaveChat(summary, record); err != nil {
		LogError("Failed to save chat %s: %v", c.chatID, err)
		c.observer.Notify(Notice{Level: NoticeError, Text: "Failed to save conversation."})
		return err
	}
	return nil
}

// Flush saves the conversation if a persist was skipped by the debounce
func (c *ChatController) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

func (c *ChatController) flushLocked() error {
	if c.pending == nil {
		return nil
	}
	c.lastPersist = time.Time{}
	return c.persistLocked(c.pending)
}

// Clear discards the conversation, starts a new thread, and removes the
// persisted record. A stream in progress keeps running.
func (c *ChatController) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.chatID
	c.pending = nil
	c.resetSessionLocked(NewThreadID())

	if id == "" {
		c.store.Notifier().Publish(ChangeEvent{Kind: ChangeCleared})
	} else if err := c.store.DeleteChat(id); err != nil {
		LogError("Failed to clear chat %s: %v", id, err)
		c.observer.Notify(Notice{Level: NoticeError, Text: "Failed to clear conversation."})
		return err
	}
	c.observer.Notify(Notice{Level: NoticeSuccess, Text: "Conversation cleared"})
	return nil
}

// NewChat starts and registers an empty conversation on a new thread
func (c *ChatController) NewChat() (SavedChat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.newChatLocked()
}

func (c *ChatController) newChatLocked() (SavedChat, error) {
	c.resetSessionLocked(NewThreadID())
	summary, err := c.store.CreateEmptyChat(c.threadID, c.now())
	if err != nil {
		LogError("Failed to create chat: %v", err)
		c.observer.Notify(Notice{Level: NoticeError, Text: "Failed to create a new conversation."})
		return SavedChat{}, err
	}
	c.chatID = summary.ID
	c.observer.Notify(Notice{Level: NoticeSuccess, Text: "Started a new conversation"})
	return summary, nil
}

// SelectChat loads chat id into the controller
func (c *ChatController) SelectChat(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	record, err := c.store.LoadChat(id)
	if err != nil {
		LogError("Failed to load chat %s: %v", id, err)
		c.observer.Notify(Notice{Level: NoticeError, Text: "Failed to load conversation."})
		return err
	}

	threadID := record.ThreadID
	if threadID == "" {
		threadID = NewThreadID()
	}
	c.resetSessionLocked(threadID)
	c.chatID = id
	c.messages = append([]Message(nil), record.Messages...)
	return nil
}

// DeleteChat removes chat id from storage. Deleting the current chat starts
// a new one.
func (c *ChatController) DeleteChat(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.DeleteChat(id); err != nil {
		LogError("Failed to delete chat %s: %v", id, err)
		c.observer.Notify(Notice{Level: NoticeError, Text: "Failed to delete conversation."})
		return err
	}
	if id == c.chatID {
		c.pending = nil
		_, err := c.newChatLocked()
		return err
	}
	return nil
}

// resetSessionLocked switches to an empty session on threadID
func (c *ChatController) resetSessionLocked(threadID string) {
	_ = c.flushLocked()
	c.messages = nil
	c.threadID = threadID
	c.chatID = ""
	c.lastPersist = time.Time{}
	c.pending = nil
	c.dedup.Reset()
	c.guard.forgetExcept(c.activeIDLocked())
}

func (c *ChatController) activeIDLocked() string {
	if c.active == nil {
		return ""
	}
	return c.active.id
}

// AppendExchange appends a completed prompt/response pair and persists it
func (c *ChatController) AppendExchange(prompt, response string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	user := Message{Role: RoleUser, Content: prompt, Timestamp: now}
	reply := Message{Role: RoleAssistant, Content: response, Timestamp: now, Agent: c.agent}
	c.messages = append(c.messages, user, reply)
	c.observer.MessageAppended(user)
	c.observer.MessageAppended(reply)
	return c.persistLocked(c.messages)
}

func (c *ChatController) notify(n Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer.Notify(n)
}

// SetAgent selects the agent for subsequent sends
func (c *ChatController) SetAgent(agent string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if agent = strings.ToLower(strings.TrimSpace(agent)); agent != "" {
		c.agent = agent
	}
}

// Agent returns the current agent
func (c *ChatController) Agent() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agent
}

// ThreadID returns the backend thread of the session
func (c *ChatController) ThreadID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threadID
}

// ChatID returns the persisted chat id, empty until the first persist
func (c *ChatController) ChatID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatID
}

// State returns the lifecycle state
func (c *ChatController) State() ChatState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Messages returns a copy of the finalized messages
func (c *ChatController) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

// Streaming returns a copy of the in-progress reply, if any
func (c *ChatController) Streaming() (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streaming == nil {
		return Message{}, false
	}
	return *c.streaming, true
}
