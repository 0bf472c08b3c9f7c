package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAskCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		events  []string
		want    string
		wantErr string
	}{
		{
			name:   "streams reply",
			args:   []string{"ask", "Phoenix", "industrial", "cap", "rates?"},
			events: []string{`{"type":"content","data":"About 5.5%."}`, `{"type":"done"}`},
			want:   "About 5.5%.",
		},
		{
			name:   "markdown stays plain when piped",
			args:   []string{"ask", "--markdown", "Summarise"},
			events: []string{`{"type":"content","data":"**Vacancy** is low."}`, `{"type":"done"}`},
			want:   "**Vacancy** is low.\n",
		},
		{
			name:    "error event",
			args:    []string{"ask", "hello"},
			events:  []string{`{"type":"content","data":"Partial"}`, `{"type":"error","error":"agent crashed"}`},
			wantErr: "the reply did not complete",
		},
		{
			name:    "stream ends without reply",
			args:    []string{"ask", "hello"},
			events:  []string{`{"type":"done"}`},
			wantErr: "no reply received",
		},
		{
			name:    "missing question",
			args:    []string{"ask"},
			wantErr: "requires at least 1 arg(s)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCLIFixture(t)
			f.backend.SetStream(tt.events...)

			stdout, _, err := f.run(t, "", tt.args...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, stdout, tt.want)
		})
	}
}

func TestAskCommand_AgentAndChat(t *testing.T) {
	f := newCLIFixture(t).withChats(t)
	f.backend.SetStream(`{"type":"content","data":"Noted."}`, `{"type":"done"}`)

	_, _, err := f.run(t, "", "ask", "--agent", "Excel", "--chat", "chat_2000_bbbbb", "and", "retail?")
	require.NoError(t, err)

	queries := f.backend.StreamQueries()
	require.Len(t, queries, 1)
	assert.Equal(t, "and retail?", queries[0].Get("message"))
	assert.Equal(t, "excel", queries[0].Get("agent"))
	assert.Equal(t, "thread_bbbbbbbbb", queries[0].Get("thread_id"))

	store, err := openSessionStore()
	require.NoError(t, err)
	defer closeStore(store)
	record, err := store.LoadChat("chat_2000_bbbbb")
	require.NoError(t, err)
	assert.Len(t, record.Messages, 4)
}
