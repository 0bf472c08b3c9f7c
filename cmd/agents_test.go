package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/iksnae/cre-chat/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentsCommand(t *testing.T) {
	f := newCLIFixture(t)
	t.Setenv("CRE_AGENT", "excel")

	stdout, _, err := f.run(t, "", "agents")
	require.NoError(t, err)
	assert.Contains(t, stdout, "3 agent(s)")

	for _, line := range strings.Split(stdout, "\n") {
		switch {
		case strings.Contains(line, "• main"):
			assert.Contains(t, line, "(default)")
			assert.NotContains(t, line, "current")
		case strings.Contains(line, "• excel"):
			assert.Contains(t, line, "← current")
		}
	}
}

func TestDisplayAgents(t *testing.T) {
	tests := []struct {
		name string
		list *internal.AgentList
		want string
	}{
		{
			name: "empty",
			list: &internal.AgentList{},
			want: "No agents available",
		},
		{
			name: "current and default",
			list: &internal.AgentList{Agents: []string{"main", "market"}, DefaultAgent: "main"},
			want: "market ← current",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			displayAgents(&buf, tt.list, "market")
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}
