package internal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/iksnae/cre-chat/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_BaseURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty falls back to default", in: "", want: DefaultBaseURL},
		{name: "trailing slash trimmed", in: "http://localhost:8000/", want: "http://localhost:8000"},
		{name: "whitespace trimmed", in: "  http://api.local ", want: "http://api.local"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewClient(tt.in).BaseURL())
		})
	}
}

func TestClient_HealthAndAgents(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	client := NewClient(backend.URL())
	ctx := context.Background()

	require.NoError(t, client.Health(ctx))

	agents, err := client.Agents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "market", "excel"}, agents.Agents)
	assert.Equal(t, "main", agents.DefaultAgent)
}

func TestClient_Chat(t *testing.T) {
	tests := []struct {
		name  string
		reply interface{}
		want  string
	}{
		{name: "string response", reply: "Here is your script", want: "Here is your script"},
		{name: "object response", reply: map[string]string{"content": "Nested reply"}, want: "Nested reply"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := testutil.NewFakeBackend(t)
			backend.SetChatReply(tt.reply)
			client := NewClient(backend.URL())

			resp, err := client.Chat(context.Background(), ChatRequest{Message: "hi", ThreadID: "thread_1"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(resp.Response))
			assert.Equal(t, "thread_1", resp.ThreadID)

			reqs := backend.ChatRequests()
			require.Len(t, reqs, 1)
			assert.Equal(t, DefaultAgent, reqs[0]["agent"])
		})
	}
}

func TestClient_OpenStream(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	backend.SetStream(
		`{"type":"content","data":"Hel"}`,
		`{"type":"content","data":"lo"}`,
		`{"type":"done"}`,
	)
	client := NewClient(backend.URL())

	stream, err := client.OpenStream(context.Background(), StreamRequest{Message: "hi there", ThreadID: "thread_x", Agent: "market"})
	require.NoError(t, err)
	defer stream.Close()

	var types []EventType
	for {
		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		types = append(types, ev.Type)
	}
	assert.Equal(t, []EventType{EventContent, EventContent, EventDone}, types)

	queries := backend.StreamQueries()
	require.Len(t, queries, 1)
	assert.Equal(t, "hi there", queries[0].Get("message"))
	assert.Equal(t, "thread_x", queries[0].Get("thread_id"))
	assert.Equal(t, "market", queries[0].Get("agent"))
}

func TestClient_OpenStreamError(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	backend.FailStream(http.StatusServiceUnavailable)
	client := NewClient(backend.URL())

	_, err := client.OpenStream(context.Background(), StreamRequest{Message: "hi", ThreadID: "t"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "stream unavailable", apiErr.Detail)
}

func TestClient_VectorStores(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	client := NewClient(backend.URL())
	ctx := context.Background()

	created, err := client.CreateVectorStore(ctx, "Leases")
	require.NoError(t, err)
	assert.Equal(t, "Leases", created.Name)

	stores, err := client.ListVectorStores(ctx)
	require.NoError(t, err)
	require.Len(t, stores, 1)
	assert.Equal(t, created.ID, stores[0].ID)

	got, err := client.GetVectorStore(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)

	results, err := client.SearchVectorStore(ctx, created.ID, "cap rate")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "match for cap rate", results[0].Text)

	msg, err := client.DeleteVectorStore(ctx, created.ID)
	require.NoError(t, err)
	assert.Contains(t, msg, "deleted successfully")

	_, err = client.GetVectorStore(ctx, created.ID)
	assert.True(t, IsNotFound(err), "GetVectorStore() after delete = %v, want 404", err)

	_, err = client.CreateVectorStore(ctx, "  ")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestClient_UploadAndFiles(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	client := NewClient(backend.URL())
	ctx := context.Background()
	storeID := backend.AddStore("Docs")

	path := testutil.WriteFile(t, t.TempDir(), "memo.txt", []byte("lease memo"))
	msg, err := client.UploadFile(ctx, storeID, path)
	require.NoError(t, err)
	assert.Contains(t, msg, "memo.txt")
	assert.Equal(t, []string{"memo.txt"}, backend.Uploads(storeID))

	_, err = client.UploadFile(ctx, storeID, filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)

	files, err := client.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "comps.pdf", files[0].Filename)

	_, err = client.DeleteFile(ctx, "file-1")
	require.NoError(t, err)
	_, err = client.DeleteFile(ctx, "file-1")
	assert.True(t, IsNotFound(err))
}

func TestClient_Excel(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	client := NewClient(backend.URL())
	ctx := context.Background()

	files, err := client.ExcelFiles(ctx)
	require.NoError(t, err)
	require.Contains(t, files, "rent_roll.xlsx")
	assert.Equal(t, []string{"Units"}, files["rent_roll.xlsx"].Sheets)

	rows, err := client.ReadExcelSheet(ctx, "rent_roll.xlsx", "Units", 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "101", rows[0]["Unit"])

	_, err = client.ReadExcelSheet(ctx, "nope.xlsx", "Units", 10)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "file not found: nope.xlsx", apiErr.Detail)

	results, err := client.SearchExcel(ctx, "101")
	require.NoError(t, err)
	var decoded map[string][]map[string]string
	require.NoError(t, json.Unmarshal(results, &decoded))
	assert.Equal(t, "101", decoded["rent_roll.xlsx"][0]["match"])

	preview, err := client.PreviewExcel(ctx, "rent_roll.xlsx")
	require.NoError(t, err)
	assert.Len(t, preview["Units"], 1)

	changes, err := client.RefreshExcel(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, changes)
}

func TestClient_TransportError(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	err := client.Health(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Zero(t, apiErr.StatusCode)
}

func TestErrorDetail(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "string detail", body: `{"detail":"not found"}`, want: "not found"},
		{name: "list detail", body: `{"detail":[{"loc":["body"]}]}`, want: `[{"loc":["body"]}]`},
		{name: "plain text", body: "Bad Gateway", want: "Bad Gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorDetail([]byte(tt.body)))
		})
	}
}
