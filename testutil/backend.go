package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// FakeBackend is an in-process stand-in for the chat backend. Stream
// responses replay the scripted event payloads as "data:" frames.
type FakeBackend struct {
	Server *httptest.Server

	mu           sync.Mutex
	streamEvents []string
	streamStatus int
	streamQuery  []url.Values
	chatReply    interface{}
	chatRequests []map[string]interface{}
	agents       []string
	defaultAgent string
	stores       map[string]string
	nextStore    int
	uploads      map[string][]string
	files        []map[string]interface{}
}

// NewFakeBackend starts a fake backend that is shut down when the test ends
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	f := &FakeBackend{
		agents:       []string{"main", "market", "excel"},
		defaultAgent: "main",
		chatReply:    "ok",
		stores:       make(map[string]string),
		uploads:      make(map[string][]string),
		files: []map[string]interface{}{
			{"id": "file-1", "filename": "comps.pdf", "purpose": "assistants", "bytes": 2048},
		},
	}

	r := chi.NewRouter()
	r.Get("/api/v1", f.handleRoot)
	r.Route("/api/v1/agent", func(r chi.Router) {
		r.Get("/agents", f.handleAgents)
		r.Post("/chat", f.handleChat)
		r.Get("/stream", f.handleStream)
	})
	r.Route("/api/v1/vector-stores", func(r chi.Router) {
		r.Get("/", f.handleListStores)
		r.Post("/", f.handleCreateStore)
		r.Get("/{id}", f.handleGetStore)
		r.Delete("/{id}", f.handleDeleteStore)
		r.Get("/{id}/search", f.handleSearchStore)
		r.Post("/{id}/files/", f.handleUpload)
	})
	r.Get("/api/v1/files/", f.handleListFiles)
	r.Delete("/api/v1/files/{id}", f.handleDeleteFile)
	r.Route("/api/v1/tools/excel", func(r chi.Router) {
		r.Get("/files", f.handleExcelFiles)
		r.Post("/search", f.handleExcelSearch)
		r.Post("/read", f.handleExcelRead)
		r.Get("/preview/{filename}", f.handleExcelPreview)
		r.Post("/refresh", f.handleExcelRefresh)
	})

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the base URL of the fake backend
func (f *FakeBackend) URL() string {
	return f.Server.URL
}

// SetStream scripts the JSON payloads the next streams will emit
func (f *FakeBackend) SetStream(events ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamEvents = events
	f.streamStatus = 0
}

// FailStream makes stream requests answer with status and a detail body
func (f *FakeBackend) FailStream(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamStatus = status
}

// SetChatReply sets the "response" value of chat calls (string or object)
func (f *FakeBackend) SetChatReply(reply interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatReply = reply
}

// StreamQueries returns the query of every stream request so far
func (f *FakeBackend) StreamQueries() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.streamQuery...)
}

// ChatRequests returns the decoded body of every chat request so far
func (f *FakeBackend) ChatRequests() []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]interface{}(nil), f.chatRequests...)
}

// AddStore registers a vector store and returns its id
func (f *FakeBackend) AddStore(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addStoreLocked(name)
}

// Uploads returns the filenames uploaded into store id
func (f *FakeBackend) Uploads(id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.uploads[id]...)
	sort.Strings(out)
	return out
}

func (f *FakeBackend) addStoreLocked(name string) string {
	f.nextStore++
	id := fmt.Sprintf("vs_%d", f.nextStore)
	f.stores[id] = name
	return id
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (f *FakeBackend) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "CRE backend",
		"endpoints": map[string]string{
			"AI Agent": "/api/v1/agent/chat",
		},
	})
}

func (f *FakeBackend) handleAgents(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"agents": f.agents, "default_agent": f.defaultAgent})
}

func (f *FakeBackend) handleChat(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	f.mu.Lock()
	f.chatRequests = append(f.chatRequests, body)
	reply := f.chatReply
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"response":   reply,
		"agent_used": body["agent"],
		"thread_id":  body["thread_id"],
	})
}

func (f *FakeBackend) handleStream(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.streamQuery = append(f.streamQuery, r.URL.Query())
	events := append([]string(nil), f.streamEvents...)
	status := f.streamStatus
	f.mu.Unlock()

	if status != 0 {
		writeDetail(w, status, "stream unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for _, ev := range events {
		fmt.Fprintf(w, "data: %s\n\n", ev)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (f *FakeBackend) handleListStores(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.stores))
	for id := range f.stores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, map[string]string{"id": id, "name": f.stores[id]})
	}
	writeJSON(w, http.StatusOK, out)
}

func (f *FakeBackend) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "expected multipart form")
		return
	}
	name := r.FormValue("name")
	if name == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "name is required")
		return
	}
	f.mu.Lock()
	id := f.addStoreLocked(name)
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "name": name})
}

func (f *FakeBackend) handleGetStore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f.mu.Lock()
	name, ok := f.stores[id]
	f.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Vector store %s not found.", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "name": name, "status": "completed"})
}

func (f *FakeBackend) handleDeleteStore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f.mu.Lock()
	_, ok := f.stores[id]
	delete(f.stores, id)
	f.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Vector store %s not found.", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Vector store %s deleted successfully.", id)})
}

func (f *FakeBackend) handleSearchStore(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	writeJSON(w, http.StatusOK, []map[string]interface{}{
		{"text": "match for " + query, "metadata": map[string]string{"file": "comps.pdf"}, "score": 0.87},
	})
}

func (f *FakeBackend) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer file.Close()
	_, _ = io.Copy(io.Discard, file)

	f.mu.Lock()
	_, ok := f.stores[id]
	if ok {
		f.uploads[id] = append(f.uploads[id], header.Filename)
	}
	f.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Vector store %s not found.", id))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"message": fmt.Sprintf("File '%s' uploaded successfully to vector store %s.", header.Filename, id),
	})
}

func (f *FakeBackend) handleListFiles(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, f.files)
}

func (f *FakeBackend) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, file := range f.files {
		if file["id"] == id {
			f.files = append(f.files[:i], f.files[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("File %s deleted successfully.", id)})
			return
		}
	}
	writeDetail(w, http.StatusNotFound, fmt.Sprintf("File %s not found or could not be deleted.", id))
}

func (f *FakeBackend) handleExcelFiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"files": map[string]interface{}{
			"rent_roll.xlsx": map[string]interface{}{
				"sheets":       []string{"Units"},
				"row_count":    map[string]int{"Units": 2},
				"column_names": map[string][]string{"Units": {"Unit", "Rent"}},
			},
		},
	})
}

func (f *FakeBackend) handleExcelSearch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": map[string]interface{}{"rent_roll.xlsx": []map[string]string{{"sheet": "Units", "match": body.Query}}},
	})
}

func (f *FakeBackend) handleExcelRead(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Filename string `json:"filename"`
		Sheet    string `json:"sheet_name"`
		MaxRows  int    `json:"max_rows"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Filename != "rent_roll.xlsx" {
		writeDetail(w, http.StatusInternalServerError, "file not found: "+body.Filename)
		return
	}
	rows := []map[string]interface{}{{"Unit": "101", "Rent": 1800}, {"Unit": "102", "Rent": 1950}}
	if body.MaxRows > 0 && body.MaxRows < len(rows) {
		rows = rows[:body.MaxRows]
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": rows})
}

func (f *FakeBackend) handleExcelPreview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"preview": map[string]interface{}{"Units": []map[string]interface{}{{"Unit": "101", "Rent": 1800}}},
	})
}

func (f *FakeBackend) handleExcelRefresh(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"changes": map[string]interface{}{"added": []string{}, "removed": []string{}}})
}
