package fixture

import (
	"encoding/json"
	"net/http"
	"sync"
)

// AddCall is one request received by the fake /add endpoint.
type AddCall struct {
	URL                string `json:"url"`
	Quality            string `json:"quality"`
	Format             string `json:"format"`
	Folder             string `json:"folder"`
	CustomNamePrefix   string `json:"customNamePrefix"`
	PlaylistStrictMode bool   `json:"playlistStrictMode"`
	PlaylistItemLimit  *int   `json:"playlistItemLimit,omitempty"`
	AutoStart          bool   `json:"autoStart"`
}

// MeTube is an http.Handler imitating the MeTube queue API.
type MeTube struct {
	mu       sync.Mutex
	statuses []int
	calls    []AddCall
	deleted  []string
	done     []map[string]any
}

// NewMeTube returns a fake whose n-th /add call answers statuses[n]; calls past the
// end of the list answer 200.
func NewMeTube(statuses ...int) *MeTube {
	return &MeTube{statuses: statuses}
}

// Calls returns the /add requests received so far.
func (m *MeTube) Calls() []AddCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AddCall(nil), m.calls...)
}

// Deleted returns the ids removed through /delete.
func (m *MeTube) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

func (m *MeTube) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/add":
		m.add(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/history":
		m.history(w)
	case r.Method == http.MethodPost && r.URL.Path == "/delete":
		m.remove(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (m *MeTube) add(w http.ResponseWriter, r *http.Request) {
	var call AddCall
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "msg": err.Error()})
		return
	}
	m.mu.Lock()
	n := len(m.calls)
	m.calls = append(m.calls, call)
	status := http.StatusOK
	if n < len(m.statuses) {
		status = m.statuses[n]
	}
	if status == http.StatusOK {
		m.done = append(m.done, map[string]any{"id": call.URL, "url": call.URL, "status": "pending", "quality": call.Quality, "format": call.Format})
	}
	m.mu.Unlock()

	if status != http.StatusOK {
		writeJSON(w, status, map[string]string{"status": "error", "msg": "rejected"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (m *MeTube) history(w http.ResponseWriter) {
	m.mu.Lock()
	queue := append([]map[string]any(nil), m.done...)
	m.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"queue":   queue,
		"pending": []any{},
		"done":    []any{},
	})
}

func (m *MeTube) remove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs   []string `json:"ids"`
		Where string   `json:"where"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "msg": err.Error()})
		return
	}
	m.mu.Lock()
	m.deleted = append(m.deleted, req.IDs...)
	kept := m.done[:0]
	for _, d := range m.done {
		drop := false
		for _, id := range req.IDs {
			if d["id"] == id {
				drop = true
			}
		}
		if !drop {
			kept = append(kept, d)
		}
	}
	m.done = kept
	m.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
