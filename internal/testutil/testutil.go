// Package testutil provides shared test helpers for setting up vaults,
// ledgers and a fake AnkiConnect server.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/cardsync/internal/anki"
	"github.com/starford/cardsync/internal/ledger"
	"github.com/starford/cardsync/internal/storage"
)

// TestDB creates a temporary ledger database that is automatically cleaned up.
func TestDB(t *testing.T) *ledger.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "cardsync-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := ledger.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// WriteFile writes content to rel under dir, creating parent directories.
func WriteFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// ReadFile returns the content of rel under dir.
func ReadFile(t *testing.T, dir, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, rel))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// Anki is an in-memory AnkiConnect server. Created notes get sequential
// ids starting at 1.
type Anki struct {
	mu      sync.Mutex
	nextID  int64
	actions []string
	notes   map[int64]anki.Note
	// FailFront makes addNote and updateNote fail for notes whose rendered
	// front equals the value.
	FailFront string
}

// AnkiServer starts a fake AnkiConnect server and returns a client for it.
func AnkiServer(t *testing.T) (*anki.Client, *Anki) {
	t.Helper()
	a := &Anki{notes: make(map[int64]anki.Note)}
	srv := httptest.NewServer(http.HandlerFunc(a.serve))
	t.Cleanup(srv.Close)
	return anki.NewClient(srv.URL, 5*time.Second), a
}

// Actions returns the names of every inner action received, in order.
func (a *Anki) Actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.actions...)
}

// Note returns the stored note with id.
func (a *Anki) Note(id int64) (anki.Note, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, ok := a.notes[id]
	return n, ok
}

type envelope struct {
	Params struct {
		Actions []struct {
			Action string `json:"action"`
			Params struct {
				Note anki.Note `json:"note"`
			} `json:"params"`
		} `json:"actions"`
	} `json:"params"`
}

type result struct {
	Result any     `json:"result"`
	Error  *string `json:"error"`
}

func (a *Anki) serve(w http.ResponseWriter, r *http.Request) {
	var env envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	a.mu.Lock()
	results := make([]result, 0, len(env.Params.Actions))
	for _, act := range env.Params.Actions {
		a.actions = append(a.actions, act.Action)
		note := act.Params.Note
		if a.FailFront != "" && note.Fields.Front == a.FailFront {
			msg := "cannot create note because it is a duplicate"
			results = append(results, result{Error: &msg})
			continue
		}
		switch act.Action {
		case anki.ActionAddNote:
			a.nextID++
			note.ID = a.nextID
			a.notes[note.ID] = note
			results = append(results, result{Result: note.ID})
		case anki.ActionUpdateNote:
			if _, ok := a.notes[note.ID]; !ok {
				msg := "note was not found"
				results = append(results, result{Error: &msg})
				continue
			}
			a.notes[note.ID] = note
			results = append(results, result{})
		default:
			msg := "unsupported action"
			results = append(results, result{Error: &msg})
		}
	}
	a.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"result": results, "error": nil})
}

// Seed stores a note so that updateNote for id succeeds.
func (a *Anki) Seed(id int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.notes[id] = anki.Note{ID: id}
	if id > a.nextID {
		a.nextID = id
	}
}
