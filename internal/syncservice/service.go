// Package syncservice runs card syncs against files in the vault.
package syncservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/starford/cardsync/internal/apperr"
	"github.com/starford/cardsync/internal/card"
	"github.com/starford/cardsync/internal/checksum"
	"github.com/starford/cardsync/internal/ledger"
	"github.com/starford/cardsync/internal/markdown"
	"github.com/starford/cardsync/internal/reconcile"
	"github.com/starford/cardsync/internal/storage"
)

// Card states reported by Cards.
const (
	StateNew     = "new"
	StateSynced  = "synced"
	StateChanged = "changed"
)

// Ledger persists sync outcomes and per-file checksums. *ledger.DB
// implements it.
type Ledger interface {
	Record(entries []ledger.Entry) error
	LastByKey(path, key string) (ledger.Entry, error)
	GetFileState(path string) (ledger.FileState, error)
	SetFileState(f ledger.FileState) error
	ClearFileState(path string) error
}

// CardView is a read-only summary of one parsed card.
type CardView struct {
	Index  int    `json:"index"`
	Key    string `json:"key"`
	Line   int    `json:"line"`
	NoteID int64  `json:"note_id,omitempty"`
	Hash   string `json:"hash,omitempty"`
	State  string `json:"state"`
	// LastStatus and LastReason come from the newest ledger entry for the
	// card, if any.
	LastStatus string `json:"last_status,omitempty"`
	LastReason string `json:"last_reason,omitempty"`
}

// FileReport is the result of syncing one file of the vault.
type FileReport struct {
	Path   string
	Report *reconcile.Report
	// Skipped is set when the file content matched its last clean sync and
	// reconciliation did not run.
	Skipped bool
	Err     error
}

// Options configures a Service.
type Options struct {
	DefaultDeck string
	HashAlgo    string
	// Ledger is optional; nil disables history and unchanged-file skips.
	Ledger Ledger
	Logger *slog.Logger
}

// Service coordinates storage, parsing and reconciliation.
type Service struct {
	store      storage.Provider
	parser     *markdown.Parser
	reconciler *reconcile.Reconciler
	opts       Options
	logger     *slog.Logger
}

// NewService creates a new sync service.
func NewService(store storage.Provider, reconciler *reconcile.Reconciler, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		parser:     markdown.NewParser(),
		reconciler: reconciler,
		opts:       opts,
		logger:     logger,
	}
}

// Sync reconciles every card of the file at path (relative to the vault
// root) and saves the file once if any patch was applied.
func (s *Service) Sync(ctx context.Context, path string) (*reconcile.Report, error) {
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	doc, err := s.walk(path, data)
	if err != nil {
		return nil, err
	}

	buf := storage.NewDocument(data)
	report, runErr := s.reconciler.Reconcile(ctx, doc, buf)

	// Patches applied before a sink failure still carry note ids that were
	// created remotely, so they are saved regardless.
	if buf.Dirty() {
		if err := s.store.Write(path, buf.Bytes()); err != nil {
			return report, fmt.Errorf("syncservice: save %s: %w", path, err)
		}
	}
	s.record(path, report)
	s.remember(path, buf.Bytes(), report, runErr)

	if runErr != nil {
		return report, fmt.Errorf("syncservice: %s: %w", path, runErr)
	}
	s.logger.Info("sync: file done",
		slog.String("path", path),
		slog.Int("cards", len(report.Outcomes)),
		slog.Int("created", report.Count(reconcile.StatusCreated)),
		slog.Int("updated", report.Count(reconcile.StatusUpdated)),
		slog.Int("failed", report.Count(reconcile.StatusFailed)),
		slog.Int("pending", report.Count(reconcile.StatusPending)))
	return report, nil
}

// SyncAll syncs every Markdown file of the vault in path order. A failing
// file does not stop the others; its error is carried in its FileReport.
func (s *Service) SyncAll(ctx context.Context) ([]FileReport, error) {
	files, err := s.store.List("")
	if err != nil {
		return nil, err
	}
	out := make([]FileReport, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if s.upToDate(f.Path, f.Checksum) {
			s.logger.Debug("sync: file unchanged since last sync", slog.String("path", f.Path))
			out = append(out, FileReport{Path: f.Path, Skipped: true})
			continue
		}
		report, err := s.Sync(ctx, f.Path)
		if err != nil {
			s.logger.Warn("sync: file failed",
				slog.String("path", f.Path),
				slog.String("error", err.Error()))
		}
		out = append(out, FileReport{Path: f.Path, Report: report, Err: err})
	}
	return out, nil
}

// SyncIfChanged syncs path unless its content matches the last clean sync.
// The boolean reports whether a sync ran. The watcher uses it so the save
// of state comments does not trigger a second pass.
func (s *Service) SyncIfChanged(ctx context.Context, path string) (*reconcile.Report, bool, error) {
	data, err := s.read(path)
	if err != nil {
		return nil, false, err
	}
	sum, err := checksum.Sum(checksum.SHA256, data)
	if err != nil {
		return nil, false, err
	}
	if s.upToDate(path, sum) {
		s.logger.Debug("sync: file unchanged since last sync", slog.String("path", path))
		return nil, false, nil
	}
	report, err := s.Sync(ctx, path)
	return report, true, err
}

// Cards parses the file at path and reports each card's sync state
// without contacting the store.
func (s *Service) Cards(_ context.Context, path string) ([]CardView, error) {
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	doc, err := s.walk(path, data)
	if err != nil {
		return nil, err
	}

	views := make([]CardView, 0, len(doc.Cards))
	for _, c := range doc.Cards {
		v := CardView{
			Index:  c.Index,
			Key:    c.Key,
			Line:   c.Position.Start,
			NoteID: c.NoteID,
			Hash:   c.Hash,
			State:  StateSynced,
		}
		digest, err := checksum.Sum(s.opts.HashAlgo, []byte(card.Serialize(c).Canonical()))
		if err != nil {
			return nil, err
		}
		switch {
		case !c.HasRemote():
			v.State = StateNew
		case checksum.Changed(c.Hash, digest):
			v.State = StateChanged
		}
		if s.opts.Ledger != nil {
			last, err := s.opts.Ledger.LastByKey(path, c.Key)
			switch {
			case err == nil:
				v.LastStatus = last.Status
				v.LastReason = last.Reason
			case !errors.Is(err, apperr.ErrNotFound):
				return nil, err
			}
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *Service) read(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, apperr.ErrNoDocument
	}
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("syncservice: %w: %s", apperr.ErrNoDocument, path)
		}
		return nil, err
	}
	return data, nil
}

func (s *Service) walk(path string, data []byte) (*card.Document, error) {
	logger := s.logger.With(slog.String("path", path))
	doc, err := card.Walk(s.parser.Parse(data), card.WalkOptions{
		DefaultDeck: s.opts.DefaultDeck,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("syncservice: %s: %w", path, err)
	}
	for _, key := range doc.Duplicates() {
		var lines []int
		for _, c := range doc.Cards {
			if c.Key == key {
				lines = append(lines, c.Position.Start)
			}
		}
		logger.Warn("sync: duplicate card heading",
			slog.String("card", key),
			slog.Any("lines", lines))
	}
	return doc, nil
}

// record stores every outcome that touched the store. Unchanged and
// pending outcomes are not history.
func (s *Service) record(path string, report *reconcile.Report) {
	if s.opts.Ledger == nil || report == nil {
		return
	}
	var entries []ledger.Entry
	for _, o := range report.Outcomes {
		if o.Status == reconcile.StatusUnchanged || o.Status == reconcile.StatusPending {
			continue
		}
		entries = append(entries, ledger.Entry{
			Path:      path,
			CardIndex: o.Card.Index,
			CardKey:   o.Card.Key,
			NoteID:    o.NoteID,
			Hash:      o.Hash,
			Status:    string(o.Status),
			Reason:    o.Reason,
		})
	}
	if err := s.opts.Ledger.Record(entries); err != nil {
		s.logger.Warn("sync: ledger record failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

// hashAlgo is the card fingerprint algorithm with the default spelled out,
// so "" and "md5" compare equal in the file state.
func (s *Service) hashAlgo() string {
	if s.opts.HashAlgo == "" {
		return checksum.MD5
	}
	return s.opts.HashAlgo
}

// upToDate reports whether sum matches the content of path at its last
// clean sync under the current hash algorithm.
func (s *Service) upToDate(path, sum string) bool {
	if s.opts.Ledger == nil || s.reconciler.DryRun() {
		return false
	}
	st, err := s.opts.Ledger.GetFileState(path)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			s.logger.Warn("sync: ledger file state read failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return false
	}
	return st.Checksum == sum && st.HashAlgo == s.hashAlgo()
}

// remember stores the checksum of the saved content after a clean sync and
// forgets it otherwise, so a file with failed cards is retried next run.
// Dry runs leave the state alone.
func (s *Service) remember(path string, data []byte, report *reconcile.Report, runErr error) {
	if s.opts.Ledger == nil || s.reconciler.DryRun() {
		return
	}
	logger := s.logger.With(slog.String("path", path))

	if runErr != nil || report == nil || report.Count(reconcile.StatusFailed) > 0 {
		if err := s.opts.Ledger.ClearFileState(path); err != nil {
			logger.Warn("sync: ledger file state clear failed", slog.String("error", err.Error()))
		}
		return
	}
	sum, err := checksum.Sum(checksum.SHA256, data)
	if err != nil {
		logger.Warn("sync: file checksum failed", slog.String("error", err.Error()))
		return
	}
	err = s.opts.Ledger.SetFileState(ledger.FileState{Path: path, Checksum: sum, HashAlgo: s.hashAlgo()})
	if err != nil {
		logger.Warn("sync: ledger file state write failed", slog.String("error", err.Error()))
	}
}
