// Package reconcile pushes changed cards to the flashcard store and computes
// the document edits that persist note ids and fingerprints.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/cardsync/internal/anki"
	"github.com/starford/cardsync/internal/card"
	"github.com/starford/cardsync/internal/checksum"
)

// Status is the result of reconciling one card.
type Status string

const (
	StatusUnchanged Status = "unchanged"
	StatusCreated   Status = "created"
	StatusUpdated   Status = "updated"
	StatusFailed    Status = "failed"
	// StatusPending marks a card that needs a sync in a dry run.
	StatusPending Status = "pending"
)

// Store is the subset of the AnkiConnect client used for upserts.
type Store interface {
	AddNote(ctx context.Context, note anki.Note) (int64, error)
	UpdateNote(ctx context.Context, note anki.Note) error
}

// Renderer converts a card face from Markdown to HTML.
type Renderer interface {
	Render(source string) (string, error)
}

// LineSetter replaces one 0-based line of the live document.
type LineSetter interface {
	SetLine(n int, text string) error
}

// Patch is a "replace line N with text T" instruction.
type Patch struct {
	Line int
	Text string
}

// Outcome describes what happened to one card.
type Outcome struct {
	Card   *card.Card
	Status Status
	// Action is the store action chosen for the card, empty when unchanged.
	Action string
	NoteID int64
	Hash   string
	Reason string
	// Media lists images referenced by the card. They are not uploaded.
	Media []string
	Patch *Patch
}

// Report collects the outcomes of one run in card order.
type Report struct {
	Outcomes []Outcome
}

// Count returns the number of outcomes with the given status.
func (r *Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Patches returns the patches applied during the run, in order.
func (r *Report) Patches() []Patch {
	var out []Patch
	for _, o := range r.Outcomes {
		if o.Patch != nil {
			out = append(out, *o.Patch)
		}
	}
	return out
}

// Options configures a Reconciler.
type Options struct {
	// Model is the note type every card is created with.
	Model string
	// HashAlgo selects the fingerprint algorithm (see package checksum).
	HashAlgo string
	// DryRun computes outcomes without contacting the store or patching.
	DryRun bool
	Logger *slog.Logger
}

// Reconciler syncs the cards of one document at a time.
type Reconciler struct {
	store    Store
	renderer Renderer
	opts     Options
	logger   *slog.Logger
}

// New creates a Reconciler.
func New(store Store, renderer Renderer, opts Options) *Reconciler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, renderer: renderer, opts: opts, logger: logger}
}

// DryRun reports whether r leaves the store and the document untouched.
func (r *Reconciler) DryRun() bool { return r.opts.DryRun }

// runContext is the immutable per-document state shared by every card.
type runContext struct {
	deck  string
	tags  []string
	model string
}

// Reconcile processes the cards of doc strictly in order. Each created card
// inserts one line, so later patches are offset by the number of insertions
// already applied. A failing card is logged and skipped; a failing sink
// aborts the run since later line numbers would no longer be valid.
func (r *Reconciler) Reconcile(ctx context.Context, doc *card.Document, sink LineSetter) (*Report, error) {
	run := runContext{deck: doc.Deck, tags: doc.Tags, model: r.opts.Model}
	report := &Report{Outcomes: make([]Outcome, 0, len(doc.Cards))}
	inserted := 0

	for _, c := range doc.Cards {
		oc, err := r.reconcileCard(ctx, run, c, inserted, sink)
		if oc.Card != nil {
			report.Outcomes = append(report.Outcomes, oc)
		}
		if err != nil {
			return report, err
		}
		if oc.Patch != nil && oc.Status == StatusCreated {
			inserted++
		}
	}

	return report, nil
}

func (r *Reconciler) reconcileCard(ctx context.Context, run runContext, c *card.Card, inserted int, sink LineSetter) (Outcome, error) {
	s := card.Serialize(c)
	digest, err := checksum.Sum(r.opts.HashAlgo, []byte(s.Canonical()))
	if err != nil {
		return Outcome{}, fmt.Errorf("reconcile: %w", err)
	}

	oc := Outcome{Card: c, NoteID: c.NoteID, Hash: digest, Media: s.Media}
	if !checksum.Changed(c.Hash, digest) {
		oc.Status = StatusUnchanged
		return oc, nil
	}

	oc.Action = anki.ActionAddNote
	if c.HasRemote() {
		oc.Action = anki.ActionUpdateNote
	}

	logger := r.logger.With(slog.String("card", c.Key), slog.Int("line", c.Position.Start))
	if len(s.Media) > 0 {
		logger.Debug("reconcile: card references media, upload skipped", slog.Any("media", s.Media))
	}

	if c.Setext || strings.Contains(c.Key, "\n") {
		return r.fail(logger, oc, "setext card headings cannot carry a state comment, use a '#' heading"), nil
	}

	if r.opts.DryRun {
		oc.Status = StatusPending
		return oc, nil
	}

	front, err := r.renderer.Render(s.Front)
	if err != nil {
		return r.fail(logger, oc, err.Error()), nil
	}
	back, err := r.renderer.Render(s.Back)
	if err != nil {
		return r.fail(logger, oc, err.Error()), nil
	}

	note := anki.Note{
		DeckName:  run.deck,
		ModelName: run.model,
		Fields:    anki.Fields{Front: front, Back: back},
		Tags:      run.tags,
	}

	var patch Patch
	if c.HasRemote() {
		note.ID = c.NoteID
		if err := r.store.UpdateNote(ctx, note); err != nil {
			return r.fail(logger, oc, err.Error()), nil
		}
		oc.Status = StatusUpdated
		patch = Patch{
			Line: c.Position.Start + inserted,
			Text: card.StateComment(c.NoteID, digest),
		}
	} else {
		id, err := r.store.AddNote(ctx, note)
		if err != nil {
			return r.fail(logger, oc, err.Error()), nil
		}
		oc.Status = StatusCreated
		oc.NoteID = id
		patch = Patch{
			Line: c.Position.Start - 1 + inserted,
			Text: c.HeadingLine() + "\n" + card.StateComment(id, digest),
		}
	}

	c.NoteID = oc.NoteID
	c.Hash = digest

	if err := sink.SetLine(patch.Line, patch.Text); err != nil {
		return oc, fmt.Errorf("reconcile: patch line %d for %q: %w", patch.Line, c.Key, err)
	}
	oc.Patch = &patch

	logger.Info("reconcile: card synced",
		slog.String("status", string(oc.Status)),
		slog.Int64("note_id", oc.NoteID))
	return oc, nil
}

func (r *Reconciler) fail(logger *slog.Logger, oc Outcome, reason string) Outcome {
	oc.Status = StatusFailed
	oc.Reason = reason
	logger.Warn("reconcile: card sync failed",
		slog.String("action", oc.Action),
		slog.String("error", reason))
	return oc
}
