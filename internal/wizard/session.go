// Package wizard runs the step-by-step intake questionnaire for one client:
// the current step over the active section list, answer mutations, and the
// background persistence of every mutation.
package wizard

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stevi10623-crypto/deductly-intake/internal/intake"
)

// Bridge is the backend the wizard reports to. Persist receives the whole
// answer set; version grows by one with every mutation of a session.
type Bridge interface {
	Persist(ctx context.Context, token string, answers intake.AnswerSet, version int64) error
	Submit(ctx context.Context, token string) error
}

// State is what a session is restored from.
type State struct {
	Token   string
	Answers intake.AnswerSet
	Version int64
}

// Transition is the outcome of Continue.
type Transition int

const (
	// TransitionNone means nothing happened (empty active list or failed submit).
	TransitionNone Transition = iota
	TransitionAdvanced
	TransitionSubmitted
)

func (t Transition) String() string {
	switch t {
	case TransitionAdvanced:
		return "advanced"
	case TransitionSubmitted:
		return "submitted"
	}
	return "none"
}

// Session is the wizard state machine for one intake. It is not safe for
// concurrent use; Manager serializes access per token.
type Session struct {
	schema  *intake.Schema
	token   string
	answers intake.AnswerSet
	version int64
	step    int
	active  []intake.SectionDefinition
	bridge  Bridge
	saver   *Autosaver
	log     *zap.Logger
}

// New restores a session at step 0. Persistence of later mutations goes
// through an Autosaver owned by the session.
func New(schema *intake.Schema, st State, bridge Bridge, log *zap.Logger) *Session {
	return newSession(schema, st, bridge, log, defaultPersistTimeout)
}

func newSession(schema *intake.Schema, st State, bridge Bridge, log *zap.Logger, timeout time.Duration) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	answers := st.Answers.Clone()
	s := &Session{
		schema:  schema,
		token:   st.Token,
		answers: answers,
		version: st.Version,
		bridge:  bridge,
		saver:   NewAutosaver(st.Token, bridge, log, timeout),
		log:     log,
	}
	s.recompute()
	return s
}

// Token returns the intake token this session belongs to.
func (s *Session) Token() string { return s.token }

// Step returns the current index into Active().
func (s *Session) Step() int { return s.step }

// Version returns the number of the last mutation.
func (s *Session) Version() int64 { return s.version }

// Active returns the active section list for the current answers.
func (s *Session) Active() []intake.SectionDefinition { return s.active }

// Answers returns a copy of the in-memory answer set.
func (s *Session) Answers() intake.AnswerSet { return s.answers.Clone() }

// Current resolves the section at the current step. It reports false when
// the active list is empty.
func (s *Session) Current() (intake.SectionView, bool) {
	if len(s.active) == 0 {
		return intake.SectionView{}, false
	}
	return intake.ResolveSection(s.active[s.step], s.answers), true
}

// IsLast reports whether Continue would submit.
func (s *Session) IsLast() bool {
	return len(s.active) > 0 && s.step == len(s.active)-1
}

// Answer coerces value for key and stores it. A nil value removes the answer.
// Only coercion errors are returned; persistence happens in the background.
func (s *Session) Answer(key string, value any) error {
	v, err := s.schema.Coerce(key, value)
	if err != nil {
		return err
	}
	s.set(key, v)
	return nil
}

// AddFile appends an uploaded document to a section's list.
func (s *Session) AddFile(sectionID string, f intake.UploadedFile) error {
	if _, ok := s.schema.Section(sectionID); !ok {
		return fmt.Errorf("%w: %s", intake.ErrUnknownSection, sectionID)
	}
	files := append([]intake.UploadedFile(nil), s.answers.Files(sectionID)...)
	s.set(intake.FilesKey(sectionID), append(files, f))
	return nil
}

// RemoveFile drops every descriptor with path from a section's list. It
// reports whether anything was removed.
func (s *Session) RemoveFile(sectionID, path string) (bool, error) {
	if _, ok := s.schema.Section(sectionID); !ok {
		return false, fmt.Errorf("%w: %s", intake.ErrUnknownSection, sectionID)
	}
	current := s.answers.Files(sectionID)
	kept := make([]intake.UploadedFile, 0, len(current))
	for _, f := range current {
		if f.Path != path {
			kept = append(kept, f)
		}
	}
	if len(kept) == len(current) {
		return false, nil
	}
	s.set(intake.FilesKey(sectionID), kept)
	return true, nil
}

// Back moves one step back. No-op at step 0.
func (s *Session) Back() {
	if s.step > 0 {
		s.step--
	}
}

// Continue advances one step, or submits when already on the last active
// step. Pending autosaves are flushed before submitting.
func (s *Session) Continue(ctx context.Context) (Transition, error) {
	if len(s.active) == 0 {
		return TransitionNone, nil
	}
	if s.step < len(s.active)-1 {
		s.step++
		return TransitionAdvanced, nil
	}
	if err := s.saver.Flush(ctx); err != nil {
		s.log.Warn("submitting with unsaved answers",
			zap.String("token", tokenPrefix(s.token)),
			zap.Int64("version", s.version),
			zap.Error(err),
		)
	}
	if err := s.bridge.Submit(ctx, s.token); err != nil {
		return TransitionNone, fmt.Errorf("submit intake: %w", err)
	}
	return TransitionSubmitted, nil
}

// Flush waits until every mutation so far has been handed to the bridge.
func (s *Session) Flush(ctx context.Context) error {
	return s.saver.Flush(ctx)
}

// Close drains pending saves and stops the autosaver.
func (s *Session) Close() {
	s.saver.Close()
}

func (s *Session) set(key string, v any) {
	if v == nil {
		delete(s.answers, key)
	} else {
		s.answers[key] = v
	}
	s.version++
	s.recompute()
	s.saver.Save(s.answers.Clone(), s.version)
}

// recompute derives the active list and clamps the step into it.
func (s *Session) recompute() {
	s.active = intake.ActiveSections(s.answers, s.schema.Sections())
	s.step = min(s.step, max(0, len(s.active)-1))
}
