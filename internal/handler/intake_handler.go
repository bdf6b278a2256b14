package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stevi10623-crypto/deductly-intake/internal/intake"
	"github.com/stevi10623-crypto/deductly-intake/internal/service"
	"github.com/stevi10623-crypto/deductly-intake/internal/wizard"
)

// Sessions runs wizard events for a token, one at a time.
type Sessions interface {
	Do(ctx context.Context, token string, fn func(*wizard.Session) error) error
}

// IntakeHandler serves the client-facing questionnaire. The intake token in
// the path is the only credential.
type IntakeHandler struct {
	schema    *intake.Schema
	sessions  Sessions
	intakes   *service.IntakeService
	maxUpload int64
}

func NewIntakeHandler(schema *intake.Schema, sessions Sessions, intakes *service.IntakeService, maxUpload int64) *IntakeHandler {
	if maxUpload <= 0 {
		maxUpload = service.DefaultMaxUpload
	}
	return &IntakeHandler{schema: schema, sessions: sessions, intakes: intakes, maxUpload: maxUpload}
}

type stepRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// wizardView is the render state of a session.
type wizardView struct {
	Token     string              `json:"token"`
	Step      int                 `json:"step"`
	Steps     []stepRef           `json:"steps"`
	IsLast    bool                `json:"isLast"`
	Section   *intake.SectionView `json:"section"`
	Gating    any                 `json:"gatingAnswer,omitempty"`
	Answers   intake.AnswerSet    `json:"answers"`
	Submitted bool                `json:"submitted,omitempty"`
}

func viewOf(s *wizard.Session) wizardView {
	v := wizardView{
		Token:   s.Token(),
		Step:    s.Step(),
		IsLast:  s.IsLast(),
		Answers: s.Answers(),
		Steps:   make([]stepRef, 0, len(s.Active())),
	}
	for _, sec := range s.Active() {
		v.Steps = append(v.Steps, stepRef{ID: sec.ID, Title: sec.Title})
	}
	if cur, ok := s.Current(); ok {
		v.Section = &cur
		if g := cur.Section.GatingQuestion; g != nil {
			v.Gating = v.Answers[g.ID]
		}
	}
	return v
}

// Schema returns the section catalog.
func (h *IntakeHandler) Schema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sections": h.schema.Sections()})
}

func (h *IntakeHandler) View(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(s *wizard.Session) (int, error) { return http.StatusOK, nil })
}

// Answer stores one answer: {"fieldId": "...", "value": ...}. A null value
// clears the answer. Document lists only change through Upload and DeleteFile.
func (h *IntakeHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FieldID string `json:"fieldId"`
		Value   any    `json:"value"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FieldID == "" {
		writeError(w, http.StatusBadRequest, "fieldId is required")
		return
	}
	if _, ok := h.schema.FileSection(req.FieldID); ok {
		writeError(w, http.StatusBadRequest, "documents are attached through the upload endpoint")
		return
	}
	h.run(w, r, func(s *wizard.Session) (int, error) {
		return http.StatusOK, s.Answer(req.FieldID, req.Value)
	})
}

func (h *IntakeHandler) Back(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(s *wizard.Session) (int, error) {
		s.Back()
		return http.StatusOK, nil
	})
}

func (h *IntakeHandler) Continue(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	var view wizardView
	err := h.sessions.Do(r.Context(), token, func(s *wizard.Session) error {
		t, err := s.Continue(r.Context())
		if err != nil {
			return err
		}
		view = viewOf(s)
		view.Submitted = t == wizard.TransitionSubmitted
		return nil
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Upload stores a multipart "file" for a section and attaches it.
func (h *IntakeHandler) Upload(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	sectionID := chi.URLParam(r, "sectionId")

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	up, err := h.intakes.UploadFile(r.Context(), token, sectionID, header.Filename, data, header.Header.Get("Content-Type"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var view wizardView
	err = h.sessions.Do(r.Context(), token, func(s *wizard.Session) error {
		if err := s.AddFile(sectionID, up); err != nil {
			return err
		}
		view = viewOf(s)
		return nil
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"file": up, "view": view})
}

// DeleteFile removes a stored document and its descriptor.
func (h *IntakeHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	key := r.URL.Query().Get("path")
	sectionID, ok := service.SectionOfKey(token, key)
	if !ok {
		writeError(w, http.StatusForbidden, "path does not belong to this intake")
		return
	}
	if err := h.intakes.DeleteFile(r.Context(), token, key); err != nil {
		writeServiceError(w, err)
		return
	}
	h.run(w, r, func(s *wizard.Session) (int, error) {
		_, err := s.RemoveFile(sectionID, key)
		return http.StatusOK, err
	})
}

// run applies fn to the token's session and replies with the new view.
func (h *IntakeHandler) run(w http.ResponseWriter, r *http.Request, fn func(*wizard.Session) (int, error)) {
	token := chi.URLParam(r, "token")
	var (
		view   wizardView
		status int
	)
	err := h.sessions.Do(r.Context(), token, func(s *wizard.Session) error {
		var err error
		if status, err = fn(s); err != nil {
			return err
		}
		view = viewOf(s)
		return nil
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, status, view)
}
