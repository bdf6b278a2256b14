package handler

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stevi10623-crypto/deductly-intake/internal/export"
	"github.com/stevi10623-crypto/deductly-intake/internal/models"
	"github.com/stevi10623-crypto/deductly-intake/internal/service"
)

const presignTTL = 15 * time.Minute

type ClientHandler struct {
	clients *service.ClientService
	exports *service.ExportService
}

func NewClientHandler(clients *service.ClientService, exports *service.ExportService) *ClientHandler {
	return &ClientHandler{clients: clients, exports: exports}
}

func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	list, err := h.clients.List(r.Context(), actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": list, "total": len(list)})
}

func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	var req service.CreateClientInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sum, err := h.clients.Create(r.Context(), actor, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sum)
}

func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	c, it, err := h.clients.Get(r.Context(), actor, chi.URLParam(r, "clientId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"client": c, "intake": it})
}

func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	id := chi.URLParam(r, "clientId")
	if err := h.clients.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (h *ClientHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	var req struct {
		Status models.IntakeStatus `json:"status"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	it, err := h.clients.SetStatus(r.Context(), actor, chi.URLParam(r, "clientId"), req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// Export downloads one intake as csv, xlsx or json.
func (h *ClientHandler) Export(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, err := h.exports.Intake(r.Context(), actor, chi.URLParam(r, "clientId"), format)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeFile(w, f)
}

// ExportList downloads the client list as CSV.
func (h *ClientHandler) ExportList(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	f, err := h.exports.ClientList(r.Context(), actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeFile(w, f)
}

// File streams a stored document, or redirects to a signed URL when the
// store supports it and ?redirect=1 is set.
func (h *ClientHandler) File(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	clientID := chi.URLParam(r, "clientId")
	key := r.URL.Query().Get("path")
	if key == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	if r.URL.Query().Get("redirect") == "1" {
		url, ok, err := h.clients.FileURL(r.Context(), actor, clientID, key, presignTTL)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if ok {
			http.Redirect(w, r, url, http.StatusFound)
			return
		}
	}
	obj, err := h.clients.OpenFile(r.Context(), actor, clientID, key)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer obj.Body.Close()

	ct := obj.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, path.Base(key)))
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	io.Copy(w, obj.Body)
}
