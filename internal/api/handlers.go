package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mwantia/loadoutsync/internal/banktag"
	"github.com/mwantia/loadoutsync/internal/loadout"
	"github.com/mwantia/loadoutsync/internal/pagination"
	"github.com/mwantia/loadoutsync/internal/query"
)

type SessionRequest struct {
	UserID string `json:"userId"`
}

type SessionResponse struct {
	UserID        string `json:"userId,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

type ListResponse struct {
	Loadouts   []loadout.Loadout `json:"loadouts"`
	Pagination pagination.State  `json:"pagination"`
}

type LoadoutResponse struct {
	loadout.Loadout
	IsOwner  bool `json:"isOwner"`
	HasLiked bool `json:"hasLiked"`
}

type ImportRequest struct {
	Text     string           `json:"text" validate:"required"`
	Category loadout.Category `json:"category" validate:"required"`
}

type LikeResponse struct {
	Liked bool `json:"liked"`
}

func (s *Server) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	uid := s.session.UserID()
	s.respondJSON(w, http.StatusOK, SessionResponse{UserID: uid, Authenticated: uid != ""})
}

// HandleSetSession signs a user in, or out with an empty id.
func (s *Server) HandleSetSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.session.SetUser(strings.TrimSpace(req.UserID))
	s.HandleGetSession(w, r)
}

func (s *Server) list() ListResponse {
	return ListResponse{
		Loadouts:   s.engine.Loadouts(),
		Pagination: s.engine.Pagination(),
	}
}

func (s *Server) HandleListLoadouts(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.list())
}

func (s *Server) HandleFilteredView(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.engine.FilteredView())
}

func (s *Server) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Refresh(r.Context()); err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.list())
}

func (s *Server) HandleNextPage(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.LoadNextPage(r.Context()); err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.list())
}

func (s *Server) HandleCreateLoadout(w http.ResponseWriter, r *http.Request) {
	var l loadout.Loadout
	if err := decode(r, &l); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.create(w, r, l)
}

// HandleImportBankTag creates a loadout from bank tag text, keeping the
// text so it exports unchanged.
func (s *Server) HandleImportBankTag(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondFailure(w, err)
		return
	}

	l, err := loadout.FromBankTag(req.Text, req.Category)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.create(w, r, l)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request, l loadout.Loadout) {
	created, err := s.engine.Create(r.Context(), l)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) HandleGetLoadout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	l, ok := s.engine.Loadout(id)
	if !ok {
		s.respondFailure(w, loadout.ErrNotFound)
		return
	}
	s.respondJSON(w, http.StatusOK, LoadoutResponse{
		Loadout:  l,
		IsOwner:  s.engine.IsOwner(id),
		HasLiked: s.engine.HasLiked(id),
	})
}

func (s *Server) HandleDeleteLoadout(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	liked, err := s.engine.ToggleLike(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, LikeResponse{Liked: liked})
}

func (s *Server) HandleRecordView(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RecordView(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleExportBankTag returns the bank tag text of a loadout imported from
// one of the bank tag formats.
func (s *Server) HandleExportBankTag(w http.ResponseWriter, r *http.Request) {
	l, ok := s.engine.Loadout(chi.URLParam(r, "id"))
	if !ok {
		s.respondFailure(w, loadout.ErrNotFound)
		return
	}
	if l.BankTag == nil {
		s.respondError(w, http.StatusBadRequest, "Loadout has no bank tag layout")
		return
	}

	layout := *l.BankTag
	if layout.OriginalFormat == "" {
		layout.OriginalFormat = l.OriginalFormat
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(banktag.Export(&layout)))
}

func (s *Server) HandleGetFilters(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.engine.Filters())
}

func (s *Server) HandleSetFilters(w http.ResponseWriter, r *http.Request) {
	var f query.Filter
	if err := decode(r, &f); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validate.Struct(f); err != nil {
		s.respondFailure(w, err)
		return
	}
	for _, c := range f.Categories {
		if !c.Valid() {
			s.respondError(w, http.StatusBadRequest, "Unknown category "+strconv.Quote(string(c)))
			return
		}
	}

	// A failed load keeps the new filter and the previous loadouts.
	if err := s.engine.SetFilters(r.Context(), f); err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.list())
}

func (s *Server) HandleResetFilters(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ResetFilters(r.Context()); err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.list())
}

func (s *Server) HandleGetTags(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.engine.AllTags())
}

func (s *Server) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.refresher.Stats())
}

func (s *Server) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.Summary(r.Context())
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}

// HandleGetUserStats serves both /stats/users/{uid} and /stats/me.
func (s *Server) HandleGetUserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.UserStats(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) HandleGetItemNames(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ids")
	if raw == "" {
		s.respondError(w, http.StatusBadRequest, "Missing ids query parameter")
		return
	}

	var ids []int
	for _, token := range strings.Split(raw, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(token))
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "Invalid item id "+strconv.Quote(token))
			return
		}
		ids = append(ids, id)
	}

	names := make(map[string]string, len(ids))
	for id, name := range s.catalog.Names(ids) {
		names[strconv.Itoa(id)] = name
	}
	s.respondJSON(w, http.StatusOK, names)
}
