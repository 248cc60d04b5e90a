package daemon

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"ladle/internal/api"
	"ladle/internal/recipes"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// callerOwner resolves the request identity. The X-User-ID header wins
// over identifiers carried in the body or query string.
func callerOwner(r *http.Request, userID, anonymousID string) recipes.Owner {
	if header := strings.TrimSpace(r.Header.Get("X-User-ID")); header != "" {
		userID = header
	}
	return recipes.ResolveOwner(userID, anonymousID)
}

// ownerHints reads optional identity hints from the query string.
func ownerHints(r *http.Request) recipes.Owner {
	query := r.URL.Query()
	return callerOwner(r, query.Get("user_id"), query.Get("anonymous_user_id"))
}

// pagination parses skip and limit query parameters, applying the API
// defaults and bounds.
func pagination(r *http.Request) (skip, limit int, err error) {
	skip, limit = 0, defaultPageSize
	query := r.URL.Query()
	if raw := query.Get("skip"); raw != "" {
		skip, err = strconv.Atoi(raw)
		if err != nil || skip < 0 {
			return 0, 0, errInvalidPagination
		}
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxPageSize {
			return 0, 0, errInvalidPagination
		}
	}
	return skip, limit, nil
}

var errInvalidPagination = errors.New("skip must be >= 0 and limit must be between 1 and 100")

func (s *apiServer) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	owner := callerOwner(r, req.UserID, req.AnonymousUserID)
	recipe, err := s.daemon.pipeline.Process(r.Context(), owner, req.URL)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, recipe)
}

func (s *apiServer) handleRecipes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	skip, limit, err := pagination(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	owner := ownerHints(r)
	list, err := s.daemon.store.List(r.Context(), owner, skip, limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	total, err := s.daemon.store.Count(r.Context(), owner)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RecipeListResponse{Recipes: list, Total: total})
}

func (s *apiServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	skip, limit, err := pagination(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	owner := ownerHints(r)
	list, err := s.daemon.store.Search(r.Context(), owner, q, skip, limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RecipeListResponse{Recipes: list, Total: len(list)})
}

// handleRecipeByID covers GET and DELETE on /api/recipes/{id}. Nested
// paths are not part of the API surface.
func (s *apiServer) handleRecipeByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/recipes/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		recipe, err := s.daemon.store.GetByID(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if recipe == nil {
			s.writeError(w, http.StatusNotFound, "Recipe not found")
			return
		}
		s.writeJSON(w, http.StatusOK, recipe)
	case http.MethodDelete:
		owner := ownerHints(r)
		if err := s.daemon.pipeline.Delete(r.Context(), owner, id); err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.MessageResponse{Message: "Recipe deleted successfully"})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	owner := callerOwner(r, req.UserID, req.AnonymousUserID)
	recipe, err := s.daemon.pipeline.Save(r.Context(), owner, req.RecipeID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, recipe)
}

func (s *apiServer) handleMigrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if userID == "" {
		userID = query.Get("user_id")
	}
	migrated, err := s.daemon.pipeline.Migrate(r.Context(), userID, query.Get("anonymous_user_id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.MigrateResponse{Migrated: migrated})
}
