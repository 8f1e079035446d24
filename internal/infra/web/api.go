package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"plans-admin/internal/domain"
	"plans-admin/internal/domain/model"
	"plans-admin/internal/infra/logging"
	"plans-admin/internal/usecase"

	"github.com/go-chi/chi/v5"
)

type paginationJSON struct {
	CurrentPage int   `json:"current_page"`
	LastPage    int   `json:"last_page"`
	Window      []int `json:"window"`
}

type planPageJSON struct {
	Data       []*model.Plan  `json:"data"`
	Total      int            `json:"total"`
	PageSize   int            `json:"page_size"`
	Pagination paginationJSON `json:"pagination"`
}

type planInput struct {
	Name   *string `json:"name"`
	Active *bool   `json:"active"`
}

func toPlanPageJSON(p *usecase.PlanPage) planPageJSON {
	data := p.Plans
	if data == nil {
		data = []*model.Plan{}
	}
	return planPageJSON{
		Data:     data,
		Total:    p.Total,
		PageSize: p.PageSize,
		Pagination: paginationJSON{
			CurrentPage: p.Pagination.CurrentPage,
			LastPage:    p.Pagination.LastPage,
			Window:      p.Pagination.Window(),
		},
	}
}

func (s *Server) apiListPlans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := s.planUC.ListPage(r.Context(), atoiOr(q.Get("page"), 1), atoiOr(q.Get("win"), 1))
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanPageJSON(page))
}

func (s *Server) apiGetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.planUC.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) apiCreatePlan(w http.ResponseWriter, r *http.Request) {
	var in planInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if in.Name == nil {
		writeJSONError(w, http.StatusBadRequest, "name is required")
		return
	}
	active := in.Active == nil || *in.Active
	plan, err := s.planUC.Create(r.Context(), *in.Name, active)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (s *Server) apiUpdatePlan(w http.ResponseWriter, r *http.Request) {
	var in planInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	plan, err := s.planUC.Update(r.Context(), chi.URLParam(r, "id"), in.Name, in.Active)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) apiDeletePlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.planUC.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	logging.With(r.Context(), s.log).Info().
		Str("plan_id", plan.ID).
		Str("plan_name", plan.Name).
		Msg("plan deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeAPIError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not found")
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("api request failed")
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
