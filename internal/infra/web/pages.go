package web

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"plans-admin/internal/domain"
	"plans-admin/internal/infra/logging"
	"plans-admin/internal/infra/metrics"
	red "plans-admin/internal/infra/redis"

	"github.com/go-chi/chi/v5"
)

const loginWindow = time.Minute

func (s *Server) plansPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := s.planUC.ListPage(r.Context(), atoiOr(q.Get("page"), 1), atoiOr(q.Get("win"), 1))
	if err != nil {
		s.serverError(w, r, err, "list plans")
		return
	}
	flash := ""
	if name := s.takeFlash(w, r); name != "" {
		flash = s.tr.T("plans.deleted", name)
	}
	if err := s.render(w, http.StatusOK, "plans_list", newPlanListView(page, flash, s.tr)); err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("render plans_list")
	}
}

func (s *Server) newPlanForm(w http.ResponseWriter, r *http.Request) {
	s.renderForm(w, r, http.StatusOK, planFormView{
		Title:  s.tr.T("form.new_title"),
		Action: plansPath + "/new",
		Active: true,
	})
}

func (s *Server) createPlan(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	name, active := r.PostForm.Get("name"), r.PostForm.Get("active") == "on"
	if _, err := s.planUC.Create(r.Context(), name, active); err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			s.renderForm(w, r, http.StatusBadRequest, planFormView{
				Title:  s.tr.T("form.new_title"),
				Action: plansPath + "/new",
				Name:   name,
				Active: active,
				Error:  s.tr.T("form.name_invalid"),
			})
			return
		}
		s.serverError(w, r, err, "create plan")
		return
	}
	http.Redirect(w, r, plansPath, http.StatusSeeOther)
}

func (s *Server) editPlanForm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	plan, err := s.planUC.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.serverError(w, r, err, "get plan")
		return
	}
	s.renderForm(w, r, http.StatusOK, planFormView{
		Title:  s.tr.T("form.edit_title"),
		Action: plansPath + "/" + url.PathEscape(id) + "/edit",
		Name:   plan.Name,
		Active: plan.Active,
	})
}

func (s *Server) updatePlan(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	name, active := r.PostForm.Get("name"), r.PostForm.Get("active") == "on"
	_, err := s.planUC.Update(r.Context(), id, &name, &active)
	switch {
	case err == nil:
		http.Redirect(w, r, plansPath, http.StatusSeeOther)
	case errors.Is(err, domain.ErrNotFound):
		http.NotFound(w, r)
	case errors.Is(err, domain.ErrInvalidArgument):
		s.renderForm(w, r, http.StatusBadRequest, planFormView{
			Title:  s.tr.T("form.edit_title"),
			Action: plansPath + "/" + url.PathEscape(id) + "/edit",
			Name:   name,
			Active: active,
			Error:  s.tr.T("form.name_invalid"),
		})
	default:
		s.serverError(w, r, err, "update plan")
	}
}

// deletePlan removes the selected row and sends the browser back to the page
// it came from. The list handler re-clamps page and win if that page is gone.
func (s *Server) deletePlan(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	plan, err := s.planUC.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.serverError(w, r, err, "delete plan")
		return
	}
	logging.With(r.Context(), s.log).Info().
		Str("plan_id", plan.ID).
		Str("plan_name", plan.Name).
		Msg("plan deleted")

	q := url.Values{}
	q.Set("page", strconv.Itoa(atoiOr(r.PostForm.Get("page"), 1)))
	q.Set("win", strconv.Itoa(atoiOr(r.PostForm.Get("win"), 1)))
	s.setFlash(w, plan.Name)
	http.Redirect(w, r, plansPath+"?"+q.Encode(), http.StatusSeeOther)
}

func (s *Server) loginForm(w http.ResponseWriter, r *http.Request) {
	if _, err := s.auth.Authenticate(r); err == nil {
		http.Redirect(w, r, plansPath, http.StatusSeeOther)
		return
	}
	_ = s.render(w, http.StatusOK, "login", loginView{Title: s.tr.T("login.title")})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)
	if s.limiter != nil {
		ok, err := s.limiter.Allow(r.Context(), red.LoginKey(remoteIP(r)), s.opts.LoginLimit, loginWindow)
		if err != nil {
			// fail open: a Redis outage must not lock admins out
			l.Warn().Err(err).Msg("login rate limiter unavailable")
		} else if !ok {
			metrics.IncLoginAttempt("limited")
			_ = s.render(w, http.StatusTooManyRequests, "login", loginView{
				Title: s.tr.T("login.title"),
				Error: s.tr.T("login.limited"),
			})
			return
		}
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	if !s.auth.CheckKey(r.PostForm.Get("key")) {
		metrics.IncLoginAttempt("denied")
		l.Warn().Str("ip", remoteIP(r)).Msg("admin login denied")
		_ = s.render(w, http.StatusUnauthorized, "login", loginView{
			Title: s.tr.T("login.title"),
			Error: s.tr.T("login.invalid"),
		})
		return
	}
	if _, err := s.auth.Mint(w); err != nil {
		s.serverError(w, r, err, "mint session")
		return
	}
	metrics.IncLoginAttempt("ok")
	l.Info().Str("ip", remoteIP(r)).Msg("admin login")
	http.Redirect(w, r, plansPath, http.StatusSeeOther)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.auth.Clear(w)
	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}

func (s *Server) renderForm(w http.ResponseWriter, r *http.Request, status int, v planFormView) {
	if err := s.render(w, status, "plan_form", v); err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("render plan_form")
	}
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error, what string) {
	logging.With(r.Context(), s.log).Error().Err(err).Msg(what)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

// The delete notice travels in a short-lived cookie rather than the redirect
// URL, so a crafted link cannot announce a deletion that never happened.
const flashCookie = "admin_flash"

func (s *Server) setFlash(w http.ResponseWriter, deletedName string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(deletedName),
		Path:     plansPath,
		MaxAge:   60,
		HttpOnly: true,
		Secure:   s.auth.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

// takeFlash returns the pending notice, if any, and clears it.
func (s *Server) takeFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Path:     plansPath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.auth.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	name, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return name
}

// atoiOr parses v, returning def for anything that is not an integer.
// Range checks are left to the pagination model.
func atoiOr(v string, def int) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
