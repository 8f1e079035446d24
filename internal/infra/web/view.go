package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"plans-admin/internal/domain/model"
	"plans-admin/internal/infra/i18n"
	"plans-admin/internal/usecase"
)

//go:embed templates/*.html
var templatesFS embed.FS

// parsePages compiles the page templates with t and lang bound to tr.
func parsePages(tr *i18n.Translator) *template.Template {
	return template.Must(template.New("pages").Funcs(template.FuncMap{
		"t":    tr.T,
		"lang": tr.Lang,
	}).ParseFS(templatesFS, "templates/*.html"))
}

const plansPath = "/admin/plans"

type pageItem struct {
	Label    string
	Href     string
	Current  bool
	Disabled bool
}

type planRow struct {
	Name         string
	Status       string
	EditHref     string
	DeleteAction string
}

// planListView is everything the plans table template needs. Each pagination
// link points at the state its transition produces.
type planListView struct {
	Title       string
	Flash       string
	Rows        []planRow
	Page        int
	WindowStart int
	Prev        pageItem
	Pages       []pageItem
	Next        pageItem
}

func newPlanListView(p *usecase.PlanPage, flash string, tr *i18n.Translator) planListView {
	st := p.Pagination
	v := planListView{
		Title:       tr.T("plans.title"),
		Flash:       flash,
		Rows:        make([]planRow, 0, len(p.Plans)),
		Page:        st.CurrentPage,
		WindowStart: st.WindowStart,
		Prev:        pageItem{Label: "<", Href: plansURL(st.Retreat()), Disabled: !st.HasPrev()},
		Next:        pageItem{Label: ">", Href: plansURL(st.Advance()), Disabled: !st.HasNext()},
	}
	for _, plan := range p.Plans {
		id := url.PathEscape(plan.ID)
		v.Rows = append(v.Rows, planRow{
			Name:         plan.Name,
			Status:       tr.T("plan.status." + strings.ToLower(plan.StatusLabel())),
			EditHref:     plansPath + "/" + id + "/edit",
			DeleteAction: plansPath + "/" + id + "/delete",
		})
	}
	for _, n := range st.Window() {
		v.Pages = append(v.Pages, pageItem{
			Label:   strconv.Itoa(n),
			Href:    plansURL(st.SelectPage(n)),
			Current: n == st.CurrentPage,
		})
	}
	return v
}

// plansURL encodes a pagination state into the list page query string.
func plansURL(st model.PaginationState) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(st.CurrentPage))
	q.Set("win", strconv.Itoa(st.WindowStart))
	return plansPath + "?" + q.Encode()
}

type planFormView struct {
	Title  string
	Action string
	Name   string
	Active bool
	Error  string
}

type loginView struct {
	Title string
	Error string
}

// render executes into a buffer first so a template failure can still turn
// into a 500.
func (s *Server) render(w http.ResponseWriter, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
