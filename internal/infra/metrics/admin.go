package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		adminHTTPRequestsTotal,
		planPageViewsTotal,
		planMutationsTotal,
		loginAttemptsTotal,
	)
}

var (
	adminHTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_http_requests_total",
			Help: "Admin panel HTTP requests by route pattern and status code.",
		},
		[]string{"route", "status"},
	)

	planPageViewsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "plan_page_views_total",
			Help: "Rendered pages of the plans list (HTML and JSON).",
		},
	)

	planMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plan_mutations_total",
			Help: "Plan create/update/delete operations.",
		},
		[]string{"op", "status"}, // status: 'ok', 'error'
	)

	loginAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_login_attempts_total",
			Help: "Admin login attempts by result.",
		},
		[]string{"result"}, // 'ok', 'denied', 'limited'
	)
)

func IncAdminHTTPRequest(route string, status int) {
	if route == "" {
		route = "unmatched"
	}
	adminHTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func IncPlanPageView() { planPageViewsTotal.Inc() }

func IncPlanMutation(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	planMutationsTotal.WithLabelValues(norm(op), status).Inc()
}

func IncLoginAttempt(result string) {
	loginAttemptsTotal.WithLabelValues(norm(result)).Inc()
}
