package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cruso003/JobGenie-sub001/internal/health"
	"github.com/cruso003/JobGenie-sub001/internal/observe"
)

// Handler returns the HTTP handler serving /metrics, /healthz and /readyz.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	health.New(health.SessionChecker(a.session.Status, a.session.ConnectionError)).Register(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	return observe.Middleware(a.metrics)(mux)
}
