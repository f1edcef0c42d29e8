package api

import (
	"courier-route-service/internal/api/handlers"
	"courier-route-service/internal/platform/obs"
	"courier-route-service/internal/ports"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// Handlers stay unaware of concrete adapters.
func NewRouter(session ports.RouteSession, linker ports.MapLinker) http.Handler {
	mux := http.NewServeMux()

	route := &handlers.RouteHandler{Session: session, Linker: linker}

	mux.HandleFunc("/health", handlers.Health)
	mux.HandleFunc("/stops", route.Stops)
	mux.HandleFunc("/optimize", route.Optimize)
	mux.HandleFunc("/cycle", route.Cycle)
	mux.HandleFunc("/route", route.Route)
	mux.Handle("/metrics", promhttp.HandlerFor(obs.Registry, promhttp.HandlerOpts{}))

	return loggingMiddleware(mux)
}
