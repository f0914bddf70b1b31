package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/theblitlabs/cook-staking/internal/api/middleware"
	"github.com/theblitlabs/cook-staking/internal/telemetry"
)

// Router wraps mux.Router with the staking routes and middleware
type Router struct {
	*mux.Router
	middleware []mux.MiddlewareFunc
}

func NewRouter(h *Handler) *Router {
	r := &Router{
		Router: mux.NewRouter(),
		middleware: []mux.MiddlewareFunc{
			middleware.Logging,
			telemetry.MetricsMiddleware(routeTemplate),
		},
	}

	r.setup()
	r.registerRoutes(h)

	return r
}

func (r *Router) setup() {
	for _, m := range r.middleware {
		r.Use(m)
	}
}

func (r *Router) registerRoutes(h *Handler) {
	r.HandleFunc("/", h.Index).Methods(http.MethodGet)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", telemetry.MetricsHandler()).Methods(http.MethodGet)
	r.HandleFunc("/ws", h.Stream).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", h.GetState).Methods(http.MethodGet)
	api.HandleFunc("/connect", h.Connect).Methods(http.MethodPost)
	api.HandleFunc("/disconnect", h.Disconnect).Methods(http.MethodPost)
	api.HandleFunc("/balance/refresh", h.RefreshBalance).Methods(http.MethodPost)
	api.HandleFunc("/amount", h.SetAmount).Methods(http.MethodPut)
	api.HandleFunc("/stake", h.Stake).Methods(http.MethodPost)
	api.HandleFunc("/claim", h.Claim).Methods(http.MethodPost)
	api.HandleFunc("/notice", h.DismissNotice).Methods(http.MethodDelete)
}

func (r *Router) AddMiddleware(m mux.MiddlewareFunc) {
	r.Use(m)
}

// routeTemplate labels metrics by route pattern rather than raw path
func routeTemplate(req *http.Request) string {
	if route := mux.CurrentRoute(req); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
