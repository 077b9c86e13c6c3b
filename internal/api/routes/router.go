package routes

import (
	"net/http"

	"github.com/bookline/videomeet/internal/api/handlers"
	"github.com/bookline/videomeet/internal/api/middleware"
	"github.com/bookline/videomeet/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	meetingHandler *handlers.MeetingHandler
	oauthHandler   *handlers.OAuthHandler

	metrics *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	meetingHandler *handlers.MeetingHandler,
	oauthHandler *handlers.OAuthHandler,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:            http.NewServeMux(),
		meetingHandler: meetingHandler,
		oauthHandler:   oauthHandler,
		metrics:        metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Meeting endpoints
	r.mux.HandleFunc("POST /api/appointments/{id}/meeting", r.meetingHandler.RequestMeeting)
	r.mux.HandleFunc("GET /api/appointments/{id}/meeting", r.meetingHandler.GetMeeting)
	r.mux.HandleFunc("DELETE /api/appointments/{id}/meeting", r.meetingHandler.CancelMeeting)
	r.mux.HandleFunc("GET /api/staff/{id}/appointments", r.meetingHandler.ListStaffAppointments)

	// OAuth connect flow
	r.mux.HandleFunc("GET /api/oauth/{provider}/connect", r.oauthHandler.Connect)
	r.mux.HandleFunc("GET /api/oauth/{provider}/authorize", r.oauthHandler.Authorize)
	r.mux.HandleFunc("GET /api/oauth/{provider}/callback", r.oauthHandler.Callback)

	// Connection management
	r.mux.HandleFunc("GET /api/staff/{id}/connections/{provider}", r.oauthHandler.GetConnection)
	r.mux.HandleFunc("DELETE /api/staff/{id}/connections/{provider}", r.oauthHandler.Disconnect)

	// Middleware chain, innermost first.
	var handler http.Handler = r.mux
	handler = middleware.Compression(handler)
	if r.metrics != nil {
		handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	}
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.CORSMiddleware(handler)

	return handler
}
