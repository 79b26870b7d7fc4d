// Package gateway is the HTTP and WebSocket shell around the relay.
// It extracts the bearer credential, decodes requests and maps errors to statuses;
// every decision about identity and visibility is taken by the relay.
package gateway

import (
	"chat-relay/contract"
	"chat-relay/runtime"
	"chat-relay/services"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
)

const SessionCookieName = "relay_session"

type Config struct {
	AllowedOrigins []string
	CookieSecure   bool
	MaxBodyBytes   int64
	RetryAfter     time.Duration
	WriteTimeout   time.Duration
}

// Handler holds the gateway dependencies.
// AuthService is nil when accounts live at a remote provider.
type Handler struct {
	log         *slog.Logger
	config      Config
	relay       *runtime.Relay
	validator   contract.ICredentialValidator
	authService services.IAuthService
	validate    *validator.Validate
	upgrader    websocket.Upgrader
}

func New(log *slog.Logger, config Config, relay *runtime.Relay,
	credentialValidator contract.ICredentialValidator, authService services.IAuthService) *Handler {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 1 << 20
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	return &Handler{
		log:         log,
		config:      config,
		relay:       relay,
		validator:   credentialValidator,
		authService: authService,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		upgrader:    createUpgrader(config.AllowedOrigins),
	}
}

// SetupRouter configures the routes. Account routes exist only with a local provider.
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.logRequests)

	r.HandleFunc("/messages", h.GetMessages).Methods(http.MethodGet)
	r.HandleFunc("/messages", h.CreateMessage).Methods(http.MethodPost)
	r.HandleFunc("/live", h.HandleLive).Methods(http.MethodGet)
	r.HandleFunc("/currentUser", h.CurrentUser).Methods(http.MethodGet)

	if h.authService != nil {
		r.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
		r.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
		r.HandleFunc("/auth/logout", h.Logout).Methods(http.MethodPost)
		r.HandleFunc("/register", h.Register).Methods(http.MethodPost)
		r.HandleFunc("/login", h.Login).Methods(http.MethodPost)
		r.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)
	}
	return r
}

// HTTPHandler is the router behind the CORS policy.
func (h *Handler) HTTPHandler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   h.config.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Length", "Retry-After"},
		MaxAge:           300,
		AllowCredentials: true,
	})
	return c.Handler(h.SetupRouter())
}
