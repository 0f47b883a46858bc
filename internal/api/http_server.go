package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"devlend/internal/config"
	"devlend/internal/domain"

	"github.com/rs/zerolog"
)

// Services are the operations the HTTP API exposes.
type Services struct {
	Bookings      domain.BookingService
	Resources     domain.ResourceService
	Notifications domain.NotificationService
	Users         domain.UserService
}

// Pinger reports store health for readiness checks.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HTTPServer exposes the JSON API used by the web front end.
type HTTPServer struct {
	cfg       config.APIConfig
	policy    config.BookingConfig
	identity  *Identity
	bookings  domain.BookingService
	resources domain.ResourceService
	notes     domain.NotificationService
	users     domain.UserService
	db        Pinger
	validator *RequestValidator
	limiter   *rateLimiter
	loc       *time.Location
	server    *http.Server
	logger    zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	policy config.BookingConfig,
	identity *Identity,
	svc Services,
	db Pinger,
	logger *zerolog.Logger,
) *HTTPServer {
	s := &HTTPServer{
		cfg:       cfg,
		policy:    policy,
		identity:  identity,
		bookings:  svc.Bookings,
		resources: svc.Resources,
		notes:     svc.Notifications,
		users:     svc.Users,
		db:        db,
		validator: NewRequestValidator(),
		limiter:   newRateLimiter(cfg.RateLimit),
		loc:       time.UTC,
		logger:    zerolog.Nop(),
	}
	if logger != nil {
		s.logger = logger.With().Str("component", "http").Logger()
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// SetLocation sets the zone used for calendar days in exports.
func (s *HTTPServer) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

// Handler builds the routed handler with its middleware chain.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/v1/policy", instrument("policy", s.handlePolicy))

	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, instrument(endpoint, s.authenticate(h)))
	}

	route("GET /api/v1/catalogue", "catalogue", s.handleCatalogue)
	route("GET /api/v1/catalogue/{id}", "catalogue_detail", s.handleCatalogueDetail)
	route("GET /api/v1/availability", "availability", s.handleAvailability)
	route("POST /api/v1/bookings", "submit_booking", s.handleSubmitBooking)
	route("GET /api/v1/bookings/me", "my_bookings", s.handleMyBookings)
	route("GET /api/v1/bookings/{id}", "get_booking", s.handleGetBooking)
	route("GET /api/v1/notifications", "notifications", s.handleNotifications)
	route("POST /api/v1/notifications/{id}/read", "notification_read", s.handleNotificationRead)
	route("POST /api/v1/notifications/read", "notifications_read_all", s.handleNotificationsReadAll)
	route("GET /api/v1/profile", "profile", s.handleProfile)
	route("PATCH /api/v1/profile", "profile_update", s.handleUpdateProfile)

	route("GET /api/v1/admin/bookings", "admin_bookings", s.handleAdminBookings)
	route("GET /api/v1/admin/bookings/export", "admin_export", s.handleAdminExport)
	route("POST /api/v1/admin/bookings/{id}/approve", "admin_approve", s.transitionHandler("approve"))
	route("POST /api/v1/admin/bookings/{id}/reject", "admin_reject", s.transitionHandler("reject"))
	route("POST /api/v1/admin/bookings/{id}/pickup", "admin_pickup", s.transitionHandler("pickup"))
	route("POST /api/v1/admin/bookings/{id}/return", "admin_return", s.transitionHandler("return"))
	route("GET /api/v1/admin/resources", "admin_resources", s.handleAdminResources)
	route("POST /api/v1/admin/resources", "admin_create_resource", s.handleCreateResource)
	route("PATCH /api/v1/admin/resources/{id}", "admin_update_resource", s.handleUpdateResource)
	route("POST /api/v1/admin/games", "admin_create_game", s.handleCreateGame)
	route("DELETE /api/v1/admin/games/{id}", "admin_delete_game", s.handleDeleteGame)

	return s.requestLogger(s.recoverer(s.rateLimit(mux)))
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "unavailable", "Database unavailable.")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type policyResponse struct {
	MaxDays            int    `json:"max_days"`
	SlotMinutes        int    `json:"slot_minutes"`
	PickupInstructions string `json:"pickup_instructions,omitempty"`
	CurrencySymbol     string `json:"currency_symbol"`
}

func (s *HTTPServer) handlePolicy(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, policyResponse{
		MaxDays:            s.policy.MaxDays,
		SlotMinutes:        s.policy.SlotMinutes,
		PickupInstructions: s.policy.PickupInstructions,
		CurrencySymbol:     s.policy.CurrencySymbol,
	})
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Validation("Invalid id.")
	}
	return id, nil
}
