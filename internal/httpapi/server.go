// Package httpapi is the HTTP surface: account endpoints, roster
// authoring CRUD, the shared-roster point read with derived fields, and
// the websocket mount. Handlers translate between HTTP and the domain;
// no roster semantics live here.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/guildops/rosterlive/internal/auth"
	"github.com/guildops/rosterlive/internal/config"
	"github.com/guildops/rosterlive/internal/hub"
	"github.com/guildops/rosterlive/internal/store"
	"github.com/guildops/rosterlive/internal/ws"
	"github.com/guildops/rosterlive/pkg/apperr"
)

type Server struct {
	cfg      *config.Config
	gate     *auth.Gate
	store    *store.Store
	hub      *hub.Hub
	log      *zap.Logger
	validate *validator.Validate
}

func NewServer(cfg *config.Config, gate *auth.Gate, st *store.Store, h *hub.Hub, log *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		gate:     gate,
		store:    st,
		hub:      h,
		log:      log,
		validate: validator.New(),
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.withIdentity)

		r.Post("/register", s.register)
		r.Post("/login", s.login)

		r.Get("/members", s.listMembers)

		r.Route("/rosters", func(r chi.Router) {
			r.Get("/", s.listRosters)
			r.Post("/", s.createRoster)
			r.Get("/{id}", s.getRoster)
			r.Put("/{id}", s.updateRoster)
			r.Delete("/{id}", s.deleteRoster)
			r.Post("/{id}/copy", s.copyRoster)
			r.Post("/{id}/share", s.shareRoster)
		})

	})

	r.Route("/shared/{shareId}", func(r chi.Router) {
		r.Use(s.withIdentity)
		r.Get("/", s.getShared)
		r.Delete("/", s.deleteShared)
		r.Post("/signup", s.sharedSignUp)
		r.Post("/withdraw", s.sharedWithdraw)
		r.Get("/ws", ws.Handler(s.hub, s.store, s.identityFromRequest, s.log))
	})

	return r
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("encode response", zap.Error(err))
	}
}

type errBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// writeErr maps a taxonomy error onto its HTTP status. Anything outside
// the taxonomy is a 500 with a generic body so internals never leak.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	if code == "" {
		s.log.Error("unclassified error", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errBody{Code: "INTERNAL", Error: "internal error"})
		return
	}
	s.writeJSON(w, apperr.HTTPStatus(code), errBody{Code: string(code), Error: err.Error()})
}

// decode reads and validates a JSON request body.
func (s *Server) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Validation("malformed request body")
	}
	if err := s.validate.Struct(dst); err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, "invalid request")
	}
	return nil
}
