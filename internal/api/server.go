// Package api exposes the command surface over HTTP. Actor identity comes
// from the X-Actor-ID header; authentication itself is the host platform's
// concern.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"hustled/internal/business"
	"hustled/internal/config"
	"hustled/internal/economy"
	"hustled/internal/kv"
	"hustled/internal/roulette"
	"hustled/internal/workflow"
)

type contextKey string

const actorContextKey contextKey = "actor"

type ActorContext struct {
	ActorID string
	Name    string
}

type Server struct {
	cfg      config.APIConfig
	log      *slog.Logger
	economy  *economy.Service
	registry *business.Registry
	roulette *roulette.Engine
	sessions *sessionManager
	mux      *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, econ *economy.Service, registry *business.Registry, eng *roulette.Engine) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		log:      logger,
		economy:  econ,
		registry: registry,
		roulette: eng,
		sessions: newSessionManager(registry, cfg.SessionIdle, logger),
		mux:      chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(90 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.actorMiddleware)

		r.Get("/balance", s.handleBalanceSelf)
		r.Get("/balance/{actor_id}", s.handleBalance)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Post("/work", s.handleWork)
		r.Post("/rob", s.handleRob)

		r.Post("/roulette", s.handleRoulette)
		r.Get("/roulette", s.handleRoulettePending)

		r.Post("/businesses", s.handleCreateBusiness)
		r.Get("/businesses", s.handleListBusinesses)
		r.Get("/businesses/mine", s.handleManageBusiness)
		r.Get("/businesses/upgrades", s.handleUpgradeOptions)
		r.Post("/businesses/upgrade", s.handleUpgradeBusiness)
		r.Post("/businesses/{name}/apply", s.handleApplyStart)
		r.Post("/businesses/employees/{actor_id}/fire", s.handleFire)

		r.Post("/applications/sessions/{id}/reply", s.handleApplyReply)
		r.Get("/applications", s.handleApplications)
		r.Post("/applications/{id}/approve", s.handleApprove)
		r.Post("/applications/{id}/deny", s.handleDeny)

		r.Post("/admin/credit", s.handleAdminCredit)
	})
}

func (s *Server) actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID := strings.TrimSpace(r.Header.Get("X-Actor-ID"))
		if actorID == "" {
			writeError(w, http.StatusUnauthorized, "missing X-Actor-ID header")
			return
		}
		name := strings.TrimSpace(r.Header.Get("X-Actor-Name"))
		if name == "" {
			name = actorID
		}
		ctx := context.WithValue(r.Context(), actorContextKey, ActorContext{
			ActorID: actorID,
			Name:    name,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFromContext(ctx context.Context) (ActorContext, error) {
	actor, ok := ctx.Value(actorContextKey).(ActorContext)
	if !ok || actor.ActorID == "" {
		return ActorContext{}, errors.New("missing actor context")
	}
	return actor, nil
}

func (s *Server) handleBalanceSelf(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	s.writeBalance(w, r, actor.ActorID)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	s.writeBalance(w, r, chi.URLParam(r, "actor_id"))
}

func (s *Server) writeBalance(w http.ResponseWriter, r *http.Request, actorID string) {
	acct, err := s.economy.GetOrCreate(r.Context(), actorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"actor_id":  actorID,
		"balance":   acct.Balance,
		"bank":      acct.Bank,
		"net_worth": acct.NetWorth(),
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	topN := s.cfg.LeaderboardN
	if v := r.URL.Query().Get("n"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			topN = n
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": s.economy.Leaderboard(topN)})
}

func (s *Server) handleWork(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	result, err := s.economy.Work(r.Context(), actor.ActorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRob(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		TargetID string `json:"target_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.economy.Rob(r.Context(), actor.ActorID, strings.TrimSpace(in.TargetID))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRoulette(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Color  string `json:"color"`
		Amount int64  `json:"amount"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bet, err := s.roulette.PlaceBet(r.Context(), actor.ActorID, in.Color, in.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, bet)
}

func (s *Server) handleRoulettePending(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	bet, ok := s.roulette.Pending(actor.ActorID)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"pending": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": true, "bet": bet})
}

func (s *Server) handleCreateBusiness(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := s.registry.Create(r.Context(), actor.ActorID, actor.Name, in.Name, in.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

type businessSummary struct {
	business.Business
	EmployeeCount int  `json:"employee_count"`
	Hiring        bool `json:"hiring"`
}

func (s *Server) handleListBusinesses(w http.ResponseWriter, _ *http.Request) {
	all := s.registry.List()
	out := make([]businessSummary, 0, len(all))
	for _, b := range all {
		out = append(out, businessSummary{
			Business:      b,
			EmployeeCount: len(b.Employees),
			Hiring:        b.Hiring(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"businesses": out})
}

func (s *Server) handleManageBusiness(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	b, ok := s.registry.OwnedBy(actor.ActorID)
	if !ok {
		writeDomainError(w, business.ErrNoBusiness)
		return
	}
	apps, err := s.registry.Applications(actor.ActorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"business":             b,
		"employee_count":       len(b.Employees),
		"pending_applications": apps,
	})
}

func (s *Server) handleUpgradeOptions(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	owned := map[string]bool{}
	if b, ok := s.registry.OwnedBy(actor.ActorID); ok {
		owned = b.Upgrades
	}
	type option struct {
		business.Upgrade
		Owned bool `json:"owned"`
	}
	out := make([]option, 0, len(business.Upgrades))
	for _, u := range business.Upgrades {
		out = append(out, option{Upgrade: u, Owned: owned[u.Key]})
	}
	writeJSON(w, http.StatusOK, map[string]any{"upgrades": out})
}

func (s *Server) handleUpgradeBusiness(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Selection string `json:"selection"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	upgrade, b, err := s.registry.PurchaseUpgrade(r.Context(), actor.ActorID, in.Selection)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"upgrade": upgrade, "business": b})
}

func (s *Server) handleApplyStart(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	step, err := s.sessions.Start(r.Context(), actor.ActorID, actor.Name, chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, step)
}

func (s *Server) handleApplyReply(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	step, err := s.sessions.Reply(r.Context(), chi.URLParam(r, "id"), actor.ActorID, in.Text)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (s *Server) handleApplications(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	apps, err := s.registry.Applications(actor.ActorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applications": apps})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.reviewApplication(w, r, s.registry.Approve)
}

func (s *Server) handleDeny(w http.ResponseWriter, r *http.Request) {
	s.reviewApplication(w, r, s.registry.Deny)
}

func (s *Server) reviewApplication(w http.ResponseWriter, r *http.Request, review func(context.Context, string, string) (business.Application, error)) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	app, err := review(r.Context(), actor.ActorID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleFire(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err := s.registry.Fire(r.Context(), actor.ActorID, chi.URLParam(r, "actor_id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleAdminCredit(w http.ResponseWriter, r *http.Request) {
	if s.cfg.AdminToken == "" || r.Header.Get("X-Admin-Token") != s.cfg.AdminToken {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	var in struct {
		ActorID string `json:"actor_id"`
		Amount  int64  `json:"amount"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	acct, err := s.economy.Credit(r.Context(), strings.TrimSpace(in.ActorID), in.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"actor_id": in.ActorID, "balance": acct.Balance})
}

func writeDomainError(w http.ResponseWriter, err error) {
	var cooldown *economy.CooldownError
	switch {
	case errors.As(err, &cooldown):
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":         "on cooldown",
			"next_eligible": cooldown.NextEligible,
		})
	case errors.Is(err, economy.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, economy.ErrSelfTarget), errors.Is(err, economy.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, business.ErrNotFound), errors.Is(err, business.ErrNoBusiness),
		errors.Is(err, business.ErrApplicationNotFound), errors.Is(err, errSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, business.ErrAlreadyOwnsBusiness), errors.Is(err, business.ErrAlreadyEmployed),
		errors.Is(err, business.ErrBusinessFull), errors.Is(err, business.ErrUpgradeOwned),
		errors.Is(err, business.ErrApplicationClosed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, business.ErrInvalidSelection), errors.Is(err, business.ErrNotEmployed):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, roulette.ErrBetAlreadyActive):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, roulette.ErrInvalidColor), errors.Is(err, roulette.ErrMinimumBetNotMet):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, workflow.ErrTimeout):
		writeError(w, http.StatusRequestTimeout, err.Error())
	case errors.Is(err, errSessionOwner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, errSessionStalled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, kv.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, kv.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}
