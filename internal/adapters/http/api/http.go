// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	service "github.com/okian/unirank/internal/app"
	"github.com/okian/unirank/internal/domain/ranking"
	"github.com/okian/unirank/internal/domain/types"
)

const defaultMaxLimit = 1000

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	PlatformDependencies
	UserDependencies
	UpdateDependencies
	LeaderboardDependencies
	RankDependencies
	WeightsDependencies
	StatsProvider
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	platformsHandler   *PlatformsHandler
	usersHandler       *UsersHandler
	updatesHandler     *UpdatesHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	weightsHandler     *WeightsHandler
}

// NewServer creates a new API server with all handlers. maxLimit caps
// GET /leaderboard; values below 1 use the default.
func NewServer(deps Dependencies, maxLimit int) *Server {
	if maxLimit < 1 {
		maxLimit = defaultMaxLimit
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		platformsHandler:   NewPlatformsHandler(deps),
		usersHandler:       NewUsersHandler(deps),
		updatesHandler:     NewUpdatesHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		rankHandler:        NewRankHandler(deps),
		weightsHandler:     NewWeightsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /platforms", MetricsMiddleware(s.platformsHandler.HandlePostPlatform, "platforms"))
	mux.HandleFunc("GET /platforms", MetricsMiddleware(s.platformsHandler.HandleListPlatforms, "platforms"))
	mux.HandleFunc("POST /users", MetricsMiddleware(s.usersHandler.HandlePostUser, "users"))
	mux.HandleFunc("GET /users/{user_id}", MetricsMiddleware(s.usersHandler.HandleGetUser, "users"))
	mux.HandleFunc("POST /bonus", MetricsMiddleware(s.usersHandler.HandlePostBonus, "bonus"))
	mux.HandleFunc("POST /updates", MetricsMiddleware(s.updatesHandler.HandlePostUpdate, "updates"))
	mux.HandleFunc("GET /leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("GET /rank/{user_id}", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	mux.HandleFunc("GET /weights", MetricsMiddleware(s.weightsHandler.HandleGetWeights, "weights"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	httpx.WriteJsonCtx(r.Context(), w, status, v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, r, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps domain and service errors to a status and code.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, ranking.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, ranking.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", err)
	case errors.Is(err, ranking.ErrDuplicate):
		writeError(w, r, http.StatusConflict, "conflict", err)
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, r, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, r, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, r, http.StatusInternalServerError, "internal_error", err)
	}
}
