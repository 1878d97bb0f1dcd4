package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/okian/unirank/internal/domain/types"
)

// UserDependencies defines the interface for user and bonus operations.
type UserDependencies interface {
	RegisterUser(ctx context.Context, userID string) (bool, error)
	User(ctx context.Context, userID string) (types.UserView, error)
	SetCourseBonus(ctx context.Context, userID string, bonus float64) error
}

// UsersHandler handles user registration, lookup and course bonuses.
type UsersHandler struct {
	deps UserDependencies
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(deps UserDependencies) *UsersHandler {
	return &UsersHandler{deps: deps}
}

type userRequest struct {
	UserID string `json:"user_id"`
}

type bonusRequest struct {
	UserID string  `json:"user_id"`
	Bonus  float64 `json:"bonus"`
}

var errUserIDRequired = errors.New("user_id is required")

// HandlePostUser handles POST /users requests. Registering a known user
// is a no-op reported with created=false.
func (h *UsersHandler) HandlePostUser(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_user"
	var req userRequest
	if err := httpx.Parse(r, &req); err != nil {
		writeFailure(w, r, badRequest(op, err))
		return
	}
	id := strings.TrimSpace(req.UserID)
	if id == "" {
		writeFailure(w, r, badRequest(op, errUserIDRequired))
		return
	}
	created, err := h.deps.RegisterUser(r.Context(), id)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"user_id": id, "created": created})
}

// HandleGetUser handles GET /users/{user_id} requests.
func (h *UsersHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_user"
	id := r.PathValue("user_id")
	if id == "" {
		writeFailure(w, r, badRequest(op, errUserIDRequired))
		return
	}
	view, err := h.deps.User(r.Context(), id)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

// HandlePostBonus handles POST /bonus requests.
func (h *UsersHandler) HandlePostBonus(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_bonus"
	var req bonusRequest
	if err := httpx.Parse(r, &req); err != nil {
		writeFailure(w, r, badRequest(op, err))
		return
	}
	id := strings.TrimSpace(req.UserID)
	if id == "" {
		writeFailure(w, r, badRequest(op, errUserIDRequired))
		return
	}
	if err := h.deps.SetCourseBonus(r.Context(), id, req.Bonus); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"user_id": id, "bonus": req.Bonus})
}
