package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/rest/httpx"

	service "github.com/okian/unirank/internal/app"
)

// UpdateDependencies defines the interface for submitting platform updates.
type UpdateDependencies interface {
	Submit(ctx context.Context, sub service.Submission) (service.SubmitResult, error)
}

// UpdatesHandler accepts platform snapshots from collectors.
type UpdatesHandler struct {
	deps UpdateDependencies
}

// NewUpdatesHandler creates a new updates handler.
func NewUpdatesHandler(deps UpdateDependencies) *UpdatesHandler {
	return &UpdatesHandler{deps: deps}
}

type ratingRequest struct {
	UserID string  `json:"user_id"`
	Rating float64 `json:"rating,range=[0:]"`
}

type updateRequest struct {
	UpdateID      string          `json:"update_id,optional"`
	Platform      string          `json:"platform"`
	Difficulty    *float64        `json:"difficulty,optional"`
	Participation *float64        `json:"participation,optional"`
	Ratings       []ratingRequest `json:"ratings"`
	TS            string          `json:"ts,optional"`
}

type updateResponse struct {
	Status    string `json:"status"`
	UpdateID  string `json:"update_id"`
	Duplicate bool   `json:"duplicate"`
}

// submission validates the request and converts it. A user listed twice
// keeps the last rating.
func (u *updateRequest) submission() (service.Submission, error) {
	sub := service.Submission{
		UpdateID:      strings.TrimSpace(u.UpdateID),
		Platform:      strings.TrimSpace(u.Platform),
		Difficulty:    u.Difficulty,
		Participation: u.Participation,
		Ratings:       make(map[string]float64, len(u.Ratings)),
	}
	if sub.Platform == "" {
		return sub, errors.New("platform is required")
	}
	for i, rt := range u.Ratings {
		id := strings.TrimSpace(rt.UserID)
		if id == "" {
			return sub, fmt.Errorf("ratings[%d]: %w", i, errUserIDRequired)
		}
		sub.Ratings[id] = rt.Rating
	}
	if u.TS != "" {
		ts, err := time.Parse(time.RFC3339, u.TS)
		if err != nil {
			return sub, fmt.Errorf("ts: %w", err)
		}
		sub.TS = ts
	}
	return sub, nil
}

// HandlePostUpdate handles POST /updates requests.
func (h *UpdatesHandler) HandlePostUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_update"
	var req updateRequest
	if err := httpx.Parse(r, &req); err != nil {
		writeFailure(w, r, badRequest(op, err))
		return
	}
	sub, err := req.submission()
	if err != nil {
		writeFailure(w, r, badRequest(op, err))
		return
	}
	res, err := h.deps.Submit(r.Context(), sub)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if res.Duplicate {
		writeJSON(w, r, http.StatusOK, updateResponse{Status: "duplicate", UpdateID: res.UpdateID, Duplicate: true})
		return
	}
	writeJSON(w, r, http.StatusAccepted, updateResponse{Status: "accepted", UpdateID: res.UpdateID})
}
