package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/zeromicro/go-zero/rest/httpx"

	service "github.com/okian/unirank/internal/app"
	"github.com/okian/unirank/internal/domain/types"
)

// PlatformDependencies defines the interface for platform operations.
type PlatformDependencies interface {
	RegisterPlatform(ctx context.Context, p service.PlatformSpec) error
	Platforms(ctx context.Context) []types.PlatformView
}

// PlatformsHandler handles platform registration and listing.
type PlatformsHandler struct {
	deps PlatformDependencies
}

// NewPlatformsHandler creates a new platforms handler.
func NewPlatformsHandler(deps PlatformDependencies) *PlatformsHandler {
	return &PlatformsHandler{deps: deps}
}

type platformRequest struct {
	Name          string   `json:"name"`
	MaxRating     float64  `json:"max_rating,range=(0:]"`
	Difficulty    *float64 `json:"difficulty,optional"`
	Participation *float64 `json:"participation,optional"`
}

func (p *platformRequest) validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return errors.New("name is required")
	}
	if (p.Difficulty == nil) != (p.Participation == nil) {
		return errors.New("difficulty and participation must be given together")
	}
	return nil
}

func (p *platformRequest) spec() service.PlatformSpec {
	s := service.PlatformSpec{Name: p.Name, MaxRating: p.MaxRating}
	if p.Difficulty != nil {
		s.Calibration = &service.Calibration{Difficulty: *p.Difficulty, Participation: *p.Participation}
	}
	return s
}

// HandlePostPlatform handles POST /platforms requests.
func (h *PlatformsHandler) HandlePostPlatform(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_platform"
	var req platformRequest
	if err := httpx.Parse(r, &req); err != nil {
		writeFailure(w, r, badRequest(op, err))
		return
	}
	if err := req.validate(); err != nil {
		writeFailure(w, r, badRequest(op, err))
		return
	}
	if err := h.deps.RegisterPlatform(r.Context(), req.spec()); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]string{"status": "created", "name": req.Name})
}

// HandleListPlatforms handles GET /platforms requests.
func (h *PlatformsHandler) HandleListPlatforms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.deps.Platforms(r.Context()))
}
