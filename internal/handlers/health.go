package handlers

import (
	"net/http"

	"github.com/go-chi/render"

	api "github.com/hireloop/apply-planner/api/v1alpha1"
	"github.com/hireloop/apply-planner/internal/session"
	"github.com/hireloop/apply-planner/internal/store"
)

// HealthHandler reports process liveness plus database reachability and the
// number of held verification sessions.
type HealthHandler struct {
	store  store.Store
	keeper *session.Keeper
}

func NewHealthHandler(store store.Store, keeper *session.Keeper) *HealthHandler {
	return &HealthHandler{store: store, keeper: keeper}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := api.Health{
		Status:   "ok",
		Database: "ok",
		Sessions: h.keeper.Count(),
	}

	if err := h.store.Ping(); err != nil {
		resp.Status = "degraded"
		resp.Database = "unreachable"
		render.Status(r, http.StatusServiceUnavailable)
	}

	render.JSON(w, r, resp)
}
