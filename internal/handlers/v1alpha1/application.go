package v1alpha1

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	api "github.com/hireloop/apply-planner/api/v1alpha1"
	"github.com/hireloop/apply-planner/internal/auth"
	"github.com/hireloop/apply-planner/internal/service/mappers"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// (POST /api/v1/applications/analyze)
func (s *ServiceHandler) AnalyzeApplication(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	var req api.AnalyzeRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderBadRequest(w, r, "invalid request body")
		return
	}
	if req.JobID == "" {
		renderBadRequest(w, r, "job_id is required")
		return
	}

	app, err := s.appSrv.Analyze(r.Context(), user.ID, req.JobID, req.AutoSubmit)
	if err != nil {
		renderServiceError(w, r, err)
		return
	}

	resp := api.AnalyzeResponse{
		ApplicationID: app.ID.String(),
		Status:        app.Status,
		Job: api.JobInfo{
			ID:          app.PostingID,
			Title:       app.JobTitle,
			CompanyName: app.CompanyName,
			URL:         app.JobURL,
		},
		Fields:          mappers.FormFieldsToApi(app.FormFields()),
		FormFingerprint: app.FormFingerprint,
	}
	if app.ExpiresAt != nil {
		resp.ExpiresAt = *app.ExpiresAt
		resp.TTLSeconds = int(time.Until(*app.ExpiresAt).Seconds())
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

// (GET /api/v1/applications)
func (s *ServiceHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	perPage := queryInt(r, "per_page", defaultPerPage)
	if perPage < 1 || perPage > maxPerPage {
		perPage = defaultPerPage
	}

	apps, total, err := s.appSrv.List(r.Context(), user.ID, r.URL.Query().Get("status"), page, perPage)
	if err != nil {
		renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, mappers.ApplicationListToApi(apps, total, page, perPage))
}

// (GET /api/v1/applications/{id})
func (s *ServiceHandler) GetApplication(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		renderBadRequest(w, r, "invalid application id")
		return
	}

	app, err := s.appSrv.Get(r.Context(), id, user.ID)
	if err != nil {
		renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, mappers.ApplicationToApi(*app))
}

// (POST /api/v1/applications/{id}/submit)
func (s *ServiceHandler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		renderBadRequest(w, r, "invalid application id")
		return
	}

	// an empty body means no overrides
	var req api.SubmitRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		renderBadRequest(w, r, "invalid request body")
		return
	}

	outcome, err := s.appSrv.Submit(r.Context(), id, user.ID, req.FieldOverrides, req.SaveResponses, req.IdempotencyKey)
	if err != nil {
		renderServiceError(w, r, err)
		return
	}

	resp := api.SubmitResponse{
		ApplicationID: outcome.Application.ID.String(),
		Status:        outcome.Application.Status,
		Result:        outcome.Result,
		Message:       outcome.Message,
		SubmittedAt:   outcome.Application.SubmittedAt,
	}
	if outcome.Application.LastError != nil {
		resp.Error = *outcome.Application.LastError
	}
	render.JSON(w, r, resp)
}

// (POST /api/v1/applications/{id}/verify)
func (s *ServiceHandler) VerifyApplication(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		renderBadRequest(w, r, "invalid application id")
		return
	}

	var req api.VerifyRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderBadRequest(w, r, "invalid request body")
		return
	}

	outcome, err := s.appSrv.Verify(r.Context(), id, user.ID, req.Code)
	if err != nil {
		renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, api.VerifyResponse{
		ApplicationID:    outcome.Application.ID.String(),
		Status:           outcome.Application.Status,
		Message:          outcome.Message,
		SubmittedAt:      outcome.Application.SubmittedAt,
		AttemptsLeft:     outcome.AttemptsLeft,
		ExpiresInSeconds: outcome.ExpiresInSeconds,
	})
}

// (DELETE /api/v1/applications/{id})
func (s *ServiceHandler) CancelApplication(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		renderBadRequest(w, r, "invalid application id")
		return
	}

	app, err := s.appSrv.Cancel(r.Context(), id, user.ID)
	if err != nil {
		renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, mappers.ApplicationToApi(*app))
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
