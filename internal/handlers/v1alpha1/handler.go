package v1alpha1

import (
	"net/http"

	"github.com/go-chi/render"

	api "github.com/hireloop/apply-planner/api/v1alpha1"
	"github.com/hireloop/apply-planner/internal/service"
)

// ServiceHandler exposes the application lifecycle and the job catalog over
// HTTP. Identity is taken from the request context, installed upstream by
// the authenticator middleware.
type ServiceHandler struct {
	appSrv *service.ApplicationService
	jobSrv *service.JobService
}

func NewServiceHandler(appService *service.ApplicationService, jobService *service.JobService) *ServiceHandler {
	return &ServiceHandler{
		appSrv: appService,
		jobSrv: jobService,
	}
}

// renderServiceError translates the service error taxonomy to HTTP. Unknown
// errors become opaque 500s so internals never leak to clients.
func renderServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	message := err.Error()

	switch err.(type) {
	case *service.ErrValidation:
		status = http.StatusBadRequest
	case *service.ErrForbidden:
		status = http.StatusForbidden
	case *service.ErrResourceNotFound:
		status = http.StatusNotFound
	case *service.ErrConflict:
		status = http.StatusConflict
	case *service.ErrExpired:
		status = http.StatusGone
	case *service.ErrFormChanged:
		status = http.StatusUnprocessableEntity
	case *service.ErrUpstream:
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
		message = "internal server error"
	}

	render.Status(r, status)
	render.JSON(w, r, api.Error{Message: message})
}

func renderBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, api.Error{Message: message})
}
