package v1alpha1

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/hireloop/apply-planner/internal/service"
	"github.com/hireloop/apply-planner/internal/service/mappers"
)

// (GET /api/v1/jobs)
func (s *ServiceHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := service.JobFilter{
		CompanyToken:    r.URL.Query().Get("company"),
		IncludeInactive: r.URL.Query().Get("include_inactive") == "true",
	}

	jobs, total, err := s.jobSrv.ListJobs(r.Context(), filter)
	if err != nil {
		renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, mappers.JobPostingListToApi(jobs, total))
}
