package mappers

import (
	api "github.com/hireloop/apply-planner/api/v1alpha1"
	"github.com/hireloop/apply-planner/internal/store/model"
)

func ApplicationToApi(app model.Application) api.Application {
	out := api.Application{
		ApplicationID: app.ID.String(),
		UserID:        app.UserID,
		JobID:         app.PostingID,
		JobTitle:      app.JobTitle,
		CompanyName:   app.CompanyName,
		JobURL:        app.JobURL,
		Status:        app.Status,
		AutoSubmit:    app.AutoSubmit,
		Fields:        FormFieldsToApi(app.FormFields()),
		CreatedAt:     app.CreatedAt,
		UpdatedAt:     app.UpdatedAt,
		SubmittedAt:   app.SubmittedAt,
		ExpiresAt:     app.ExpiresAt,
	}
	if app.LastError != nil {
		out.Error = *app.LastError
	}
	return out
}

func ApplicationListToApi(apps model.ApplicationList, total int64, page, perPage int) api.ApplicationList {
	items := make([]api.Application, len(apps))
	for i, app := range apps {
		items[i] = ApplicationToApi(app)
	}
	return api.ApplicationList{
		Applications: items,
		Total:        total,
		Page:         page,
		PerPage:      perPage,
	}
}

func FormFieldsToApi(fields []model.FormField) []api.FormField {
	if fields == nil {
		return nil
	}
	out := make([]api.FormField, len(fields))
	for i, f := range fields {
		out[i] = api.FormField{
			FieldID:          f.FieldID,
			Label:            f.Label,
			Type:             f.Type,
			Required:         f.Required,
			Options:          f.Options,
			RecommendedValue: f.RecommendedValue,
			FinalValue:       f.FinalValue,
			Source:           f.Source,
			Confidence:       f.Confidence,
		}
	}
	return out
}

func JobPostingToApi(posting model.JobPosting) api.JobPosting {
	updatedAt := posting.UpstreamUpdatedAt
	return api.JobPosting{
		PostingID:    posting.PostingID,
		CompanyToken: posting.CompanyToken,
		CompanyName:  posting.CompanyName,
		Title:        posting.Title,
		Location:     posting.Location,
		Department:   posting.Department,
		URL:          posting.AbsoluteURL,
		UpdatedAt:    &updatedAt,
		Active:       posting.Active,
	}
}

func JobPostingListToApi(postings model.JobPostingList, total int64) api.JobPostingList {
	items := make([]api.JobPosting, len(postings))
	for i, p := range postings {
		items[i] = JobPostingToApi(p)
	}
	return api.JobPostingList{Jobs: items, Total: total}
}
