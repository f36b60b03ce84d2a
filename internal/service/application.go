package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	api "github.com/hireloop/apply-planner/api/v1alpha1"
	"github.com/hireloop/apply-planner/internal/ai"
	"github.com/hireloop/apply-planner/internal/automation"
	"github.com/hireloop/apply-planner/internal/session"
	"github.com/hireloop/apply-planner/internal/store"
	"github.com/hireloop/apply-planner/internal/store/model"
	"github.com/hireloop/apply-planner/pkg/metrics"
)

var verificationCodePattern = regexp.MustCompile(`^[0-9]{8}$`)

// standardFieldKeys maps recognizable form labels to the standard answer
// keys kept in a user's cached responses. Anything not matched here is
// treated as a free-text question.
var standardFieldKeys = map[string]string{
	"first name":       "first_name",
	"last name":        "last_name",
	"full name":        "full_name",
	"email":            "email",
	"email address":    "email",
	"phone":            "phone",
	"phone number":     "phone",
	"location":         "location",
	"city":             "location",
	"linkedin":         "linkedin_url",
	"linkedin profile": "linkedin_url",
	"website":          "website_url",
	"portfolio":        "website_url",
	"github":           "github_url",
}

// SubmitOutcome is the definitive answer to a submit call: the application
// after any transition plus the result kind the caller should report.
type SubmitOutcome struct {
	Application *model.Application
	Result      string
	Message     string
}

// VerifyOutcome reports a verification round. AttemptsLeft and
// ExpiresInSeconds are set only while the session stays alive.
type VerifyOutcome struct {
	Application      *model.Application
	Message          string
	AttemptsLeft     *int
	ExpiresInSeconds *int
}

type ApplicationService struct {
	store       store.Store
	keeper      *session.Keeper
	automator   automation.FormAutomator
	recommender ai.Recommender

	reviewTTL     time.Duration
	attemptCap    int
	collabTimeout time.Duration
}

func NewApplicationService(
	store store.Store,
	keeper *session.Keeper,
	automator automation.FormAutomator,
	recommender ai.Recommender,
	reviewTTL time.Duration,
	attemptCap int,
	collabTimeout time.Duration,
) *ApplicationService {
	return &ApplicationService{
		store:         store,
		keeper:        keeper,
		automator:     automator,
		recommender:   recommender,
		reviewTTL:     reviewTTL,
		attemptCap:    attemptCap,
		collabTimeout: collabTimeout,
	}
}

// Analyze opens a new application for (user, job): extracts the live form,
// seeds recommendations from the user's cached responses and the AI
// recommender, and parks the result in pending_review until the review TTL.
func (s *ApplicationService) Analyze(ctx context.Context, userID string, jobID string, autoSubmit bool) (*model.Application, error) {
	log := zap.S().Named("application_service")

	postings, _, err := s.store.Job().List(ctx, store.NewJobQueryFilter().ByPostingID(jobID).ByActive(true))
	if err != nil {
		return nil, err
	}
	if len(postings) == 0 {
		return nil, NewErrJobNotFound(jobID)
	}
	posting := postings[0]

	// The duplicate guard and the insert share one transaction so two
	// concurrent analyzes for the same job cannot both pass the check.
	txCtx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.Application().FirstNonTerminal(txCtx, userID, posting.CompanyToken, posting.PostingID); err == nil {
		_, _ = store.Rollback(txCtx)
		return nil, NewErrDuplicateApplication(posting.CompanyToken, posting.PostingID)
	} else if !errors.Is(err, store.ErrRecordNotFound) {
		_, _ = store.Rollback(txCtx)
		return nil, err
	}

	app, err := s.store.Application().Create(txCtx, model.Application{
		ID:           uuid.New(),
		UserID:       userID,
		CompanyToken: posting.CompanyToken,
		PostingID:    posting.PostingID,
		JobTitle:     posting.Title,
		CompanyName:  posting.CompanyName,
		JobURL:       posting.AbsoluteURL,
		Status:       model.ApplicationStatusAnalyzing,
		AutoSubmit:   autoSubmit,
	})
	if err != nil {
		_, _ = store.Rollback(txCtx)
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, NewErrDuplicateApplication(posting.CompanyToken, posting.PostingID)
		}
		return nil, err
	}
	if _, err := store.Commit(txCtx); err != nil {
		return nil, err
	}
	metrics.IncreaseApplicationStatusTotal(model.ApplicationStatusAnalyzing)

	collabCtx, cancel := context.WithTimeout(ctx, s.collabTimeout)
	defer cancel()

	analyzed, err := s.automator.AnalyzeForm(collabCtx, posting.AbsoluteURL)
	if err != nil {
		log.Errorw("form analysis failed", "application_id", app.ID, "error", err)
		s.markFailed(ctx, app, model.ApplicationStatusAnalyzing, fmt.Sprintf("form analysis failed: %v", err))
		return nil, NewErrUpstream("form analysis", err)
	}

	fields, err := s.recommendFields(collabCtx, userID, posting, analyzed.Fields)
	if err != nil {
		log.Errorw("field recommendation failed", "application_id", app.ID, "error", err)
		s.markFailed(ctx, app, model.ApplicationStatusAnalyzing, fmt.Sprintf("field recommendation failed: %v", err))
		return nil, NewErrUpstream("field recommendation", err)
	}

	expiresAt := time.Now().UTC().Add(s.reviewTTL)
	app.Status = model.ApplicationStatusPendingReview
	app.FormFingerprint = analyzed.Fingerprint
	app.Fields = model.MakeJSONField(fields)
	app.ExpiresAt = &expiresAt

	updated, err := s.store.Application().UpdateGuarded(ctx, *app, model.ApplicationStatusAnalyzing)
	if err != nil {
		if errors.Is(err, store.ErrConcurrentUpdate) {
			// cancelled while analyzing; the cancel wins
			return nil, NewErrConcurrentUpdate(app.ID)
		}
		return nil, err
	}
	metrics.IncreaseApplicationStatusTotal(model.ApplicationStatusPendingReview)
	log.Infow("application analyzed",
		"application_id", app.ID, "job", posting.PostingID, "fields", len(fields))
	return updated, nil
}

// Get returns the caller's application, lazily expiring a pending_review
// entry whose window has passed.
func (s *ApplicationService) Get(ctx context.Context, id uuid.UUID, userID string) (*model.Application, error) {
	app, err := s.getOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	return s.expireIfStale(ctx, app), nil
}

func (s *ApplicationService) List(ctx context.Context, userID string, status string, page, perPage int) (model.ApplicationList, int64, error) {
	filter := store.NewApplicationQueryFilter().ByUserID(userID)
	if status != "" {
		filter = filter.ByStatus(status)
	}
	opts := store.NewApplicationQueryOptions().WithNewestFirst().WithPagination(page, perPage)
	return s.store.Application().List(ctx, filter, opts)
}

// Submit fills and submits a reviewed application. It is idempotent for
// already submitted applications and refuses stale reviews and drifted
// forms before touching the live site.
func (s *ApplicationService) Submit(ctx context.Context, id uuid.UUID, userID string, overrides map[string]string, saveResponses bool, idempotencyKey *string) (*SubmitOutcome, error) {
	log := zap.S().Named("application_service")

	app, err := s.getOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	switch app.Status {
	case model.ApplicationStatusSubmitted:
		return &SubmitOutcome{Application: app, Result: api.SubmitResultAlreadySubmitted, Message: "application already submitted"}, nil
	case model.ApplicationStatusPendingVerification:
		if idempotencyKey != nil && app.IdempotencyKey != nil && *idempotencyKey == *app.IdempotencyKey {
			return &SubmitOutcome{Application: app, Result: api.SubmitResultPendingVerification, Message: "verification already pending"}, nil
		}
		return nil, NewErrWrongState(app.ID, app.Status, "submit")
	case model.ApplicationStatusPendingReview:
	default:
		return nil, NewErrWrongState(app.ID, app.Status, "submit")
	}

	if app = s.expireIfStale(ctx, app); app.Status == model.ApplicationStatusExpired {
		return nil, NewErrReviewExpired(app.ID)
	}

	collabCtx, cancel := context.WithTimeout(ctx, s.collabTimeout)
	defer cancel()

	liveFingerprint, err := s.automator.Fingerprint(collabCtx, app.JobURL)
	if err != nil {
		log.Errorw("live fingerprint failed", "application_id", app.ID, "error", err)
		failed := s.markFailed(ctx, app, model.ApplicationStatusPendingReview, fmt.Sprintf("form check failed: %v", err))
		return &SubmitOutcome{Application: failed, Result: api.SubmitResultFailed, Message: "could not reach the application form"}, nil
	}
	if liveFingerprint != app.FormFingerprint {
		return nil, NewErrFormChanged(app.ID)
	}

	fields := applyOverrides(app.FormFields(), overrides)
	app.Fields = model.MakeJSONField(fields)
	app.Status = model.ApplicationStatusSubmitting
	app.IdempotencyKey = idempotencyKey

	app, err = s.store.Application().UpdateGuarded(ctx, *app, model.ApplicationStatusPendingReview)
	if err != nil {
		if errors.Is(err, store.ErrConcurrentUpdate) {
			return nil, NewErrConcurrentUpdate(id)
		}
		return nil, err
	}
	metrics.IncreaseApplicationStatusTotal(model.ApplicationStatusSubmitting)

	result, err := s.automator.FillAndSubmit(collabCtx, app.JobURL, toAutomationFields(fields))
	if err != nil {
		log.Errorw("form submission failed", "application_id", app.ID, "error", err)
		failed := s.markFailed(ctx, app, model.ApplicationStatusSubmitting, fmt.Sprintf("form submission failed: %v", err))
		return &SubmitOutcome{Application: failed, Result: api.SubmitResultFailed, Message: "submission failed"}, nil
	}

	if saveResponses {
		if err := s.persistResponses(ctx, userID, fields); err != nil {
			log.Warnw("failed to persist cached responses", "user_id", userID, "error", err)
		}
	}

	if result.VerificationRequired {
		app.Status = model.ApplicationStatusPendingVerification
		updated, err := s.store.Application().UpdateGuarded(ctx, *app, model.ApplicationStatusSubmitting)
		if err != nil {
			// cancel raced the submit; the held page is ours to drop
			go func() {
				if result.Resource != nil {
					_ = result.Resource.Close()
				}
			}()
			if errors.Is(err, store.ErrConcurrentUpdate) {
				return nil, NewErrConcurrentUpdate(id)
			}
			return nil, err
		}
		s.keeper.Store(app.ID.String(), result.Resource, result.Email)
		metrics.IncreaseApplicationStatusTotal(model.ApplicationStatusPendingVerification)
		log.Infow("verification required", "application_id", app.ID, "email", result.Email)
		return &SubmitOutcome{
			Application: updated,
			Result:      api.SubmitResultPendingVerification,
			Message:     verificationMessage(result.Email),
		}, nil
	}

	now := time.Now().UTC()
	app.Status = model.ApplicationStatusSubmitted
	app.SubmittedAt = &now
	updated, err := s.store.Application().UpdateGuarded(ctx, *app, model.ApplicationStatusSubmitting)
	if err != nil {
		if errors.Is(err, store.ErrConcurrentUpdate) {
			return nil, NewErrConcurrentUpdate(id)
		}
		return nil, err
	}
	metrics.IncreaseApplicationStatusTotal(model.ApplicationStatusSubmitted)
	log.Infow("application submitted", "application_id", app.ID)
	return &SubmitOutcome{Application: updated, Result: api.SubmitResultSubmitted, Message: "application submitted"}, nil
}

// Verify plays one emailed code against the held verification session.
// A wrong code keeps the session alive until the attempt cap drains it.
func (s *ApplicationService) Verify(ctx context.Context, id uuid.UUID, userID string, code string) (*VerifyOutcome, error) {
	log := zap.S().Named("application_service")

	if !verificationCodePattern.MatchString(code) {
		return nil, NewErrInvalidVerificationCode()
	}

	app, err := s.getOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if app.Status == model.ApplicationStatusSubmitted {
		return &VerifyOutcome{Application: app, Message: "application already submitted"}, nil
	}
	if app.Status != model.ApplicationStatusPendingVerification {
		return nil, NewErrWrongState(app.ID, app.Status, "verify")
	}

	sess := s.keeper.Get(app.ID.String())
	if sess == nil {
		s.markFailed(ctx, app, model.ApplicationStatusPendingVerification, "verification session expired")
		return nil, NewErrSessionExpired(app.ID)
	}

	collabCtx, cancel := context.WithTimeout(ctx, s.collabTimeout)
	defer cancel()

	verr := s.automator.CompleteVerification(collabCtx, sess.Resource, code)
	switch {
	case verr == nil:
		s.keeper.Remove(app.ID.String())
		now := time.Now().UTC()
		app.Status = model.ApplicationStatusSubmitted
		app.SubmittedAt = &now
		updated, err := s.store.Application().UpdateGuarded(ctx, *app, model.ApplicationStatusPendingVerification)
		if err != nil {
			if errors.Is(err, store.ErrConcurrentUpdate) {
				return nil, NewErrConcurrentUpdate(id)
			}
			return nil, err
		}
		metrics.IncreaseApplicationStatusTotal(model.ApplicationStatusSubmitted)
		log.Infow("verification completed", "application_id", app.ID)
		return &VerifyOutcome{Application: updated, Message: "application submitted"}, nil

	case errors.Is(verr, automation.ErrCodeRejected):
		attempts := s.keeper.RecordFailedAttempt(app.ID.String())
		left := s.attemptCap - attempts
		if left <= 0 {
			// out of attempts; the next verify observes an expired session
			s.keeper.Remove(app.ID.String())
			left = 0
		}
		var expiresIn *int
		if info, ok := s.keeper.Describe(app.ID.String()); ok {
			expiresIn = &info.ExpiresInSeconds
		}
		log.Infow("verification code rejected",
			"application_id", app.ID, "attempts", attempts, "attempts_left", left)
		return &VerifyOutcome{
			Application:      app,
			Message:          "verification code rejected",
			AttemptsLeft:     &left,
			ExpiresInSeconds: expiresIn,
		}, nil

	default:
		log.Errorw("verification failed", "application_id", app.ID, "error", verr)
		s.keeper.Remove(app.ID.String())
		failed := s.markFailed(ctx, app, model.ApplicationStatusPendingVerification, fmt.Sprintf("verification failed: %v", verr))
		return &VerifyOutcome{Application: failed, Message: "verification failed"}, nil
	}
}

// Cancel moves a non-terminal application to cancelled and releases any
// held verification session. Terminal applications are returned unchanged.
func (s *ApplicationService) Cancel(ctx context.Context, id uuid.UUID, userID string) (*model.Application, error) {
	app, err := s.getOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if app.IsTerminal() {
		return app, nil
	}

	s.keeper.Remove(app.ID.String())

	fromStatus := app.Status
	app.Status = model.ApplicationStatusCancelled
	updated, err := s.store.Application().UpdateGuarded(ctx, *app, fromStatus)
	if err != nil {
		if errors.Is(err, store.ErrConcurrentUpdate) {
			// lost the race; report whatever state won
			current, gerr := s.store.Application().Get(ctx, id)
			if gerr != nil {
				return nil, gerr
			}
			if current.IsTerminal() {
				return current, nil
			}
			return nil, NewErrConcurrentUpdate(id)
		}
		return nil, err
	}
	metrics.IncreaseApplicationStatusTotal(model.ApplicationStatusCancelled)
	zap.S().Named("application_service").Infow("application cancelled",
		"application_id", app.ID, "previous_status", fromStatus)
	return updated, nil
}

func (s *ApplicationService) getOwned(ctx context.Context, id uuid.UUID, userID string) (*model.Application, error) {
	app, err := s.store.Application().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrApplicationNotFound(id)
		}
		return nil, err
	}
	if app.UserID != userID {
		return nil, NewErrApplicationForbidden(id)
	}
	return app, nil
}

// expireIfStale moves a pending_review application past its window to
// expired. A lost guarded update means someone else transitioned it first;
// the fresher row wins either way.
func (s *ApplicationService) expireIfStale(ctx context.Context, app *model.Application) *model.Application {
	if app.Status != model.ApplicationStatusPendingReview || app.ExpiresAt == nil {
		return app
	}
	if !time.Now().UTC().After(*app.ExpiresAt) {
		return app
	}

	expired := *app
	expired.Status = model.ApplicationStatusExpired
	updated, err := s.store.Application().UpdateGuarded(ctx, expired, model.ApplicationStatusPendingReview)
	if err != nil {
		if current, gerr := s.store.Application().Get(ctx, app.ID); gerr == nil {
			return current
		}
		return app
	}
	metrics.IncreaseApplicationStatusTotal(model.ApplicationStatusExpired)
	zap.S().Named("application_service").Infow("application review window expired", "application_id", app.ID)
	return updated
}

func (s *ApplicationService) markFailed(ctx context.Context, app *model.Application, fromStatus string, message string) *model.Application {
	failed := *app
	failed.Status = model.ApplicationStatusFailed
	failed.LastError = &message
	updated, err := s.store.Application().UpdateGuarded(ctx, failed, fromStatus)
	if err != nil {
		zap.S().Named("application_service").Errorw("failed to record failure",
			"application_id", app.ID, "from_status", fromStatus, "error", err)
		return &failed
	}
	metrics.IncreaseApplicationStatusTotal(model.ApplicationStatusFailed)
	return updated
}

// recommendFields builds the reviewed field list: cached and profile
// answers first, the AI recommender for whatever remains unanswered.
func (s *ApplicationService) recommendFields(ctx context.Context, userID string, posting model.JobPosting, extracted []automation.Field) ([]model.FormField, error) {
	cached, err := s.store.CachedResponse().Get(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
		return nil, err
	}
	standard := cached.StandardValues()
	custom := cached.CustomAnswers()

	fields := make([]model.FormField, len(extracted))
	var unanswered []automation.Field
	for i, f := range extracted {
		fields[i] = model.FormField{
			FieldID:  f.FieldID,
			Selector: f.Selector,
			Label:    f.Label,
			Type:     f.Type,
			Required: f.Required,
			Options:  f.Options,
		}

		if key, ok := standardFieldKeys[normalizeLabel(f.Label)]; ok {
			if value, ok := standard[key]; ok {
				fields[i].RecommendedValue = value
				fields[i].Source = api.FieldSourceProfile
				fields[i].Confidence = 1.0
				continue
			}
		}
		if answer, ok := custom[normalizeLabel(f.Label)]; ok {
			fields[i].RecommendedValue = answer.Answer
			fields[i].Source = api.FieldSourceCached
			fields[i].Confidence = 0.9
			continue
		}
		fields[i].Source = api.FieldSourceManual
		unanswered = append(unanswered, f)
	}

	if len(unanswered) == 0 {
		return fields, nil
	}

	seed := ai.Seed{Standard: standard, Custom: make(map[string]string, len(custom))}
	for question, answer := range custom {
		seed.Custom[question] = answer.Answer
	}
	recs, err := s.recommender.RecommendFields(ctx, jobContext(posting), seed, unanswered)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]ai.FieldRecommendation, len(recs))
	for _, r := range recs {
		byID[r.FieldID] = r
	}
	for i := range fields {
		if fields[i].Source != api.FieldSourceManual {
			continue
		}
		if rec, ok := byID[fields[i].FieldID]; ok && rec.Value != "" {
			fields[i].RecommendedValue = rec.Value
			fields[i].Source = api.FieldSourceAI
			fields[i].Confidence = rec.Confidence
		}
	}
	return fields, nil
}

// persistResponses folds submitted answers back into the user's cached
// responses: standard keys overwrite, free-text answers track usage.
func (s *ApplicationService) persistResponses(ctx context.Context, userID string, fields []model.FormField) error {
	cached, err := s.store.CachedResponse().Get(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
		return err
	}

	standard := map[string]string{}
	for k, v := range cached.StandardValues() {
		standard[k] = v
	}
	custom := map[string]model.CachedAnswer{}
	for k, v := range cached.CustomAnswers() {
		custom[k] = v
	}

	now := time.Now().UTC()
	for _, f := range fields {
		value := finalValue(f)
		if value == "" || f.Type == api.FieldTypeFile {
			continue
		}
		if key, ok := standardFieldKeys[normalizeLabel(f.Label)]; ok {
			standard[key] = value
			continue
		}
		question := normalizeLabel(f.Label)
		entry := custom[question]
		entry.Question = f.Label
		entry.Answer = value
		entry.LastUsed = now
		entry.UseCount++
		custom[question] = entry
	}

	_, err = s.store.CachedResponse().Upsert(ctx, model.CachedResponse{
		UserID:   userID,
		Standard: model.MakeJSONField(standard),
		Custom:   model.MakeJSONField(custom),
	})
	return err
}

func applyOverrides(fields []model.FormField, overrides map[string]string) []model.FormField {
	out := make([]model.FormField, len(fields))
	copy(out, fields)
	for i := range out {
		if value, ok := overrides[out[i].FieldID]; ok {
			out[i].FinalValue = value
			out[i].Source = api.FieldSourceManual
			out[i].Confidence = 1.0
			continue
		}
		out[i].FinalValue = out[i].RecommendedValue
	}
	return out
}

func toAutomationFields(fields []model.FormField) []automation.Field {
	out := make([]automation.Field, len(fields))
	for i, f := range fields {
		out[i] = automation.Field{
			FieldID:  f.FieldID,
			Selector: f.Selector,
			Label:    f.Label,
			Type:     f.Type,
			Required: f.Required,
			Options:  f.Options,
			Value:    finalValue(f),
		}
	}
	return out
}

func finalValue(f model.FormField) string {
	if f.FinalValue != "" {
		return f.FinalValue
	}
	return f.RecommendedValue
}

func jobContext(posting model.JobPosting) ai.JobContext {
	jc := ai.JobContext{
		Title:       posting.Title,
		CompanyName: posting.CompanyName,
		Description: posting.DescriptionText,
	}
	if posting.Location != nil {
		jc.Location = *posting.Location
	}
	if posting.Department != nil {
		jc.Department = *posting.Department
	}
	return jc
}

func normalizeLabel(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = strings.TrimRight(s, "*:? ")
	return strings.TrimSpace(s)
}

func verificationMessage(email string) string {
	if email == "" {
		return "a verification code was sent to your email"
	}
	return fmt.Sprintf("a verification code was sent to %s", email)
}
