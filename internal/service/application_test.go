package service_test

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/hireloop/apply-planner/internal/ai"
	"github.com/hireloop/apply-planner/internal/automation"
	"github.com/hireloop/apply-planner/internal/config"
	"github.com/hireloop/apply-planner/internal/service"
	"github.com/hireloop/apply-planner/internal/session"
	"github.com/hireloop/apply-planner/internal/store"
	"github.com/hireloop/apply-planner/internal/store/model"
)

const correctCode = "12345678"

type fakeResource struct {
	closed bool
}

func (f *fakeResource) Close() error {
	f.closed = true
	return nil
}

// fakeAutomator scripts the live-form collaborator.
type fakeAutomator struct {
	fields          []automation.Field
	analyzeErr      error
	liveFingerprint string
	fingerprintErr  error

	verificationRequired bool
	submitErr            error
	submitResource       *fakeResource
	submittedFields      []automation.Field

	verifyErr error
}

func (f *fakeAutomator) AnalyzeForm(ctx context.Context, jobURL string) (*automation.AnalyzedForm, error) {
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return &automation.AnalyzedForm{
		Fields:      f.fields,
		Fingerprint: automation.ComputeFingerprint(f.fields),
	}, nil
}

func (f *fakeAutomator) Fingerprint(ctx context.Context, jobURL string) (string, error) {
	if f.fingerprintErr != nil {
		return "", f.fingerprintErr
	}
	if f.liveFingerprint != "" {
		return f.liveFingerprint, nil
	}
	return automation.ComputeFingerprint(f.fields), nil
}

func (f *fakeAutomator) FillAndSubmit(ctx context.Context, jobURL string, fields []automation.Field) (*automation.SubmitResult, error) {
	f.submittedFields = fields
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if f.verificationRequired {
		f.submitResource = &fakeResource{}
		return &automation.SubmitResult{
			VerificationRequired: true,
			Resource:             f.submitResource,
			Email:                "a***@example.com",
		}, nil
	}
	return &automation.SubmitResult{}, nil
}

func (f *fakeAutomator) CompleteVerification(ctx context.Context, res automation.Resource, code string) error {
	if f.verifyErr != nil {
		return f.verifyErr
	}
	if code != correctCode {
		return automation.ErrCodeRejected
	}
	return nil
}

type fakeRecommender struct {
	err      error
	lastSeed ai.Seed
}

func (f *fakeRecommender) RecommendFields(ctx context.Context, job ai.JobContext, seed ai.Seed, fields []automation.Field) ([]ai.FieldRecommendation, error) {
	f.lastSeed = seed
	if f.err != nil {
		return nil, f.err
	}
	recs := make([]ai.FieldRecommendation, len(fields))
	for i, field := range fields {
		recs[i] = ai.FieldRecommendation{FieldID: field.FieldID, Value: "ai:" + field.FieldID, Confidence: 0.8}
	}
	return recs, nil
}

func defaultFields() []automation.Field {
	return []automation.Field{
		{FieldID: "first_name", Selector: "#first_name", Label: "First Name", Type: "text", Required: true},
		{FieldID: "email", Selector: "#email", Label: "Email", Type: "text", Required: true},
		{FieldID: "cover", Selector: "#cover", Label: "Why do you want to work here?", Type: "textarea"},
	}
}

var _ = Describe("application service", Ordered, func() {
	var (
		s           store.Store
		gormdb      *gorm.DB
		keeper      *session.Keeper
		automator   *fakeAutomator
		recommender *fakeRecommender
		svc         *service.ApplicationService
	)

	const (
		userID     = "user-1"
		attemptCap = 2
	)

	seedJob := func() {
		_, err := s.Job().Upsert(context.TODO(), model.JobPosting{
			CompanyToken: "stripe",
			PostingID:    "100",
			CompanyName:  "Stripe",
			Title:        "Backend Engineer",
			AbsoluteURL:  "https://boards.greenhouse.io/stripe/jobs/100",
			Active:       true,
		})
		Expect(err).To(BeNil())
	}

	analyzed := func() *model.Application {
		app, err := svc.Analyze(context.TODO(), userID, "100", false)
		Expect(err).To(BeNil())
		return app
	}

	submittedPendingVerification := func() *model.Application {
		automator.verificationRequired = true
		app := analyzed()
		outcome, err := svc.Submit(context.TODO(), app.ID, userID, nil, false, nil)
		Expect(err).To(BeNil())
		Expect(outcome.Application.Status).To(Equal(model.ApplicationStatusPendingVerification))
		return outcome.Application
	}

	BeforeAll(func() {
		db, err := store.InitDB(config.NewDefault())
		Expect(err).To(BeNil())

		s = store.NewStore(db)
		gormdb = db
		Expect(s.InitialMigration()).To(BeNil())
	})

	AfterAll(func() {
		s.Close()
	})

	BeforeEach(func() {
		keeper = session.NewKeeper(time.Minute)
		automator = &fakeAutomator{fields: defaultFields()}
		recommender = &fakeRecommender{}
		svc = service.NewApplicationService(s, keeper, automator, recommender,
			30*time.Minute, attemptCap, time.Minute)
		seedJob()
	})

	AfterEach(func() {
		keeper.Shutdown()
		gormdb.Exec("DELETE from applications;")
		gormdb.Exec("DELETE from job_postings;")
		gormdb.Exec("DELETE from cached_responses;")
	})

	Context("analyze", func() {
		It("creates a pending_review application with recommended fields", func() {
			app := analyzed()

			Expect(app.Status).To(Equal(model.ApplicationStatusPendingReview))
			Expect(app.FormFingerprint).NotTo(BeEmpty())
			Expect(app.ExpiresAt).NotTo(BeNil())
			Expect(app.ExpiresAt.After(time.Now().UTC())).To(BeTrue())

			fields := app.FormFields()
			Expect(fields).To(HaveLen(3))
			Expect(fields[0].Source).To(Equal("ai"))
			Expect(fields[0].RecommendedValue).To(Equal("ai:first_name"))
			Expect(fields[0].Confidence).To(BeNumerically("~", 0.8, 1e-9))
		})

		It("prefers the user's cached answers over the recommender", func() {
			_, err := s.CachedResponse().Upsert(context.TODO(), model.CachedResponse{
				UserID:   userID,
				Standard: model.MakeJSONField(map[string]string{"email": "ada@example.com"}),
				Custom: model.MakeJSONField(map[string]model.CachedAnswer{
					"why do you want to work here": {Question: "Why do you want to work here?", Answer: "Saved answer"},
				}),
			})
			Expect(err).To(BeNil())

			fields := analyzed().FormFields()

			Expect(fields[1].RecommendedValue).To(Equal("ada@example.com"))
			Expect(fields[1].Source).To(Equal("profile"))
			Expect(fields[2].RecommendedValue).To(Equal("Saved answer"))
			Expect(fields[2].Source).To(Equal("cached"))
			// the unanswered field still goes to the recommender
			Expect(fields[0].Source).To(Equal("ai"))

			// and the prior answers ride along as its seed
			Expect(recommender.lastSeed.Standard).To(HaveKeyWithValue("email", "ada@example.com"))
			Expect(recommender.lastSeed.Custom).To(HaveKeyWithValue("why do you want to work here", "Saved answer"))
		})

		It("rejects an unknown job", func() {
			_, err := svc.Analyze(context.TODO(), userID, "missing", false)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		})

		It("rejects an inactive job", func() {
			_, err := s.Job().DeactivateMissing(context.TODO(), "stripe", nil)
			Expect(err).To(BeNil())

			_, err = svc.Analyze(context.TODO(), userID, "100", false)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		})

		It("refuses a second in-flight application for the same job", func() {
			analyzed()

			_, err := svc.Analyze(context.TODO(), userID, "100", false)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrConflict{}))
		})

		It("allows a new application once the previous one is terminal", func() {
			app := analyzed()
			_, err := svc.Cancel(context.TODO(), app.ID, userID)
			Expect(err).To(BeNil())

			analyzed()
		})

		It("marks the application failed when form analysis fails", func() {
			automator.analyzeErr = errors.New("page did not load")

			_, err := svc.Analyze(context.TODO(), userID, "100", false)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrUpstream{}))

			apps, _, err := svc.List(context.TODO(), userID, model.ApplicationStatusFailed, 1, 10)
			Expect(err).To(BeNil())
			Expect(apps).To(HaveLen(1))
			Expect(*apps[0].LastError).To(ContainSubstring("page did not load"))
		})
	})

	Context("get", func() {
		It("rejects another user's application", func() {
			app := analyzed()

			_, err := svc.Get(context.TODO(), app.ID, "someone-else")
			Expect(err).To(BeAssignableToTypeOf(&service.ErrForbidden{}))
		})

		It("returns not found for an unknown id", func() {
			_, err := svc.Get(context.TODO(), uuid.New(), userID)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		})

		It("lazily expires a stale pending_review application", func() {
			app := analyzed()

			past := time.Now().UTC().Add(-time.Minute)
			app.ExpiresAt = &past
			_, err := s.Application().Update(context.TODO(), *app)
			Expect(err).To(BeNil())

			got, err := svc.Get(context.TODO(), app.ID, userID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.ApplicationStatusExpired))
		})
	})

	Context("submit", func() {
		It("submits a reviewed application", func() {
			app := analyzed()

			outcome, err := svc.Submit(context.TODO(), app.ID, userID, nil, false, nil)
			Expect(err).To(BeNil())
			Expect(outcome.Result).To(Equal("submitted"))
			Expect(outcome.Application.Status).To(Equal(model.ApplicationStatusSubmitted))
			Expect(outcome.Application.SubmittedAt).NotTo(BeNil())
		})

		It("applies overrides before filling the form", func() {
			app := analyzed()

			outcome, err := svc.Submit(context.TODO(), app.ID, userID,
				map[string]string{"first_name": "Ada"}, false, nil)
			Expect(err).To(BeNil())
			Expect(outcome.Result).To(Equal("submitted"))

			Expect(automator.submittedFields[0].Value).To(Equal("Ada"))
			Expect(automator.submittedFields[1].Value).To(Equal("ai:email"))

			fields := outcome.Application.FormFields()
			Expect(fields[0].FinalValue).To(Equal("Ada"))
			Expect(fields[0].Source).To(Equal("manual"))
		})

		It("persists responses for later analyses when asked to", func() {
			app := analyzed()

			_, err := svc.Submit(context.TODO(), app.ID, userID,
				map[string]string{"email": "ada@example.com", "cover": "My answer"}, true, nil)
			Expect(err).To(BeNil())

			cached, err := s.CachedResponse().Get(context.TODO(), userID)
			Expect(err).To(BeNil())
			Expect(cached.StandardValues()).To(HaveKeyWithValue("email", "ada@example.com"))
			Expect(cached.CustomAnswers()["why do you want to work here"].Answer).To(Equal("My answer"))
			Expect(cached.CustomAnswers()["why do you want to work here"].UseCount).To(Equal(1))
		})

		It("is idempotent once submitted", func() {
			app := analyzed()
			_, err := svc.Submit(context.TODO(), app.ID, userID, nil, false, nil)
			Expect(err).To(BeNil())

			outcome, err := svc.Submit(context.TODO(), app.ID, userID, nil, false, nil)
			Expect(err).To(BeNil())
			Expect(outcome.Result).To(Equal("already_submitted"))
		})

		It("refuses a stale review window", func() {
			app := analyzed()
			past := time.Now().UTC().Add(-time.Minute)
			app.ExpiresAt = &past
			_, err := s.Application().Update(context.TODO(), *app)
			Expect(err).To(BeNil())

			_, err = svc.Submit(context.TODO(), app.ID, userID, nil, false, nil)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrExpired{}))

			got, err := svc.Get(context.TODO(), app.ID, userID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.ApplicationStatusExpired))
		})

		It("refuses submission when the form drifted since analysis", func() {
			app := analyzed()
			automator.liveFingerprint = "different"

			_, err := svc.Submit(context.TODO(), app.ID, userID, nil, false, nil)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrFormChanged{}))

			// the application stays reviewable
			got, err := svc.Get(context.TODO(), app.ID, userID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.ApplicationStatusPendingReview))
		})

		It("refuses a cancelled application", func() {
			app := analyzed()
			_, err := svc.Cancel(context.TODO(), app.ID, userID)
			Expect(err).To(BeNil())

			_, err = svc.Submit(context.TODO(), app.ID, userID, nil, false, nil)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrConflict{}))
		})

		It("records a failed submission and reports it without an error", func() {
			app := analyzed()
			automator.submitErr = errors.New("submit button missing")

			outcome, err := svc.Submit(context.TODO(), app.ID, userID, nil, false, nil)
			Expect(err).To(BeNil())
			Expect(outcome.Result).To(Equal("failed"))
			Expect(outcome.Application.Status).To(Equal(model.ApplicationStatusFailed))
			Expect(*outcome.Application.LastError).To(ContainSubstring("submit button missing"))
		})

		It("hands the live resource to the session keeper when verification is required", func() {
			app := submittedPendingVerification()

			Expect(keeper.Count()).To(Equal(1))
			sess := keeper.Get(app.ID.String())
			Expect(sess).NotTo(BeNil())
			Expect(sess.Email).To(Equal("a***@example.com"))
		})
	})

	Context("verify", func() {
		It("validates the code shape first", func() {
			app := submittedPendingVerification()

			for _, bad := range []string{"", "1234", "123456789", "abcdefgh", "1234567a"} {
				_, err := svc.Verify(context.TODO(), app.ID, userID, bad)
				Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))
			}
		})

		It("submits on the correct code and removes the session", func() {
			app := submittedPendingVerification()

			outcome, err := svc.Verify(context.TODO(), app.ID, userID, correctCode)
			Expect(err).To(BeNil())
			Expect(outcome.Application.Status).To(Equal(model.ApplicationStatusSubmitted))
			Expect(outcome.Application.SubmittedAt).NotTo(BeNil())
			Expect(keeper.Count()).To(Equal(0))
			Expect(automator.submitResource.closed).To(BeTrue())
		})

		It("keeps the session alive on a wrong code", func() {
			app := submittedPendingVerification()

			outcome, err := svc.Verify(context.TODO(), app.ID, userID, "00000000")
			Expect(err).To(BeNil())
			Expect(outcome.Application.Status).To(Equal(model.ApplicationStatusPendingVerification))
			Expect(outcome.AttemptsLeft).NotTo(BeNil())
			Expect(*outcome.AttemptsLeft).To(Equal(attemptCap - 1))
			Expect(keeper.Count()).To(Equal(1))
		})

		It("releases the session when the attempt cap is reached", func() {
			app := submittedPendingVerification()

			for i := 0; i < attemptCap; i++ {
				outcome, err := svc.Verify(context.TODO(), app.ID, userID, "00000000")
				Expect(err).To(BeNil())
				Expect(*outcome.AttemptsLeft).To(Equal(attemptCap - i - 1))
			}
			Expect(keeper.Count()).To(Equal(0))

			// with the session gone the next attempt reports expiry
			_, err := svc.Verify(context.TODO(), app.ID, userID, correctCode)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrExpired{}))
		})

		It("fails the application when the session is gone", func() {
			app := submittedPendingVerification()
			keeper.Remove(app.ID.String())

			_, err := svc.Verify(context.TODO(), app.ID, userID, correctCode)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrExpired{}))

			got, err := svc.Get(context.TODO(), app.ID, userID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.ApplicationStatusFailed))
		})

		It("refuses verification in the wrong state", func() {
			app := analyzed()

			_, err := svc.Verify(context.TODO(), app.ID, userID, correctCode)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrConflict{}))
		})

		It("fails the application on a collaborator error", func() {
			app := submittedPendingVerification()
			automator.verifyErr = errors.New("page crashed")

			outcome, err := svc.Verify(context.TODO(), app.ID, userID, correctCode)
			Expect(err).To(BeNil())
			Expect(outcome.Application.Status).To(Equal(model.ApplicationStatusFailed))
			Expect(keeper.Count()).To(Equal(0))
		})
	})

	Context("cancel", func() {
		It("cancels a pending_review application", func() {
			app := analyzed()

			cancelled, err := svc.Cancel(context.TODO(), app.ID, userID)
			Expect(err).To(BeNil())
			Expect(cancelled.Status).To(Equal(model.ApplicationStatusCancelled))
		})

		It("is idempotent on terminal applications", func() {
			app := analyzed()
			_, err := svc.Cancel(context.TODO(), app.ID, userID)
			Expect(err).To(BeNil())

			again, err := svc.Cancel(context.TODO(), app.ID, userID)
			Expect(err).To(BeNil())
			Expect(again.Status).To(Equal(model.ApplicationStatusCancelled))
		})

		It("releases a held verification session", func() {
			app := submittedPendingVerification()

			cancelled, err := svc.Cancel(context.TODO(), app.ID, userID)
			Expect(err).To(BeNil())
			Expect(cancelled.Status).To(Equal(model.ApplicationStatusCancelled))
			Expect(keeper.Count()).To(Equal(0))
			Expect(automator.submitResource.closed).To(BeTrue())
		})

		It("rejects another user's application", func() {
			app := analyzed()

			_, err := svc.Cancel(context.TODO(), app.ID, "someone-else")
			Expect(err).To(BeAssignableToTypeOf(&service.ErrForbidden{}))
		})
	})

	Context("list", func() {
		It("pages the caller's applications newest first", func() {
			app := analyzed()
			_, err := svc.Cancel(context.TODO(), app.ID, userID)
			Expect(err).To(BeNil())
			analyzed()

			apps, total, err := svc.List(context.TODO(), userID, "", 1, 10)
			Expect(err).To(BeNil())
			Expect(total).To(Equal(int64(2)))
			Expect(apps).To(HaveLen(2))

			apps, total, err = svc.List(context.TODO(), userID, model.ApplicationStatusCancelled, 1, 10)
			Expect(err).To(BeNil())
			Expect(total).To(Equal(int64(1)))
			Expect(apps[0].Status).To(Equal(model.ApplicationStatusCancelled))
		})
	})
})
