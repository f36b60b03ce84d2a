package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/hireloop/apply-planner/internal/config"
	"github.com/hireloop/apply-planner/internal/store"
	"github.com/hireloop/apply-planner/internal/store/model"
)

func newTestPosting(company, postingID, title string) model.JobPosting {
	return model.JobPosting{
		CompanyToken:      company,
		PostingID:         postingID,
		CompanyName:       company,
		Title:             title,
		AbsoluteURL:       "https://boards.greenhouse.io/" + company + "/jobs/" + postingID,
		UpstreamUpdatedAt: time.Now().UTC(),
		Active:            true,
	}
}

var _ = Describe("job store", Ordered, func() {
	var (
		s      store.Store
		gormdb *gorm.DB
	)

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

	AfterEach(func() {
		gormdb.Exec("DELETE from job_postings;")
	})

	Context("upsert", func() {
		It("inserts a new posting", func() {
			posting, err := s.Job().Upsert(context.TODO(), newTestPosting("stripe", "100", "Backend Engineer"))
			Expect(err).To(BeNil())
			Expect(posting.Title).To(Equal("Backend Engineer"))

			got, err := s.Job().Get(context.TODO(), "stripe", "100")
			Expect(err).To(BeNil())
			Expect(got.Active).To(BeTrue())
		})

		It("updates an existing posting in place", func() {
			_, err := s.Job().Upsert(context.TODO(), newTestPosting("stripe", "100", "Backend Engineer"))
			Expect(err).To(BeNil())

			updated := newTestPosting("stripe", "100", "Senior Backend Engineer")
			_, err = s.Job().Upsert(context.TODO(), updated)
			Expect(err).To(BeNil())

			got, err := s.Job().Get(context.TODO(), "stripe", "100")
			Expect(err).To(BeNil())
			Expect(got.Title).To(Equal("Senior Backend Engineer"))

			count := 0
			Expect(gormdb.Raw("SELECT COUNT(*) from job_postings;").Scan(&count).Error).To(BeNil())
			Expect(count).To(Equal(1))
		})

		It("keeps postings from different companies apart", func() {
			_, err := s.Job().Upsert(context.TODO(), newTestPosting("stripe", "100", "Backend Engineer"))
			Expect(err).To(BeNil())
			_, err = s.Job().Upsert(context.TODO(), newTestPosting("airbnb", "100", "Data Engineer"))
			Expect(err).To(BeNil())

			got, err := s.Job().Get(context.TODO(), "airbnb", "100")
			Expect(err).To(BeNil())
			Expect(got.Title).To(Equal("Data Engineer"))
		})
	})

	Context("get", func() {
		It("returns ErrRecordNotFound for unknown postings", func() {
			_, err := s.Job().Get(context.TODO(), "stripe", "missing")
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("list", func() {
		It("filters by company and active flag", func() {
			_, err := s.Job().Upsert(context.TODO(), newTestPosting("stripe", "100", "Backend Engineer"))
			Expect(err).To(BeNil())

			inactive := newTestPosting("stripe", "101", "Old Role")
			inactive.Active = false
			_, err = s.Job().Upsert(context.TODO(), inactive)
			Expect(err).To(BeNil())

			_, err = s.Job().Upsert(context.TODO(), newTestPosting("airbnb", "200", "Data Engineer"))
			Expect(err).To(BeNil())

			jobs, total, err := s.Job().List(context.TODO(), store.NewJobQueryFilter().ByCompanyToken("stripe").ByActive(true))
			Expect(err).To(BeNil())
			Expect(total).To(Equal(int64(1)))
			Expect(jobs[0].PostingID).To(Equal("100"))
		})

		It("finds a posting by id across companies", func() {
			_, err := s.Job().Upsert(context.TODO(), newTestPosting("stripe", "100", "Backend Engineer"))
			Expect(err).To(BeNil())

			jobs, _, err := s.Job().List(context.TODO(), store.NewJobQueryFilter().ByPostingID("100").ByActive(true))
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(1))
			Expect(jobs[0].CompanyToken).To(Equal("stripe"))
		})
	})

	Context("deactivate missing", func() {
		It("deactivates postings absent from the seen set", func() {
			_, err := s.Job().Upsert(context.TODO(), newTestPosting("stripe", "100", "Backend Engineer"))
			Expect(err).To(BeNil())
			_, err = s.Job().Upsert(context.TODO(), newTestPosting("stripe", "101", "Frontend Engineer"))
			Expect(err).To(BeNil())
			_, err = s.Job().Upsert(context.TODO(), newTestPosting("airbnb", "200", "Data Engineer"))
			Expect(err).To(BeNil())

			n, err := s.Job().DeactivateMissing(context.TODO(), "stripe", []string{"100"})
			Expect(err).To(BeNil())
			Expect(n).To(Equal(int64(1)))

			got, err := s.Job().Get(context.TODO(), "stripe", "101")
			Expect(err).To(BeNil())
			Expect(got.Active).To(BeFalse())

			// other companies are untouched
			got, err = s.Job().Get(context.TODO(), "airbnb", "200")
			Expect(err).To(BeNil())
			Expect(got.Active).To(BeTrue())
		})

		It("deactivates everything when nothing was seen", func() {
			_, err := s.Job().Upsert(context.TODO(), newTestPosting("stripe", "100", "Backend Engineer"))
			Expect(err).To(BeNil())
			_, err = s.Job().Upsert(context.TODO(), newTestPosting("stripe", "101", "Frontend Engineer"))
			Expect(err).To(BeNil())

			n, err := s.Job().DeactivateMissing(context.TODO(), "stripe", nil)
			Expect(err).To(BeNil())
			Expect(n).To(Equal(int64(2)))
		})
	})

	Context("embedding round trip", func() {
		It("persists the embedding vector as JSON", func() {
			posting := newTestPosting("stripe", "100", "Backend Engineer")
			vec := make([]float32, 768)
			vec[0] = 0.5
			posting.Embedding = model.MakeJSONField(vec)

			_, err := s.Job().Upsert(context.TODO(), posting)
			Expect(err).To(BeNil())

			got, err := s.Job().Get(context.TODO(), "stripe", "100")
			Expect(err).To(BeNil())
			Expect(got.Embedding).NotTo(BeNil())
			Expect(got.Embedding.Data).To(HaveLen(768))
			Expect(got.Embedding.Data[0]).To(BeNumerically("~", 0.5, 1e-6))
		})
	})
})
