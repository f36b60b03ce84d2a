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

var _ = Describe("cached response store", Ordered, func() {
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
		gormdb.Exec("DELETE from cached_responses;")
	})

	It("returns ErrRecordNotFound for a user with no history", func() {
		_, err := s.CachedResponse().Get(context.TODO(), "user-1")
		Expect(err).To(MatchError(store.ErrRecordNotFound))
	})

	It("stores and reads back standard and custom answers", func() {
		_, err := s.CachedResponse().Upsert(context.TODO(), model.CachedResponse{
			UserID:   "user-1",
			Standard: model.MakeJSONField(map[string]string{"email": "ada@example.com"}),
			Custom: model.MakeJSONField(map[string]model.CachedAnswer{
				"why us": {Question: "Why us?", Answer: "Because...", LastUsed: time.Now().UTC(), UseCount: 2},
			}),
		})
		Expect(err).To(BeNil())

		got, err := s.CachedResponse().Get(context.TODO(), "user-1")
		Expect(err).To(BeNil())
		Expect(got.StandardValues()).To(HaveKeyWithValue("email", "ada@example.com"))
		Expect(got.CustomAnswers()["why us"].UseCount).To(Equal(2))
	})

	It("overwrites on upsert instead of duplicating", func() {
		_, err := s.CachedResponse().Upsert(context.TODO(), model.CachedResponse{
			UserID:   "user-1",
			Standard: model.MakeJSONField(map[string]string{"email": "old@example.com"}),
		})
		Expect(err).To(BeNil())

		_, err = s.CachedResponse().Upsert(context.TODO(), model.CachedResponse{
			UserID:   "user-1",
			Standard: model.MakeJSONField(map[string]string{"email": "new@example.com"}),
		})
		Expect(err).To(BeNil())

		count := 0
		Expect(gormdb.Raw("SELECT COUNT(*) from cached_responses;").Scan(&count).Error).To(BeNil())
		Expect(count).To(Equal(1))

		got, err := s.CachedResponse().Get(context.TODO(), "user-1")
		Expect(err).To(BeNil())
		Expect(got.StandardValues()["email"]).To(Equal("new@example.com"))
	})
})
