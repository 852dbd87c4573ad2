package sqlite_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/PabloGalante/smalltalk-dojo/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/smalltalk-dojo/internal/domain"
)

var _ = Describe("Store", func() {
	var (
		store *sqlite.Store
		ctx   context.Context
		key   domain.SessionKey
		base  time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		key = domain.SessionKey{UserID: "alice", PersonaID: "gordon"}
		base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

		var err error
		store, err = sqlite.NewStore(":memory:")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if store != nil {
			store.Close()
		}
	})

	Describe("NewStore", func() {
		It("creates a database file", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "dojo.db")

			s, err := sqlite.NewStore(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("AppendRow and QueryByKey", func() {
		It("returns nothing for an unknown key", func() {
			rows, err := store.QueryByKey(ctx, key)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(BeEmpty())
		})

		It("returns rows in insertion order", func() {
			Expect(store.AppendRow(ctx, domain.TranscriptRow{
				UserID: "alice", PersonaID: "gordon", Role: domain.RoleUser, Content: "Hi Gordon", Timestamp: base,
			})).To(Succeed())
			Expect(store.AppendRow(ctx, domain.TranscriptRow{
				UserID: "alice", PersonaID: "gordon", Role: domain.RoleAssistant, Content: "Make it quick.", Timestamp: base,
			})).To(Succeed())

			rows, err := store.QueryByKey(ctx, key)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(2))
			Expect(rows[0].Role).To(Equal(domain.RoleUser))
			Expect(rows[0].Content).To(Equal("Hi Gordon"))
			Expect(rows[1].Role).To(Equal(domain.RoleAssistant))
			Expect(rows[1].Timestamp.Equal(base)).To(BeTrue())
		})

		It("filters by user and persona", func() {
			for _, r := range []domain.TranscriptRow{
				{UserID: "alice", PersonaID: "mei", Role: domain.RoleUser, Content: "other persona", Timestamp: base},
				{UserID: "bob", PersonaID: "gordon", Role: domain.RoleUser, Content: "other user", Timestamp: base},
				{UserID: "alice", PersonaID: "gordon", Role: domain.RoleUser, Content: "mine", Timestamp: base},
			} {
				Expect(store.AppendRow(ctx, r)).To(Succeed())
			}

			rows, err := store.QueryByKey(ctx, key)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].Content).To(Equal("mine"))
			Expect(rows[0].UserID).To(Equal(domain.UserID("alice")))
		})

		It("persists across reopen", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "dojo.db")

			s, err := sqlite.NewStore(dbPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.AppendRow(ctx, domain.TranscriptRow{
				UserID: "alice", PersonaID: "gordon", Role: domain.RoleUser, Content: "kept", Timestamp: base,
			})).To(Succeed())
			Expect(s.Close()).To(Succeed())

			reopened, err := sqlite.NewStore(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer reopened.Close()

			rows, err := reopened.QueryByKey(ctx, key)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(1))
		})
	})

	Describe("AppendFeedback and ListFeedback", func() {
		appendN := func(n int) {
			for i := 0; i < n; i++ {
				Expect(store.AppendFeedback(ctx, &domain.FeedbackEntry{
					ID:        domain.FeedbackID(fmt.Sprintf("f%d", i)),
					UserID:    key.UserID,
					PersonaID: key.PersonaID,
					UserText:  fmt.Sprintf("turn %d", i),
					Critique:  fmt.Sprintf("%d - ok - more", i),
					Fallback:  i == 0,
					CreatedAt: base.Add(time.Duration(i) * time.Minute),
				})).To(Succeed())
			}
		}

		It("returns the most recent entries oldest first", func() {
			appendN(5)

			entries, err := store.ListFeedback(ctx, key, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(2))
			Expect(entries[0].ID).To(Equal(domain.FeedbackID("f3")))
			Expect(entries[1].ID).To(Equal(domain.FeedbackID("f4")))
			Expect(entries[1].Critique).To(Equal("4 - ok - more"))
		})

		It("returns all entries when limit is not positive", func() {
			appendN(3)

			entries, err := store.ListFeedback(ctx, key, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(3))
			Expect(entries[0].Fallback).To(BeTrue())
		})

		It("rejects duplicate ids", func() {
			appendN(1)

			err := store.AppendFeedback(ctx, &domain.FeedbackEntry{
				ID: "f0", UserID: key.UserID, PersonaID: key.PersonaID, CreatedAt: base,
			})
			Expect(err).To(HaveOccurred())
		})

		It("requires an id", func() {
			err := store.AppendFeedback(ctx, &domain.FeedbackEntry{UserID: key.UserID})
			Expect(err).To(HaveOccurred())
		})
	})
})
