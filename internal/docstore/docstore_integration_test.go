// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

//go:build integration

package docstore_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/breadsocial/bread/internal/docstore"
	"github.com/breadsocial/bread/internal/docstore/memory"
	"github.com/breadsocial/bread/internal/docstore/mongo"
	"github.com/breadsocial/bread/internal/docstore/postgres"
)

type record struct {
	ID     docstore.ID `bson:"_id,omitempty" json:"_id,omitempty"`
	Name   string      `bson:"name" json:"name"`
	Author docstore.ID `bson:"author" json:"author"`
	Image  *string     `bson:"image,omitempty" json:"image,omitempty"`
}

func startMongo(ctx context.Context) (docstore.Store, func()) {
	container, err := mongodb.Run(ctx, "mongo:7")
	Expect(err).NotTo(HaveOccurred())

	uri, err := container.ConnectionString(ctx)
	Expect(err).NotTo(HaveOccurred())

	store, err := mongo.Connect(ctx, uri, "bread_test")
	Expect(err).NotTo(HaveOccurred())

	return store, func() {
		_ = store.Close(ctx)
		_ = container.Terminate(ctx)
	}
}

func startPostgres(ctx context.Context) (docstore.Store, func()) {
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("bread_test"),
		tcpostgres.WithUsername("bread"),
		tcpostgres.WithPassword("bread"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	Expect(err).NotTo(HaveOccurred())

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	migrator, err := postgres.NewMigrator(dsn)
	Expect(err).NotTo(HaveOccurred())
	Expect(migrator.Up()).To(Succeed())
	Expect(migrator.Close()).To(Succeed())

	store, err := postgres.Connect(ctx, dsn)
	Expect(err).NotTo(HaveOccurred())

	return store, func() {
		_ = store.Close(ctx)
		_ = container.Terminate(ctx)
	}
}

var _ = DescribeTableSubtree("Store contract",
	func(start func(context.Context) (docstore.Store, func())) {
		var (
			ctx     context.Context
			store   docstore.Store
			cleanup func()
		)

		BeforeEach(func() {
			ctx = context.Background()
			store, cleanup = start(ctx)
		})

		AfterEach(func() {
			cleanup()
		})

		It("round-trips an inserted document", func() {
			img := "https://example.com/a.png"
			id, err := store.InsertOne(ctx, "posts", record{Name: "a", Author: "u1", Image: &img})
			Expect(err).NotTo(HaveOccurred())
			Expect(id.IsZero()).To(BeFalse())

			var got record
			Expect(store.FindOne(ctx, "posts", docstore.ByID(id), &got)).To(Succeed())
			Expect(got.ID).To(Equal(id))
			Expect(got.Name).To(Equal("a"))
			Expect(got.Image).To(HaveValue(Equal(img)))
		})

		It("reports missing documents", func() {
			var got record
			err := store.FindOne(ctx, "posts", docstore.Filter{"name": "nope"}, &got)
			Expect(err).To(MatchError(docstore.ErrNoDocument))
		})

		It("deletes only when every filter field matches", func() {
			id, err := store.InsertOne(ctx, "posts", record{Name: "a", Author: "u1"})
			Expect(err).NotTo(HaveOccurred())

			err = store.DeleteOne(ctx, "posts", docstore.Filter{docstore.IDField: id, "author": docstore.ID("u2")})
			Expect(err).To(MatchError(docstore.ErrNoDocument))

			Expect(store.DeleteOne(ctx, "posts", docstore.Filter{docstore.IDField: id, "author": docstore.ID("u1")})).To(Succeed())

			var got record
			Expect(store.FindOne(ctx, "posts", docstore.ByID(id), &got)).To(MatchError(docstore.ErrNoDocument))
		})

		It("updates fields in place", func() {
			id, err := store.InsertOne(ctx, "users", record{Name: "a"})
			Expect(err).NotTo(HaveOccurred())

			Expect(store.UpdateOne(ctx, "users", docstore.ByID(id), docstore.Fields{"name": "b"})).To(Succeed())

			var got record
			Expect(store.FindOne(ctx, "users", docstore.ByID(id), &got)).To(Succeed())
			Expect(got.Name).To(Equal("b"))
		})

		It("enforces unique fields", func() {
			Expect(store.EnsureUnique(ctx, "users", "name")).To(Succeed())
			Expect(store.EnsureUnique(ctx, "users", "name")).To(Succeed())

			_, err := store.InsertOne(ctx, "users", record{Name: "dup"})
			Expect(err).NotTo(HaveOccurred())
			_, err = store.InsertOne(ctx, "users", record{Name: "dup"})
			Expect(err).To(MatchError(docstore.ErrDuplicateKey))
		})

		It("samples stored documents", func() {
			var got record
			Expect(store.SampleOne(ctx, "posts", &got)).To(MatchError(docstore.ErrNoDocument))

			ids := map[docstore.ID]bool{}
			for _, name := range []string{"a", "b", "c"} {
				id, err := store.InsertOne(ctx, "posts", record{Name: name, Author: "u1"})
				Expect(err).NotTo(HaveOccurred())
				ids[id] = true
			}
			for range 10 {
				Expect(store.SampleOne(ctx, "posts", &got)).To(Succeed())
				Expect(ids).To(HaveKey(got.ID))
			}
		})
	},
	Entry("memory", func(context.Context) (docstore.Store, func()) { return memory.New(), func() {} }),
	Entry("mongo", startMongo),
	Entry("postgres", startPostgres),
)
