// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/customfields/customfields/internal/store"
)

var _ = Describe("Migrator", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
		pool      *pgxpool.Pool
		migrator  *store.Migrator
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("fields_test"),
			postgres.WithUsername("fields"),
			postgres.WithPassword("fields"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		pool, err = store.Open(ctx, connStr, store.ConnectOptions{})
		Expect(err).NotTo(HaveOccurred())

		migrator, err = store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if migrator != nil {
			_ = migrator.Close()
		}
		if pool != nil {
			pool.Close()
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	tableExists := func(name string) bool {
		var exists bool
		err := pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, name).Scan(&exists)
		Expect(err).NotTo(HaveOccurred())
		return exists
	}

	It("starts at version zero with everything pending", func() {
		st, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Version).To(BeZero())
		Expect(st.Pending).NotTo(BeEmpty())
	})

	It("creates both tables", func() {
		Expect(migrator.Up()).To(Succeed())
		Expect(tableExists("field_definitions")).To(BeTrue())
		Expect(tableExists("field_values")).To(BeTrue())

		st, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Pending).To(BeEmpty())
		Expect(st.Dirty).To(BeFalse())
	})

	It("is idempotent", func() {
		Expect(migrator.Up()).To(Succeed())
	})

	It("treats unscoped names as one scope", func() {
		_, err := pool.Exec(ctx, `
			INSERT INTO field_definitions (id, name, type_id, entity_type)
			VALUES ('01A', 'active', 'boolean', 'Author')`)
		Expect(err).NotTo(HaveOccurred())

		_, err = pool.Exec(ctx, `
			INSERT INTO field_definitions (id, name, type_id, entity_type)
			VALUES ('01B', 'active', 'boolean', 'Author')`)
		Expect(err).To(MatchError(ContainSubstring("field_definitions_scope_name_unique")))
	})

	It("cascades definition deletes to values", func() {
		_, err := pool.Exec(ctx, `
			INSERT INTO field_values (id, entity_type, entity_id, field_id, value)
			VALUES ('01V', 'Author', 'a1', '01A', 'true')`)
		Expect(err).NotTo(HaveOccurred())

		_, err = pool.Exec(ctx, `DELETE FROM field_definitions WHERE id = '01A'`)
		Expect(err).NotTo(HaveOccurred())

		var n int
		Expect(pool.QueryRow(ctx, `SELECT count(*) FROM field_values`).Scan(&n)).To(Succeed())
		Expect(n).To(BeZero())
	})

	It("drops the tables on down", func() {
		Expect(migrator.Down()).To(Succeed())
		Expect(tableExists("field_values")).To(BeFalse())

		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
	})
})
