// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

//go:build integration

package cli_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

var _ = Describe("customfields CLI", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		cleanupDatabase(ctx, env.pool)
	})

	It("migrates idempotently and reports status", func() {
		output, err := run(ctx, "migrate")
		Expect(err).NotTo(HaveOccurred(), "migrate failed: %s", output)
		Expect(output).To(ContainSubstring("Migrations completed successfully"))

		output, err = run(ctx, "migrate", "up")
		Expect(err).NotTo(HaveOccurred(), "second migrate failed: %s", output)

		output, err = run(ctx, "-o", "json", "migrate", "status")
		Expect(err).NotTo(HaveOccurred(), "status failed: %s", output)
		var st struct {
			Version uint  `json:"version"`
			Dirty   bool  `json:"dirty"`
			Pending []any `json:"pending"`
		}
		Expect(json.Unmarshal([]byte(output), &st)).To(Succeed())
		Expect(st.Version).To(BeNumerically(">=", 1))
		Expect(st.Dirty).To(BeFalse())
		Expect(st.Pending).To(BeEmpty())
	})

	It("defines a field, backfills, sets values and queries them", func() {
		output, err := run(ctx, "migrate")
		Expect(err).NotTo(HaveOccurred(), "migrate failed: %s", output)
		_, err = env.pool.Exec(ctx, `INSERT INTO authors (id) VALUES ('a1'), ('a2'), ('a3')`)
		Expect(err).NotTo(HaveOccurred())

		output, err = run(ctx, "-o", "json", "field", "define", "Author", "rating", "integer",
			"--default", "1", "--option", "max=10")
		Expect(err).NotTo(HaveOccurred(), "define failed: %s", output)
		var def struct {
			ID           string `json:"id"`
			DefaultValue any    `json:"default_value"`
		}
		Expect(json.Unmarshal([]byte(output), &def)).To(Succeed())
		Expect(def.ID).NotTo(BeEmpty())

		var backfilled int
		Expect(env.pool.QueryRow(ctx, `SELECT count(*) FROM field_values`).Scan(&backfilled)).To(Succeed())
		Expect(backfilled).To(Equal(3))

		output, err = run(ctx, "value", "set", "Author", "a2", "rating", "7")
		Expect(err).NotTo(HaveOccurred(), "value set failed: %s", output)

		output, err = run(ctx, "value", "set", "Author", "a3", "rating", "15")
		Expect(err).To(HaveOccurred())
		Expect(output).To(ContainSubstring("less_than_or_equal_to"))

		output, err = run(ctx, "-o", "json", "query", "Author", "rating >= 5")
		Expect(err).NotTo(HaveOccurred(), "query failed: %s", output)
		var ids []string
		Expect(json.Unmarshal([]byte(output), &ids)).To(Succeed())
		Expect(ids).To(Equal([]string{"a2"}))
	})

	It("validates scripted types and writes metrics", func() {
		output, err := run(ctx, "migrate")
		Expect(err).NotTo(HaveOccurred(), "migrate failed: %s", output)
		metrics := filepath.Join(GinkgoT().TempDir(), "customfields.prom")

		output, err = run(ctx, "--metrics-file", metrics, "field", "define", "Author", "pairs", "even_integer")
		Expect(err).NotTo(HaveOccurred(), "define failed: %s", output)

		body, err := os.ReadFile(metrics)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(ContainSubstring(`customfields_definitions_created_total{entity_type="Author",type_id="even_integer"} 1`))

		output, err = run(ctx, "value", "set", "Author", "a1", "pairs", "3")
		Expect(err).To(HaveOccurred())
		Expect(output).To(ContainSubstring("not_even"))

		output, err = run(ctx, "value", "set", "Author", "a1", "pairs", "4")
		Expect(err).NotTo(HaveOccurred(), "value set failed: %s", output)
	})

	It("refuses operators the field type does not support", func() {
		output, err := run(ctx, "migrate")
		Expect(err).NotTo(HaveOccurred(), "migrate failed: %s", output)
		output, err = run(ctx, "field", "define", "Author", "active", "boolean", "--default", "false")
		Expect(err).NotTo(HaveOccurred(), "define failed: %s", output)

		output, err = run(ctx, "query", "Author", "active > true")
		Expect(err).To(HaveOccurred())
		Expect(output).To(ContainSubstring(`operator ">" is not supported by field type "boolean"`))
	})
})
