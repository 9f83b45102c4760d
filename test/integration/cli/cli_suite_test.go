// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

//go:build integration

package cli_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestCLI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "CLI Integration Suite")
}

// cliConfig binds the host tables created by cleanupDatabase.
const cliConfig = `
log_format: text
log_level: warn
backfill_batch_size: 2
entity_types:
  Author:
    table: authors
    field_types: ["boolean", "integer", "even_integer", "text*"]
custom_types:
  - id: even_integer
    base: integer
    script: |
      function validate(value, options)
        if value ~= nil and value % 2 ~= 0 then
          return { "not_even" }
        end
      end
`

// testEnv holds all resources needed for CLI integration tests.
type testEnv struct {
	ctx        context.Context
	pool       *pgxpool.Pool
	container  testcontainers.Container
	connStr    string
	configPath string
}

var env *testEnv

var _ = BeforeSuite(func() {
	var err error
	env, err = setupCLITestEnv()
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if env != nil {
		env.cleanup()
	}
})

func setupCLITestEnv() (*testEnv, error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("fields_test"),
		postgres.WithUsername("fields"),
		postgres.WithPassword("fields"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	dir, err := os.MkdirTemp("", "customfields-cli")
	if err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, err
	}
	configPath := filepath.Join(dir, "customfields.yaml")
	if err := os.WriteFile(configPath, []byte(cliConfig), 0o600); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, err
	}

	return &testEnv{
		ctx:        ctx,
		pool:       pool,
		container:  container,
		connStr:    connStr,
		configPath: configPath,
	}, nil
}

func (e *testEnv) cleanup() {
	if e.pool != nil {
		e.pool.Close()
	}
	if e.container != nil {
		_ = e.container.Terminate(e.ctx)
	}
	if e.configPath != "" {
		_ = os.RemoveAll(filepath.Dir(e.configPath))
	}
}

// cleanupDatabase drops every table and recreates the host table. The
// custom field tables come back through the migrate command.
func cleanupDatabase(ctx context.Context, pool *pgxpool.Pool) {
	for _, table := range []string{"field_values", "field_definitions", "schema_migrations", "authors"} {
		_, _ = pool.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
	}
	_, err := pool.Exec(ctx, `CREATE TABLE authors (id TEXT PRIMARY KEY)`)
	Expect(err).NotTo(HaveOccurred())
}

// run executes the customfields command with the suite's config and
// database, returning combined output.
func run(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"run", ".", "--config", env.configPath}, args...)
	cmd := exec.CommandContext(ctx, "go", full...)
	cmd.Dir = "../../../cmd/customfields"
	cmd.Env = append(cmd.Environ(), "DATABASE_URL="+env.connStr)
	output, err := cmd.CombinedOutput()
	return string(output), err
}
