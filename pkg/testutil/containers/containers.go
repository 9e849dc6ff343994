//go:build integration

// Package containers starts throwaway backing services for integration tests.
// Every helper registers its own cleanup with t.
package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
)

// abort terminates c (if started) and fails the test.
func abort(t *testing.T, c testcontainers.Container, format string, args ...any) {
	t.Helper()
	if c != nil {
		_ = c.Terminate(context.Background())
	}
	t.Fatalf(format, args...)
}
