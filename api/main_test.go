package api

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies no goroutine outlives the package tests; the server's
// Run goroutine must exit once Shutdown completes.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
