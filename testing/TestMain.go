// Package testing puts binaries into test mode when imported for side effects
// by main package tests. Runtime startup is skipped and a throwaway token
// secret satisfies config validation.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

const fallbackTokenSecret = "test-secret-test-secret-test-secret"

var once sync.Once

// Enable sets the test-mode environment. It is idempotent.
func Enable() {
	once.Do(func() {
		_ = os.Setenv("ODYSSEY_TEST_MODE", "1")
		if os.Getenv("AUTH_TOKEN_SECRET") == "" {
			_ = os.Setenv("AUTH_TOKEN_SECRET", fallbackTokenSecret)
		}
	})
}

func init() {
	Enable()
}

// TestMain can be delegated to from packages that want test mode before m.Run.
func TestMain(m *stdtesting.M) {
	Enable()
	os.Exit(m.Run())
}
