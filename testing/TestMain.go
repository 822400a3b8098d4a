// Package testing is blank-imported by tests that need a test-mode process
// with the required secrets present.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"

	"github.com/barq-desk/barq/internal/testing/guard"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv(guard.Env, "1")
		for key, value := range map[string]string{
			"SESSION_SECRET": "test-session-secret",
			"CSRF_SECRET":    "test-csrf-secret",
		} {
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
