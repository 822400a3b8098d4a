// Package guard flips the process into test mode as soon as it is imported.
package guard

import (
	"os"
	"sync"
)

// Env is the variable app.InTestMode reads.
const Env = "BARQ_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(Env) == "" {
			_ = os.Setenv(Env, "1")
		}
	})
}
