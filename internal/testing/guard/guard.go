// Package guard flips the application into test mode when imported for side
// effects from a _test file, so constructors skip runtime side effects such
// as opening outbound connections.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("BILLFLOW_TEST_MODE") == "" {
			_ = os.Setenv("BILLFLOW_TEST_MODE", "1")
		}
	})
}
