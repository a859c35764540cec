package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("RETAIL_TEST_MODE", "1")
		if os.Getenv("JWT_SECRET") == "" {
			_ = os.Setenv("JWT_SECRET", "test-secret")
		}
		if os.Getenv("BUSINESS_TIMEZONE") == "" {
			_ = os.Setenv("BUSINESS_TIMEZONE", "UTC")
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain enables test mode for packages that import this one for its side effects.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
