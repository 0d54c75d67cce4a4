// Package testing prepares the environment for packages that build the
// server binaries under go test.
package testing

import (
	"os"
	stdtesting "testing"
)

var testEnv = map[string]string{
	"HRDESK_TEST_MODE": "1",
	"JWT_SECRET":       "hrdesk-test-secret",
	"LOG_LEVEL":        "warn",
}

func init() {
	for key, value := range testEnv {
		if _, set := os.LookupEnv(key); !set {
			_ = os.Setenv(key, value)
		}
	}
}

// TestMain runs m with the test environment applied.
func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
