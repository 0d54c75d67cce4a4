package app

import (
	"os"
	"strconv"
)

// TestModeEnv is set by the testing package so binaries skip startup.
const TestModeEnv = "HRDESK_TEST_MODE"

// InTestMode reports whether HRDESK_TEST_MODE holds a true value.
func InTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	return err == nil && on
}
