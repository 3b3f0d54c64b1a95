package app

import (
	"os"
	"sync/atomic"
)

const testModeEnv = "MEDISTORE_TEST_MODE"

var testMode atomic.Pointer[bool]

// InTestMode reports whether MEDISTORE_TEST_MODE=1. Binaries skip startup
// side effects when it is set. The environment is read on first use.
func InTestMode() bool {
	if on := testMode.Load(); on != nil {
		return *on
	}
	return RefreshTestMode()
}

// RefreshTestMode re-reads the environment and returns the new value.
func RefreshTestMode() bool {
	on := os.Getenv(testModeEnv) == "1"
	testMode.Store(&on)
	return on
}
