// Package testing puts the process into test mode when blank-imported from a
// _test.go file: binaries skip startup and config loading finds a token secret.
package testing

import (
	"os"
	stdtesting "testing"
)

const (
	testModeEnv     = "MEDISTORE_TEST_MODE"
	tokenSecretEnv  = "TOKEN_SECRET"
	testTokenSecret = "test-token-secret"
)

func init() {
	applyTestEnv()
}

func applyTestEnv() {
	_ = os.Setenv(testModeEnv, "1")
	if _, ok := os.LookupEnv(tokenSecretEnv); !ok {
		_ = os.Setenv(tokenSecretEnv, testTokenSecret)
	}
}

// TestMain runs m with the test environment applied.
func TestMain(m *stdtesting.M) {
	applyTestEnv()
	os.Exit(m.Run())
}
