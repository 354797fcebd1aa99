package app

import (
	"os"
	"sync"
)

// TestModeEnv is set by the testing package for every test binary.
const TestModeEnv = "ODYSSEY_TEST_MODE"

var testMode = sync.OnceValue(func() bool { return os.Getenv(TestModeEnv) == "1" })

// InTestMode reports whether runtime side effects such as cron registration
// and cache listeners should be skipped.
func InTestMode() bool { return testMode() }
