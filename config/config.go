package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mycastiel/kudu/log"
)

// Config holds the tunables for a tablet's MVCC coordinator and its
// companion transaction status registry.
type Config struct {
	LogLevel string

	// DBPath is the directory the transaction status registry persists
	// its records to. It is created if missing and must be writable.
	DBPath string

	// WaitTimeout bounds how long WaitForAllCommittedWithTimeout and
	// WaitForApplyingOpsToCommit block before returning ErrTimedOut.
	// WaitForAllCommitted takes its own deadline and ignores it.
	WaitTimeout time.Duration

	// AdjustLowerBoundLogEvery rate-limits the warning logged when a
	// caller attempts to move the new-op lower bound backwards.
	AdjustLowerBoundLogEvery time.Duration
}

func (c *Config) Validate() error {
	if c.WaitTimeout <= 0 {
		return fmt.Errorf("wait timeout must be greater than 0")
	}
	return nil
}

// ApplyLogLevel sets the package-level log level from c.LogLevel. Callers
// invoke this once at startup, after loading configuration.
func (c *Config) ApplyLogLevel() {
	log.SetLevelByString(c.LogLevel)
}

func getLogLevel() (logLevel string) {
	logLevel = "info"
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		logLevel = l
	}
	return
}

func NewDefaultConfig() *Config {
	return &Config{
		LogLevel:                 getLogLevel(),
		DBPath:                   "/tmp/txnstatus",
		WaitTimeout:              5 * time.Second,
		AdjustLowerBoundLogEvery: 10 * time.Second,
	}
}

func NewTestConfig() *Config {
	return &Config{
		LogLevel:                 getLogLevel(),
		DBPath:                   "/tmp/txnstatus-test",
		WaitTimeout:              500 * time.Millisecond,
		AdjustLowerBoundLogEvery: 100 * time.Millisecond,
	}
}
