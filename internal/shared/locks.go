package shared

import "fmt"

// LedgerLockKey builds redis keys for single-runner ledger jobs.
func LedgerLockKey(job string, branchID *int64) string {
	if branchID == nil {
		return fmt.Sprintf("ledger:%s:all:lock", job)
	}
	return fmt.Sprintf("ledger:%s:%d:lock", job, *branchID)
}
