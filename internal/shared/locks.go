package shared

import (
	"fmt"
	"strings"
	"time"
)

// StockLockKey builds the advisory lock key guarding one stock record.
func StockLockKey(medicationID int64, batchNumber string, expiry time.Time) string {
	return fmt.Sprintf("stock:%d:%s:%s", medicationID, strings.TrimSpace(batchNumber), expiry.Format("2006-01-02"))
}

// JobLockKey builds redis keys for single-runner background jobs.
func JobLockKey(job string) string {
	return fmt.Sprintf("jobs:%s:lock", job)
}
