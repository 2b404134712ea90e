package domain

import "time"

// BalanceSnapshot records the free USDT balance at a point in time. Snapshots
// are appended after every close and by the daily snapshot task, and back the
// daily-return report.
type BalanceSnapshot struct {
	ID        int64
	Balance   float64
	Timestamp time.Time
}
