package domain

import "time"

// User is a tracked wallet.
type User struct {
	Address string

	// LastScannedAt is the watermark below which the user's history is
	// assumed already reconciled. Nil until the first successful scan.
	LastScannedAt *time.Time

	// LastManualRefreshAt rate-limits user-triggered rescans.
	LastManualRefreshAt *time.Time

	CreatedAt time.Time
}

// SystemStatus is the singleton record holding the global scan watermark,
// used when a user has no watermark of their own.
type SystemStatus struct {
	LastGlobalUpdateAt *time.Time
}
