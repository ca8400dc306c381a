package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
	StatusNoShow    = "no_show"
)

// TerminalStatuses never contend for a space and allow no further
// transition except deletion.
var TerminalStatuses = []string{StatusRejected, StatusCancelled, StatusCompleted, StatusNoShow}

// IsTerminalStatus reports whether s allows no further transition.
func IsTerminalStatus(s string) bool {
	for _, t := range TerminalStatuses {
		if s == t {
			return true
		}
	}
	return false
}

// Action names checked by the authorization policy.
const (
	ActionCreate  = "create"
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionCancel  = "cancel"
	ActionDelete  = "delete"
	ActionCheckIn = "checkin"
	ActionList    = "list"

	ActionManageUsers = "manage_users"
)

const (
	// DefaultScheduleCacheTTL bounds staleness of cached per-space schedules.
	DefaultScheduleCacheTTL = 5 * 60 // seconds

	// DefaultLockTimeoutSeconds bounds the wait for a per-space admission lock.
	DefaultLockTimeoutSeconds = 3

	// DefaultSweepIntervalSeconds between completion/no-show passes.
	DefaultSweepIntervalSeconds = 60

	// RateLimitRPS and RateLimitBurst are the per-client HTTP defaults.
	RateLimitRPS   = 10
	RateLimitBurst = 5
)
