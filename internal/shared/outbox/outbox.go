package outbox

// Row statuses for outbox tables. Rows are written inside the same DB
// transaction as the state change; the worker relay reads pending rows and
// publishes them to the bus.
const (
	StatusPending   = "pending"
	StatusPublished = "published"
	StatusFailed    = "failed"
)
