package types

// Status is the canonical payment outcome shared by every provider.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
	StatusDisputed  Status = "disputed"
	StatusCancelled Status = "cancelled"
	StatusUnknown   Status = "unknown"
)

func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusPending, StatusFailed, StatusRefunded,
		StatusDisputed, StatusCancelled, StatusUnknown:
		return true
	}
	return false
}

// Fulfillable reports whether downstream fulfilment may act on this status.
func (s Status) Fulfillable() bool {
	return s == StatusSuccess
}

func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusRefunded, StatusCancelled:
		return true
	}
	return false
}
