// Package events provides event management functionality.
package events

// EventType represents different event types
type EventType string

const (
	CycleStarted         EventType = "CYCLE_STARTED"
	CycleCompleted       EventType = "CYCLE_COMPLETED"
	TradeAccepted        EventType = "TRADE_ACCEPTED"
	RecommendationIssued EventType = "RECOMMENDATION_ISSUED"
	PricesRefreshed      EventType = "PRICES_REFRESHED"
	AllocationChanged    EventType = "ALLOCATION_CHANGED"
	BackupCompleted      EventType = "BACKUP_COMPLETED"
	ErrorOccurred        EventType = "ERROR_OCCURRED"
)

// AllEventTypes lists every type a stream subscriber can receive.
var AllEventTypes = []EventType{
	CycleStarted,
	CycleCompleted,
	TradeAccepted,
	RecommendationIssued,
	PricesRefreshed,
	AllocationChanged,
	BackupCompleted,
	ErrorOccurred,
}
