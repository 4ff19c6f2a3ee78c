package events

// EventData is the interface that all event data types must implement
type EventData interface {
	EventType() EventType
}

// CycleStartedData contains data for CycleStarted events
type CycleStartedData struct {
	Trigger string `json:"trigger"`
}

// EventType returns the event type for CycleStartedData
func (d *CycleStartedData) EventType() EventType { return CycleStarted }

// CycleCompletedData contains data for CycleCompleted events
type CycleCompletedData struct {
	Candidates      int   `json:"candidates"`
	Accepted        int   `json:"accepted"`
	Recommendations int   `json:"recommendations"`
	Issued          int   `json:"issued"`
	DurationMs      int64 `json:"duration_ms"`
}

// EventType returns the event type for CycleCompletedData
func (d *CycleCompletedData) EventType() EventType { return CycleCompleted }

// TradeAcceptedData contains data for TradeAccepted events
type TradeAcceptedData struct {
	Actor  string  `json:"actor"`
	Ticker string  `json:"ticker"`
	Kind   string  `json:"kind"`
	Amount float64 `json:"amount"`
	Origin string  `json:"origin"`
}

// EventType returns the event type for TradeAcceptedData
func (d *TradeAcceptedData) EventType() EventType { return TradeAccepted }

// RecommendationIssuedData contains data for RecommendationIssued events
type RecommendationIssuedData struct {
	Ticker     string  `json:"ticker"`
	Action     string  `json:"action"`
	Amount     float64 `json:"amount"`
	Shares     float64 `json:"shares"`
	Confidence float64 `json:"confidence"`
	Actor      string  `json:"actor"`
}

// EventType returns the event type for RecommendationIssuedData
func (d *RecommendationIssuedData) EventType() EventType { return RecommendationIssued }

// PricesRefreshedData contains data for PricesRefreshed events
type PricesRefreshedData struct {
	Updated     []string `json:"updated"`
	Unavailable []string `json:"unavailable"`
	TotalValue  float64  `json:"total_value"`
}

// EventType returns the event type for PricesRefreshedData
func (d *PricesRefreshedData) EventType() EventType { return PricesRefreshed }

// AllocationChangedData contains data for AllocationChanged events
type AllocationChangedData struct {
	Ticker string  `json:"ticker"`
	From   float64 `json:"from"`
	To     float64 `json:"to"`
}

// EventType returns the event type for AllocationChangedData
func (d *AllocationChangedData) EventType() EventType { return AllocationChanged }

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Archive   string `json:"archive"`
	SizeBytes int64  `json:"size_bytes"`
	Uploaded  bool   `json:"uploaded"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType { return BackupCompleted }

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType { return ErrorOccurred }
