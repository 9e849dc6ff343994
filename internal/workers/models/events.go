package models

// EventName identifies an outbound event delivered to connections.
type EventName string

// Outbound events. Names match the wire protocol viewers already speak.
const (
	EventCurrentWorkers     EventName = "currentWorkers"
	EventWorkerAdded        EventName = "workerAdded"
	EventWorkersAddedBatch  EventName = "workersAddedBatch"
	EventWorkerRemoved      EventName = "workerRemoved"
	EventAllCleared         EventName = "allCleared"
	EventAddWorkerRejected  EventName = "addWorkerRejected"
	EventWorkersBatchResult EventName = "workersBatchResult"
)

// Inbound operation names submitted by connections.
const (
	OpAddWorker       = "addWorker"
	OpAddWorkersBatch = "addWorkersBatch"
	OpRemoveWorker    = "removeWorker"
	OpClearAll        = "clearAll"
)

// Event is one message queued for delivery to a connection. Payload is nil
// for events without a body (allCleared).
type Event struct {
	Name    EventName `json:"name"`
	Payload any       `json:"payload,omitempty"`
}

// Rejection is the payload of addWorkerRejected.
type Rejection struct {
	Reason Reason `json:"reason"`
}

// BatchResult acknowledges a batch submission with the accepted count only.
type BatchResult struct {
	Accepted int `json:"accepted"`
}
