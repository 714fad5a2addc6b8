package model

import "time"

type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// DeliveryRecord tracks whether a pack or item reached a subscriber.
type DeliveryRecord struct {
	ID            string
	SubscriberID  string
	EntitlementID string
	ProductType   ProductType
	Source        string
	PackOrItemID  string
	Status        DeliveryStatus
	Attempts      int
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeliveredAt   *time.Time
}

type DeliveryOutcomeStatus string

const (
	OutcomeDelivered          DeliveryOutcomeStatus = "delivered"
	OutcomeFailed             DeliveryOutcomeStatus = "failed"
	OutcomeNoContentAvailable DeliveryOutcomeStatus = "no_content_available"
	OutcomeAlreadyDelivered   DeliveryOutcomeStatus = "already_delivered"
	OutcomeInProgress         DeliveryOutcomeStatus = "in_progress"
)

// DeliveryOutcome is the dispatcher's report for one attempt.
type DeliveryOutcome struct {
	Status    DeliveryOutcomeStatus
	RecordID  string
	ContentID string
	Sent      int // messages successfully pushed, intro included
	Err       error
}
