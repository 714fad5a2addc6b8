package model

import (
	"time"

	"telegram-premium-delivery/internal/domain"
)

type EntitlementStatus string

const (
	EntitlementStatusActive  EntitlementStatus = "active"
	EntitlementStatusRevoked EntitlementStatus = "revoked"
)

// Entitlement grants a subscriber access to a product type.
// Rows are never deleted; the newest row for (SubscriberID, ProductType) is authoritative.
type Entitlement struct {
	ID           string // UUID
	SubscriberID string // chat user id as sent by the provider
	ProductType  ProductType
	Status       EntitlementStatus
	ExpiresAt    *time.Time // nil = no expiry
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewEntitlement creates an active entitlement.
func NewEntitlement(id, subscriberID string, pt ProductType, expiresAt *time.Time, now time.Time) (*Entitlement, error) {
	if id == "" || subscriberID == "" || !pt.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	return &Entitlement{
		ID:           id,
		SubscriberID: subscriberID,
		ProductType:  pt,
		Status:       EntitlementStatusActive,
		ExpiresAt:    expiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsActiveAt reports whether the entitlement grants access at t.
func (e *Entitlement) IsActiveAt(t time.Time) bool {
	if e == nil || e.Status != EntitlementStatusActive {
		return false
	}
	return e.ExpiresAt == nil || e.ExpiresAt.After(t)
}
