package model

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

type EventKind string

const (
	EventKindPurchaseSuccess      EventKind = "purchase_success"
	EventKindSubscriptionStarted  EventKind = "subscription_started"
	EventKindSubscriptionRenewed  EventKind = "subscription_renewed"
	EventKindRefund               EventKind = "refund"
	EventKindSubscriptionCanceled EventKind = "subscription_canceled"
	EventKindUnrecognized         EventKind = "unrecognized"
)

// ParseEventKind maps the provider's event_type onto a known kind.
// Anything else is EventKindUnrecognized.
func ParseEventKind(s string) EventKind {
	switch k := EventKind(strings.ToLower(strings.TrimSpace(s))); k {
	case EventKindPurchaseSuccess, EventKindSubscriptionStarted, EventKindSubscriptionRenewed,
		EventKindRefund, EventKindSubscriptionCanceled:
		return k
	default:
		return EventKindUnrecognized
	}
}

// IsSubscriptionEvent reports whether the kind only makes sense for subscription products.
func (k EventKind) IsSubscriptionEvent() bool {
	switch k {
	case EventKindSubscriptionStarted, EventKindSubscriptionRenewed, EventKindSubscriptionCanceled:
		return true
	}
	return false
}

// InboundEvent is one received payment webhook, stored verbatim. Never updated.
type InboundEvent struct {
	ID         string // ULID, assigned by the event store
	Source     string // provider tag, e.g. "tribute"
	Kind       EventKind
	EventType  string          // event_type exactly as received
	RawPayload json.RawMessage // the request body
	ReceivedAt time.Time
}

// WebhookPayload is the provider body shape.
type WebhookPayload struct {
	EventType string      `json:"event_type"`
	Data      WebhookData `json:"data"`
	Timestamp FlexNumber  `json:"timestamp"`
}

type WebhookData struct {
	ID          FlexString `json:"id"`
	UserID      FlexString `json:"user_id"`
	ProductID   FlexString `json:"product_id"`
	ProductType string     `json:"product_type,omitempty"`
	Amount      FlexNumber `json:"amount,omitempty"`
	Status      string     `json:"status,omitempty"`
}

var errFlexString = errors.New("id must be a JSON string or number")

// FlexString accepts both JSON strings and numbers; the provider sends ids either way.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errFlexString
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// FlexNumber accepts JSON numbers and numeric strings. Any other value leaves it unset
// instead of failing the decode: these fields never decide routing.
type FlexNumber struct {
	Value float64
	Valid bool
}

func (f *FlexNumber) UnmarshalJSON(b []byte) error {
	*f = FlexNumber{}
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return nil
		}
		s = strings.TrimSpace(str)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	*f = FlexNumber{Value: v, Valid: true}
	return nil
}
