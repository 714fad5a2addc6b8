// File: internal/usecase/event_store.go
package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"telegram-premium-delivery/internal/domain"
	"telegram-premium-delivery/internal/domain/model"
	"telegram-premium-delivery/internal/domain/ports/repository"
)

var _ EventStore = (*eventStore)(nil)

// EventStore appends verified inbound events to the audit log. No dedup.
type EventStore interface {
	Record(ctx context.Context, source string, kind model.EventKind, eventType string, raw []byte) (*model.InboundEvent, error)
}

type eventStore struct {
	events repository.EventRepository
	log    *zerolog.Logger
	now    func() time.Time
}

func NewEventStore(events repository.EventRepository, logger *zerolog.Logger) *eventStore {
	l := logger.With().Str("component", "EventStore").Logger()
	return &eventStore{events: events, log: &l, now: time.Now}
}

func (s *eventStore) Record(ctx context.Context, source string, kind model.EventKind, eventType string, raw []byte) (*model.InboundEvent, error) {
	if len(raw) == 0 || !json.Valid(raw) {
		return nil, domain.ErrMalformedPayload
	}
	ev := &model.InboundEvent{
		ID:         ulid.Make().String(),
		Source:     source,
		Kind:       kind,
		EventType:  eventType,
		RawPayload: append(json.RawMessage(nil), raw...),
		ReceivedAt: s.now().UTC(),
	}
	if err := s.events.Append(ctx, repository.NoTX, ev); err != nil {
		return nil, err
	}
	s.log.Debug().Str("event_id", ev.ID).Str("kind", string(kind)).Msg("event stored")
	return ev, nil
}
