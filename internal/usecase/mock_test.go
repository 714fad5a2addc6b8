//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-premium-delivery/internal/domain"
	"telegram-premium-delivery/internal/domain/model"
	"telegram-premium-delivery/internal/domain/ports/adapter"
	"telegram-premium-delivery/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// Repositories
// =============================

// ---- MockEventRepo ----

type MockEventRepo struct {
	mu        sync.Mutex
	Events    []*model.InboundEvent
	AppendErr error
}

var _ repository.EventRepository = (*MockEventRepo)(nil)

func (m *MockEventRepo) Append(ctx context.Context, tx repository.Tx, e *model.InboundEvent) error {
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.Events = append(m.Events, &cp)
	return nil
}

func (m *MockEventRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.InboundEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Events {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockEventRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Events)
}

// ---- MockEntitlementRepo ----

// MockEntitlementRepo mirrors the SQL semantics: the newest row by
// (updated_at, created_at, write order) is authoritative.
type MockEntitlementRepo struct {
	mu        sync.Mutex
	rows      []*entRow
	seq       int64
	InsertErr error
}

type entRow struct {
	e   model.Entitlement
	seq int64
}

var _ repository.EntitlementRepository = (*MockEntitlementRepo)(nil)

func NewMockEntitlementRepo() *MockEntitlementRepo { return &MockEntitlementRepo{} }

func (m *MockEntitlementRepo) Insert(ctx context.Context, tx repository.Tx, e *model.Entitlement) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.rows = append(m.rows, &entRow{e: *e, seq: m.seq})
	return nil
}

func (m *MockEntitlementRepo) latest(sub string, pt model.ProductType) *entRow {
	var match []*entRow
	for _, r := range m.rows {
		if r.e.SubscriberID == sub && r.e.ProductType == pt {
			match = append(match, r)
		}
	}
	if len(match) == 0 {
		return nil
	}
	sort.SliceStable(match, func(i, j int) bool {
		a, b := match[i], match[j]
		if !a.e.UpdatedAt.Equal(b.e.UpdatedAt) {
			return a.e.UpdatedAt.After(b.e.UpdatedAt)
		}
		if !a.e.CreatedAt.Equal(b.e.CreatedAt) {
			return a.e.CreatedAt.After(b.e.CreatedAt)
		}
		return a.seq > b.seq
	})
	return match[0]
}

func (m *MockEntitlementRepo) RenewLatest(ctx context.Context, tx repository.Tx, sub string, pt model.ProductType, expiresAt *time.Time, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.latest(sub, pt)
	if r == nil {
		return 0, nil
	}
	m.seq++
	r.seq = m.seq
	r.e.Status = model.EntitlementStatusActive
	if expiresAt != nil {
		r.e.ExpiresAt = expiresAt
	}
	r.e.UpdatedAt = now
	return 1, nil
}

func (m *MockEntitlementRepo) RevokeAll(ctx context.Context, tx repository.Tx, sub string, pt model.ProductType, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.rows {
		if r.e.SubscriberID == sub && r.e.ProductType == pt {
			m.seq++
			r.seq = m.seq
			r.e.Status = model.EntitlementStatusRevoked
			r.e.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *MockEntitlementRepo) FindLatest(ctx context.Context, tx repository.Tx, sub string, pt model.ProductType) (*model.Entitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.latest(sub, pt)
	if r == nil {
		return nil, domain.ErrNotFound
	}
	cp := r.e
	return &cp, nil
}

func (m *MockEntitlementRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// ---- MockPackRepo ----

type MockPackRepo struct {
	mu    sync.Mutex
	packs map[string]*model.ContentPack
	order []string
	Err   error
}

var _ repository.ContentPackRepository = (*MockPackRepo)(nil)

func NewMockPackRepo() *MockPackRepo {
	return &MockPackRepo{packs: map[string]*model.ContentPack{}}
}

func (m *MockPackRepo) Create(ctx context.Context, tx repository.Tx, p *model.ContentPack) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.packs[p.ID] = &cp
	m.order = append(m.order, p.ID)
	return nil
}

func (m *MockPackRepo) AddItems(ctx context.Context, tx repository.Tx, packID string, items []model.ContentItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packs[packID]
	if !ok {
		return domain.ErrNotFound
	}
	p.Items = append(p.Items, items...)
	return nil
}

func (m *MockPackRepo) MarkReady(ctx context.Context, tx repository.Tx, packID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packs[packID]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = model.ContentPackStatusReady
	return nil
}

func (m *MockPackRepo) FindLatestReady(ctx context.Context, tx repository.Tx) (*model.ContentPack, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		if p := m.packs[m.order[i]]; p.Status == model.ContentPackStatusReady {
			cp := *p
			cp.Items = append([]model.ContentItem(nil), p.Items...)
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPackRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ContentPack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	cp.Items = append([]model.ContentItem(nil), p.Items...)
	return &cp, nil
}

// readyPack seeds a ready pack with n photo items.
func (m *MockPackRepo) readyPack(id, theme string, n int) *model.ContentPack {
	p := &model.ContentPack{ID: id, Theme: theme, Status: model.ContentPackStatusReady, CreatedAt: time.Now()}
	for i := 0; i < n; i++ {
		p.Items = append(p.Items, model.ContentItem{
			ID: fmt.Sprintf("%s-item-%d", id, i), PackID: id, Position: i,
			Kind: model.ContentKindPhoto, URL: fmt.Sprintf("https://img.example/%s/%d.png", id, i),
		})
	}
	_ = m.Create(context.Background(), nil, p)
	return p
}

// ---- MockDeliveryRepo ----

type MockDeliveryRepo struct {
	mu        sync.Mutex
	records   map[string]*model.DeliveryRecord
	order     []string
	CreateErr error
}

var _ repository.DeliveryRepository = (*MockDeliveryRepo)(nil)

func NewMockDeliveryRepo() *MockDeliveryRepo {
	return &MockDeliveryRepo{records: map[string]*model.DeliveryRecord{}}
}

func (m *MockDeliveryRepo) Create(ctx context.Context, tx repository.Tx, d *model.DeliveryRecord) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.records[d.ID] = &cp
	m.order = append(m.order, d.ID)
	return nil
}

func (m *MockDeliveryRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.DeliveryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MockDeliveryRepo) FindLatestFor(ctx context.Context, tx repository.Tx, sub, content string) (*model.DeliveryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *model.DeliveryRecord
	for i := len(m.order) - 1; i >= 0; i-- {
		d := m.records[m.order[i]]
		if d.SubscriberID != sub || d.PackOrItemID != content {
			continue
		}
		if d.Status == model.DeliveryStatusDelivered {
			found = d
			break
		}
		if found == nil {
			found = d
		}
	}
	if found == nil {
		return nil, domain.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (m *MockDeliveryRepo) set(id string, fn func(d *model.DeliveryRecord)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(d)
	return nil
}

func (m *MockDeliveryRepo) MarkPending(ctx context.Context, tx repository.Tx, id string, now time.Time) error {
	return m.set(id, func(d *model.DeliveryRecord) {
		d.Status = model.DeliveryStatusPending
		d.Attempts++
		d.UpdatedAt = now
	})
}

func (m *MockDeliveryRepo) MarkDelivered(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	return m.set(id, func(d *model.DeliveryRecord) {
		d.Status = model.DeliveryStatusDelivered
		d.LastError = ""
		d.UpdatedAt = at
		d.DeliveredAt = &at
	})
}

func (m *MockDeliveryRepo) MarkFailed(ctx context.Context, tx repository.Tx, id, reason string, now time.Time) error {
	return m.set(id, func(d *model.DeliveryRecord) {
		d.Status = model.DeliveryStatusFailed
		d.LastError = reason
		d.UpdatedAt = now
	})
}

func (m *MockDeliveryRepo) MarkAttemptFailed(ctx context.Context, tx repository.Tx, id, reason string, now time.Time) error {
	return m.set(id, func(d *model.DeliveryRecord) {
		d.Status = model.DeliveryStatusFailed
		d.Attempts++
		d.LastError = reason
		d.UpdatedAt = now
	})
}

func (m *MockDeliveryRepo) ListRetryable(ctx context.Context, tx repository.Tx, maxAttempts int, staleBefore time.Time, limit int) ([]*model.DeliveryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.DeliveryRecord
	for _, id := range m.order {
		d := m.records[id]
		stale := d.Status == model.DeliveryStatusPending && d.UpdatedAt.Before(staleBefore)
		if (d.Status == model.DeliveryStatusFailed || stale) && d.Attempts < maxAttempts {
			cp := *d
			out = append(out, &cp)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockDeliveryRepo) All() []model.DeliveryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.DeliveryRecord, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.records[id])
	}
	return out
}

// MockTxManager runs fn inline without a real transaction.
type MockTxManager struct {
	mu    sync.Mutex
	Calls int
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	return fn(ctx, nil)
}

// =============================
// Adapters
// =============================

type SentMessage struct {
	Token  string
	ChatID string
	Kind   string // text|photo
	Text   string
	URL    string
}

// MockTransport records every message. FailAt makes the n-th call (1-based) fail.
type MockTransport struct {
	mu     sync.Mutex
	Sent   []SentMessage
	calls  int
	FailAt int
}

var _ adapter.ChatTransport = (*MockTransport)(nil)

func (m *MockTransport) record(msg SentMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.FailAt > 0 && m.calls == m.FailAt {
		return fmt.Errorf("%w: simulated", domain.ErrTransportFailure)
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

func (m *MockTransport) SendText(ctx context.Context, token, chatID, text string, rows [][]adapter.InlineButton) error {
	return m.record(SentMessage{Token: token, ChatID: chatID, Kind: "text", Text: text})
}

func (m *MockTransport) SendPhoto(ctx context.Context, token, chatID, url, caption string, rows [][]adapter.InlineButton) error {
	return m.record(SentMessage{Token: token, ChatID: chatID, Kind: "photo", Text: caption, URL: url})
}

func (m *MockTransport) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.Sent...)
}

// MockLocker grants each key once until unlocked.
type MockLocker struct {
	mu   sync.Mutex
	held map[string]string
	Err  error
}

var _ adapter.Locker = (*MockLocker)(nil)

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held == nil {
		m.held = map[string]string{}
	}
	if _, ok := m.held[key]; ok {
		return "", domain.ErrLockNotAcquired
	}
	m.held[key] = "tok-" + key
	return m.held[key], nil
}

func (m *MockLocker) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] == token {
		delete(m.held, key)
	}
	return nil
}

// MockLimiter allows up to Limit calls in total.
type MockLimiter struct {
	mu    sync.Mutex
	calls int
	Limit int
}

func (m *MockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.calls <= m.Limit, nil
}

// MockOps records notifications synchronously.
type MockOps struct {
	mu     sync.Mutex
	Topics []string
	Texts  []string
}

func (m *MockOps) Notify(ctx context.Context, topic, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Topics = append(m.Topics, topic)
	m.Texts = append(m.Texts, text)
}

func (m *MockOps) Has(topic string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// Text returns the first message posted under topic.
func (m *MockOps) Text(topic string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.Topics {
		if t == topic {
			return m.Texts[i]
		}
	}
	return ""
}

// syncRunner runs tasks inline so tests observe their effects immediately.
type syncRunner struct {
	mu   sync.Mutex
	errs []error
	Full bool
}

func (r *syncRunner) Submit(task func(ctx context.Context) error) error {
	if r.Full {
		return domain.ErrQueueFull
	}
	err := task(context.Background())
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	return nil
}

// ---- generation fakes ----

type MockWriter struct {
	SceneList []string
	Err     error
}

func (m *MockWriter) Name() string { return "mock" }

func (m *MockWriter) Scenes(ctx context.Context, theme string, count int) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.SceneList, nil
}

// MockRenderer fails for scenes listed in FailFor.
type MockRenderer struct {
	FailFor map[string]bool
}

func (m *MockRenderer) Render(ctx context.Context, scene string) (string, error) {
	if m.FailFor[scene] {
		return "", fmt.Errorf("render %q: content policy", scene)
	}
	return "https://img.example/" + scene + ".png", nil
}
