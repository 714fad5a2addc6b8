// File: internal/usecase/catalog.go
package usecase

import (
	"context"
	"errors"
	"strings"

	"telegram-premium-delivery/internal/domain"
	"telegram-premium-delivery/internal/domain/model"
	"telegram-premium-delivery/internal/domain/ports/repository"
)

// Content source names as used in configuration and stored on delivery records.
const (
	SourceLatestPack = "latest_pack"
	SourceStaticItem = "static_item"
	SourceNone       = "none"
)

// ContentSource decides what a product type delivers.
type ContentSource interface {
	Name() string
	// Select returns the deliverable for a new delivery or domain.ErrNoContentAvailable.
	Select(ctx context.Context) (*model.Deliverable, error)
	// Lookup rebuilds a previously selected deliverable for redelivery.
	Lookup(ctx context.Context, id string) (*model.Deliverable, error)
}

// ProductCatalog maps provider products to product types and product types to content sources.
type ProductCatalog struct {
	products    map[string]model.ProductType
	defaultType model.ProductType
	sources     map[model.ProductType]ContentSource
	byName      map[string]ContentSource
}

func NewProductCatalog(products map[string]model.ProductType, defaultType model.ProductType, sources map[model.ProductType]ContentSource) *ProductCatalog {
	if !defaultType.Valid() {
		defaultType = model.ProductSubscription
	}
	c := &ProductCatalog{
		products:    map[string]model.ProductType{},
		defaultType: defaultType,
		sources:     map[model.ProductType]ContentSource{},
		byName:      map[string]ContentSource{SourceNone: noneSource{}},
	}
	for id, pt := range products {
		c.products[strings.TrimSpace(id)] = pt
	}
	for pt, s := range sources {
		if s == nil {
			continue
		}
		c.sources[pt] = s
		c.byName[s.Name()] = s
	}
	return c
}

// Resolve picks the product type for an event: explicit product_type, then the
// product_id mapping, then subscription for subscription_* kinds, then the default.
func (c *ProductCatalog) Resolve(kind model.EventKind, data model.WebhookData) model.ProductType {
	if data.ProductType != "" {
		if pt, err := model.ParseProductType(data.ProductType); err == nil {
			return pt
		}
	}
	if pt, ok := c.products[data.ProductID.String()]; ok && data.ProductID != "" {
		return pt
	}
	if kind.IsSubscriptionEvent() {
		return model.ProductSubscription
	}
	return c.defaultType
}

// SourceFor never returns nil; unconfigured types deliver nothing.
func (c *ProductCatalog) SourceFor(pt model.ProductType) ContentSource {
	if s, ok := c.sources[pt]; ok {
		return s
	}
	return noneSource{}
}

func (c *ProductCatalog) SourceByName(name string) ContentSource {
	if s, ok := c.byName[name]; ok {
		return s
	}
	return noneSource{}
}

// --- sources ---

type latestPackSource struct {
	packs repository.ContentPackRepository
}

// NewLatestPackSource delivers the newest ready content pack.
func NewLatestPackSource(packs repository.ContentPackRepository) ContentSource {
	return &latestPackSource{packs: packs}
}

func (s *latestPackSource) Name() string { return SourceLatestPack }

func (s *latestPackSource) Select(ctx context.Context) (*model.Deliverable, error) {
	p, err := s.packs.FindLatestReady(ctx, repository.NoTX)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNoContentAvailable
	}
	if err != nil {
		return nil, err
	}
	return packDeliverable(p)
}

func (s *latestPackSource) Lookup(ctx context.Context, id string) (*model.Deliverable, error) {
	p, err := s.packs.FindByID(ctx, repository.NoTX, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNoContentAvailable
	}
	if err != nil {
		return nil, err
	}
	return packDeliverable(p)
}

func packDeliverable(p *model.ContentPack) (*model.Deliverable, error) {
	if p == nil || len(p.Items) == 0 {
		return nil, domain.ErrNoContentAvailable
	}
	return &model.Deliverable{ID: p.ID, Source: SourceLatestPack, Title: p.Theme, Items: p.Items}, nil
}

type staticItemSource struct {
	item  model.ContentItem
	title string
}

// NewStaticItemSource always delivers one configured item.
func NewStaticItemSource(item model.ContentItem, title string) ContentSource {
	return &staticItemSource{item: item, title: title}
}

func (s *staticItemSource) Name() string { return SourceStaticItem }

func (s *staticItemSource) Select(context.Context) (*model.Deliverable, error) {
	if s.item.ID == "" || (s.item.URL == "" && s.item.Caption == "") {
		return nil, domain.ErrNoContentAvailable
	}
	return &model.Deliverable{ID: s.item.ID, Source: SourceStaticItem, Title: s.title, Items: []model.ContentItem{s.item}}, nil
}

func (s *staticItemSource) Lookup(ctx context.Context, id string) (*model.Deliverable, error) {
	if id != s.item.ID {
		return nil, domain.ErrNoContentAvailable
	}
	return s.Select(ctx)
}

type noneSource struct{}

func NewNoneSource() ContentSource { return noneSource{} }

func (noneSource) Name() string { return SourceNone }

func (noneSource) Select(context.Context) (*model.Deliverable, error) {
	return nil, domain.ErrNoContentAvailable
}

func (noneSource) Lookup(context.Context, string) (*model.Deliverable, error) {
	return nil, domain.ErrNoContentAvailable
}
