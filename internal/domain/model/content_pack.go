package model

import "time"

type ContentPackStatus string

const (
	ContentPackStatusBuilding ContentPackStatus = "building"
	ContentPackStatusReady    ContentPackStatus = "ready"
)

type ContentKind string

const (
	ContentKindPhoto ContentKind = "photo"
	ContentKindText  ContentKind = "text"
)

// ContentPack is a themed bundle produced by pack generation and read by delivery.
type ContentPack struct {
	ID        string
	Theme     string
	Status    ContentPackStatus
	Items     []ContentItem // ordered by Position
	CreatedAt time.Time
}

type ContentItem struct {
	ID       string
	PackID   string
	Position int
	Kind     ContentKind
	URL      string
	Caption  string
}

// Deliverable is what a content source hands to the dispatcher:
// either a whole pack or one configured item.
type Deliverable struct {
	ID     string // pack id or item id
	Source string // name of the content source that produced it
	Title  string
	Items  []ContentItem
}
