package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"telegram-premium-delivery/internal/domain"
	"telegram-premium-delivery/internal/domain/model"
)

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if !s.auth.Enabled() {
		writeError(w, http.StatusForbidden, "admin api disabled")
		return
	}
	if !s.auth.CheckKey(r.Header.Get("X-Admin-Key")) {
		writeError(w, http.StatusUnauthorized, "invalid admin key")
		return
	}
	tok, exp, err := s.auth.Mint()
	if err != nil {
		s.log.Error().Err(err).Msg("mint admin token")
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"token": tok, "expires_at": exp.UTC().Format(time.RFC3339)})
}

type createPackRequest struct {
	Theme string `json:"theme"`
	Count int    `json:"count"`
}

type itemView struct {
	Position int    `json:"position"`
	Kind     string `json:"kind"`
	URL      string `json:"url"`
	Caption  string `json:"caption,omitempty"`
}

type packView struct {
	ID        string     `json:"id"`
	Theme     string     `json:"theme"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	Items     []itemView `json:"items"`
}

func toPackView(p *model.ContentPack) packView {
	v := packView{ID: p.ID, Theme: p.Theme, Status: string(p.Status), CreatedAt: p.CreatedAt, Items: []itemView{}}
	for _, it := range p.Items {
		v.Items = append(v.Items, itemView{Position: it.Position, Kind: string(it.Kind), URL: it.URL, Caption: it.Caption})
	}
	return v
}

func (s *Server) handleCreatePack(w http.ResponseWriter, r *http.Request) {
	if s.packs == nil {
		writeError(w, http.StatusServiceUnavailable, "pack generation disabled")
		return
	}
	var req createPackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	p, err := s.packs.Start(r.Context(), req.Theme, req.Count)
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, domain.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, "generation queue full")
		return
	case err != nil:
		s.log.Error().Err(err).Msg("start pack generation")
		writeError(w, http.StatusInternalServerError, "could not start generation")
		return
	}
	writeJSON(w, http.StatusAccepted, toPackView(p))
}

func (s *Server) handleGetPack(w http.ResponseWriter, r *http.Request) {
	if s.packs == nil {
		writeError(w, http.StatusServiceUnavailable, "pack generation disabled")
		return
	}
	p, err := s.packs.Get(r.Context(), chi.URLParam(r, "packID"))
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "pack not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load pack")
		return
	}
	writeJSON(w, http.StatusOK, toPackView(p))
}

// resendRequest retries an existing record, or delivers afresh for an active entitlement.
type resendRequest struct {
	RecordID     string `json:"record_id"`
	SubscriberID string `json:"subscriber_id"`
	ProductType  string `json:"product_type"`
}

type outcomeView struct {
	Status    string `json:"status"`
	RecordID  string `json:"record_id,omitempty"`
	ContentID string `json:"content_id,omitempty"`
	Sent      int    `json:"sent"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleResend(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	var out model.DeliveryOutcome
	switch {
	case strings.TrimSpace(req.RecordID) != "":
		out = s.delivery.Redeliver(r.Context(), req.RecordID)
		if errors.Is(out.Err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "delivery record not found")
			return
		}
	case strings.TrimSpace(req.SubscriberID) != "":
		pt, err := model.ParseProductType(req.ProductType)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "unknown product_type")
			return
		}
		ent, err := s.ledger.Current(r.Context(), req.SubscriberID, pt)
		if err != nil || !ent.IsActiveAt(time.Now()) {
			writeError(w, http.StatusConflict, "no active entitlement")
			return
		}
		out = s.delivery.Deliver(r.Context(), req.SubscriberID, ent)
	default:
		writeError(w, http.StatusUnprocessableEntity, "record_id or subscriber_id is required")
		return
	}

	v := outcomeView{Status: string(out.Status), RecordID: out.RecordID, ContentID: out.ContentID, Sent: out.Sent}
	if out.Err != nil {
		v.Error = out.Err.Error()
	}
	code := http.StatusOK
	if out.Status == model.OutcomeFailed {
		code = http.StatusBadGateway
	}
	writeJSON(w, code, v)
}

type entitlementView struct {
	ID           string     `json:"id"`
	SubscriberID string     `json:"subscriber_id"`
	ProductType  string     `json:"product_type"`
	Status       string     `json:"status"`
	Active       bool       `json:"active"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (s *Server) handleGetEntitlement(w http.ResponseWriter, r *http.Request) {
	pt, err := model.ParseProductType(chi.URLParam(r, "productType"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "unknown product_type")
		return
	}
	ent, err := s.ledger.Current(r.Context(), chi.URLParam(r, "subscriberID"), pt)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "no entitlement")
		return
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "could not load entitlement")
		return
	}
	writeJSON(w, http.StatusOK, entitlementView{
		ID:           ent.ID,
		SubscriberID: ent.SubscriberID,
		ProductType:  string(ent.ProductType),
		Status:       string(ent.Status),
		Active:       ent.IsActiveAt(time.Now()),
		ExpiresAt:    ent.ExpiresAt,
		UpdatedAt:    ent.UpdatedAt,
	})
}
