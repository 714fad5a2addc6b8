// File: internal/usecase/pack_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-premium-delivery/internal/domain"
	"telegram-premium-delivery/internal/domain/model"
	"telegram-premium-delivery/internal/domain/ports/adapter"
	"telegram-premium-delivery/internal/domain/ports/repository"
	"telegram-premium-delivery/internal/infra/metrics"
)

var _ PackUseCase = (*packUC)(nil)

const maxPackSize = 50

// PackUseCase builds themed photo packs for the latest_pack content source.
type PackUseCase interface {
	// Start creates a building pack and generates it in the background.
	Start(ctx context.Context, theme string, count int) (*model.ContentPack, error)
	// Generate fills pack synchronously and marks it ready when at least one image rendered.
	Generate(ctx context.Context, pack *model.ContentPack, count int) (*model.ContentPack, error)
	Get(ctx context.Context, id string) (*model.ContentPack, error)
}

type PackOptions struct {
	DefaultCount int
	Timeout      time.Duration
}

type packUC struct {
	packs    repository.ContentPackRepository
	tm       repository.TransactionManager
	writer   adapter.SceneWriter
	renderer adapter.ImageRenderer
	runner   TaskRunner
	ops      OpsNotifier
	opts     PackOptions
	log      *zerolog.Logger
	now      func() time.Time
}

// NewPackUseCase wires generation. tm may be nil, then items and status are written separately.
func NewPackUseCase(packs repository.ContentPackRepository, tm repository.TransactionManager, writer adapter.SceneWriter, renderer adapter.ImageRenderer, runner TaskRunner, ops OpsNotifier, opts PackOptions, logger *zerolog.Logger) *packUC {
	l := logger.With().Str("component", "PackGenerator").Logger()
	if opts.DefaultCount <= 0 {
		opts.DefaultCount = 15
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Minute
	}
	return &packUC{packs: packs, tm: tm, writer: writer, renderer: renderer, runner: runner, ops: ops, opts: opts, log: &l, now: time.Now}
}

func (uc *packUC) normalize(theme string, count int) (string, int, error) {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return "", 0, fmt.Errorf("empty theme: %w", domain.ErrInvalidArgument)
	}
	if count <= 0 {
		count = uc.opts.DefaultCount
	}
	if count > maxPackSize {
		count = maxPackSize
	}
	return theme, count, nil
}

func (uc *packUC) Start(ctx context.Context, theme string, count int) (*model.ContentPack, error) {
	if uc.writer == nil || uc.renderer == nil {
		return nil, errors.New("pack generation is not configured")
	}
	theme, count, err := uc.normalize(theme, count)
	if err != nil {
		return nil, err
	}
	pack := &model.ContentPack{
		ID:        uuid.NewString(),
		Theme:     theme,
		Status:    model.ContentPackStatusBuilding,
		CreatedAt: uc.now().UTC(),
	}
	if err := uc.packs.Create(ctx, repository.NoTX, pack); err != nil {
		return nil, fmt.Errorf("create pack: %w", err)
	}

	err = submitOrGo(uc.runner, context.WithoutCancel(ctx), func(runCtx context.Context) error {
		_, err := uc.Generate(runCtx, pack, count)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("schedule pack generation: %w", err)
	}
	uc.log.Info().Str("pack_id", pack.ID).Str("theme", theme).Int("count", count).Msg("pack generation scheduled")
	return pack, nil
}

func (uc *packUC) Generate(ctx context.Context, pack *model.ContentPack, count int) (*model.ContentPack, error) {
	start := uc.now()
	log := uc.log.With().Str("pack_id", pack.ID).Str("writer", uc.writer.Name()).Logger()
	_, count, err := uc.normalize(pack.Theme, count)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, uc.opts.Timeout)
	defer cancel()

	scenes, err := uc.writer.Scenes(ctx, pack.Theme, count)
	if err != nil {
		metrics.ObservePackGeneration(uc.writer.Name(), "failed", uc.now().Sub(start))
		log.Error().Err(err).Msg("scene generation failed")
		return nil, err
	}
	if len(scenes) > count {
		scenes = scenes[:count]
	}

	items := make([]model.ContentItem, 0, len(scenes))
	for i, scene := range scenes {
		if ctx.Err() != nil {
			log.Warn().Int("rendered", len(items)).Msg("generation deadline reached")
			break
		}
		url, err := uc.renderer.Render(ctx, scene)
		if err != nil {
			metrics.IncPackImage("skipped")
			log.Warn().Err(err).Int("scene", i+1).Msg("image skipped")
			continue
		}
		metrics.IncPackImage("ok")
		items = append(items, model.ContentItem{
			ID:       uuid.NewString(),
			PackID:   pack.ID,
			Position: len(items),
			Kind:     model.ContentKindPhoto,
			URL:      url,
			Caption:  scene,
		})
	}

	if len(items) == 0 {
		metrics.ObservePackGeneration(uc.writer.Name(), "empty", uc.now().Sub(start))
		log.Error().Int("scenes", len(scenes)).Msg("no image rendered, pack stays building")
		return nil, fmt.Errorf("pack %s: %w", pack.ID, domain.ErrNoContentAvailable)
	}

	sctx, scancel := withTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer scancel()
	if err := uc.finalize(sctx, pack.ID, items); err != nil {
		metrics.ObservePackGeneration(uc.writer.Name(), "failed", uc.now().Sub(start))
		return nil, err
	}

	ready := *pack
	ready.Status = model.ContentPackStatusReady
	ready.Items = items
	metrics.ObservePackGeneration(uc.writer.Name(), "ready", uc.now().Sub(start))
	log.Info().Int("items", len(items)).Int("requested", count).Msg("pack ready")
	if uc.ops != nil {
		uc.ops.Notify(ctx, TopicPackReady, fmt.Sprintf("Pack ready\nTheme: %s\nPhotos: %d/%d", pack.Theme, len(items), count))
	}
	return &ready, nil
}

// finalize stores items and flips the pack to ready in one transaction when possible.
func (uc *packUC) finalize(ctx context.Context, packID string, items []model.ContentItem) error {
	write := func(ctx context.Context, tx repository.Tx) error {
		if err := uc.packs.AddItems(ctx, tx, packID, items); err != nil {
			return fmt.Errorf("store pack items: %w", err)
		}
		if err := uc.packs.MarkReady(ctx, tx, packID); err != nil {
			return fmt.Errorf("mark pack ready: %w", err)
		}
		return nil
	}
	if uc.tm == nil {
		return write(ctx, repository.NoTX)
	}
	return uc.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, write)
}

func (uc *packUC) Get(ctx context.Context, id string) (*model.ContentPack, error) {
	return uc.packs.FindByID(ctx, repository.NoTX, id)
}
