package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-premium-delivery/internal/domain/ports/adapter"
)

var _ adapter.ChatTransport = (*NoopTransport)(nil)

// NoopTransport logs instead of sending. Used in dev mode without a bot token.
type NoopTransport struct {
	log *zerolog.Logger
}

func NewNoopTransport(logger *zerolog.Logger) *NoopTransport {
	l := logger.With().Str("component", "NoopTransport").Logger()
	return &NoopTransport{log: &l}
}

func (n *NoopTransport) SendText(ctx context.Context, _ string, chatID, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.log.Info().Str("chat_id", chatID).Int("button_rows", len(rows)).Str("text", text).Msg("send text")
	return nil
}

func (n *NoopTransport) SendPhoto(ctx context.Context, _ string, chatID, photoURL, caption string, _ [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.log.Info().Str("chat_id", chatID).Str("photo", photoURL).Str("caption", caption).Msg("send photo")
	return nil
}
