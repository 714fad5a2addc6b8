// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// ChatTransport pushes messages to a chat. The bot token is per call because
// deliveries and ops notifications go out through different bots.
type ChatTransport interface {
	SendText(ctx context.Context, botToken, chatID, text string, rows [][]InlineButton) error
	SendPhoto(ctx context.Context, botToken, chatID, photoURL, caption string, rows [][]InlineButton) error
}
