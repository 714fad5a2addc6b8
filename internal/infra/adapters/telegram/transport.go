package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-premium-delivery/internal/domain"
	"telegram-premium-delivery/internal/domain/ports/adapter"
)

var _ adapter.ChatTransport = (*Transport)(nil)

// Transport pushes messages through the Bot API. One client per bot token,
// built lazily without the getMe round trip.
type Transport struct {
	endpoint string
	client   *http.Client

	mu   sync.Mutex
	bots map[string]*tgbotapi.BotAPI
}

// NewTransport uses the public Bot API. timeout bounds every outbound call.
func NewTransport(timeout time.Duration) *Transport {
	return NewTransportWithEndpoint(tgbotapi.APIEndpoint, timeout)
}

// NewTransportWithEndpoint takes a format string like tgbotapi.APIEndpoint ("…/bot%s/%s").
func NewTransportWithEndpoint(endpoint string, timeout time.Duration) *Transport {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Transport{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		bots:     make(map[string]*tgbotapi.BotAPI),
	}
}

func (t *Transport) bot(token string) (*tgbotapi.BotAPI, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: empty bot token", domain.ErrTransportFailure)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.bots[token]; ok {
		return b, nil
	}
	b := &tgbotapi.BotAPI{Token: token, Client: t.client, Buffer: 100}
	b.SetAPIEndpoint(t.endpoint)
	t.bots[token] = b
	return b, nil
}

func (t *Transport) SendText(ctx context.Context, botToken, chatID, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := t.bot(botToken)
	if err != nil {
		return err
	}

	var msg tgbotapi.MessageConfig
	if id, ok := numericChat(chatID); ok {
		msg = tgbotapi.NewMessage(id, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(chatID, text)
	}
	msg.DisableWebPagePreview = true
	if kb, ok := keyboard(rows); ok {
		msg.ReplyMarkup = kb
	}
	return send(b, msg)
}

func (t *Transport) SendPhoto(ctx context.Context, botToken, chatID, photoURL, caption string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(photoURL) == "" {
		return fmt.Errorf("%w: empty photo url", domain.ErrTransportFailure)
	}
	b, err := t.bot(botToken)
	if err != nil {
		return err
	}

	file := tgbotapi.FileURL(photoURL)
	var photo tgbotapi.PhotoConfig
	if id, ok := numericChat(chatID); ok {
		photo = tgbotapi.NewPhoto(id, file)
	} else {
		photo = tgbotapi.NewPhotoToChannel(chatID, file)
	}
	photo.Caption = caption
	if kb, ok := keyboard(rows); ok {
		photo.ReplyMarkup = kb
	}
	return send(b, photo)
}

func send(b *tgbotapi.BotAPI, c tgbotapi.Chattable) error {
	if _, err := b.Send(c); err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			return fmt.Errorf("%w: telegram %d: %s", domain.ErrTransportFailure, apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("%w: %v", domain.ErrTransportFailure, err)
	}
	return nil
}

func numericChat(chatID string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	return id, err == nil
}

// keyboard converts port buttons; a button without URL or data uses its label as callback data.
func keyboard(rows [][]adapter.InlineButton) (tgbotapi.InlineKeyboardMarkup, bool) {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, r)
	}
	if len(kbRows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(kbRows...), true
}
