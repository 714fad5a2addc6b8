// File: cmd/webhooksim/main.go
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"telegram-premium-delivery/internal/infra/payment"
)

type payloadData struct {
	UserID      string  `json:"user_id"`
	ProductID   string  `json:"product_id,omitempty"`
	ProductType string  `json:"product_type,omitempty"`
	Amount      float64 `json:"amount,omitempty"`
	Currency    string  `json:"currency,omitempty"`
}

type payload struct {
	EventType string      `json:"event_type"`
	Data      payloadData `json:"data"`
}

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional, WEBHOOKSIM_* env vars also work)")
	eventType := flag.String("event", "", "override event_type")
	userID := flag.String("user", "", "override user_id")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *eventType != "" {
		cfg.EventType = *eventType
	}
	if *userID != "" {
		cfg.UserID = *userID
	}

	client := &http.Client{Timeout: 60 * time.Second}
	if cfg.Interval == "" {
		if err := sendWebhook(client, cfg); err != nil {
			fmt.Fprintln(os.Stderr, "webhook error:", err)
			os.Exit(1)
		}
		return
	}

	interval, err := time.ParseDuration(cfg.Interval)
	if err != nil || interval <= 0 {
		fmt.Fprintln(os.Stderr, "invalid interval duration:", cfg.Interval)
		os.Exit(1)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := sendWebhook(client, cfg); err != nil {
			fmt.Fprintln(os.Stderr, "webhook error:", err)
		}
		<-ticker.C
	}
}

func loadConfig(path string) (config, error) {
	v := viper.New()
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("webhook_path", "/api/v1/payments/tribute/webhook")
	v.SetDefault("signature_header", "trbt-signature")
	v.SetDefault("event_type", "purchase_success")
	v.SetDefault("product_type", "subscription")
	v.SetDefault("currency", "EUR")
	v.SetEnvPrefix("WEBHOOKSIM")
	v.AutomaticEnv()
	for _, k := range []string{"base_url", "secret", "user_id", "product_id", "interval"} {
		_ = v.BindEnv(k)
	}

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Secret = strings.TrimSpace(cfg.Secret)
	cfg.UserID = strings.TrimSpace(cfg.UserID)
	cfg.Interval = strings.TrimSpace(cfg.Interval)

	if cfg.Secret == "" || cfg.UserID == "" {
		return config{}, fmt.Errorf("config must include secret and user_id")
	}
	return cfg, nil
}

func sendWebhook(client *http.Client, cfg config) error {
	body, err := json.Marshal(payload{
		EventType: cfg.EventType,
		Data: payloadData{
			UserID:      cfg.UserID,
			ProductID:   cfg.ProductID,
			ProductType: cfg.ProductType,
			Amount:      cfg.Amount,
			Currency:    cfg.Currency,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	secret := cfg.Secret
	if cfg.BadSignature {
		secret += "-wrong"
	}
	request, err := http.NewRequestWithContext(context.Background(), http.MethodPost, cfg.BaseURL+cfg.WebhookPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	request.Header.Set(cfg.SignatureHeader, payment.Sign(body, secret))
	request.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(request)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	reply, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook failed: %s %s", resp.Status, strings.TrimSpace(string(reply)))
	}
	fmt.Printf("Webhook status: %s (%s for %s) %s\n", resp.Status, cfg.EventType, cfg.UserID, strings.TrimSpace(string(reply)))
	return nil
}
