package main

type config struct {
	BaseURL         string  `mapstructure:"base_url"`
	WebhookPath     string  `mapstructure:"webhook_path"`
	Secret          string  `mapstructure:"secret"`
	SignatureHeader string  `mapstructure:"signature_header"`
	EventType       string  `mapstructure:"event_type"`
	UserID          string  `mapstructure:"user_id"`
	ProductID       string  `mapstructure:"product_id"`
	ProductType     string  `mapstructure:"product_type"`
	Amount          float64 `mapstructure:"amount"`
	Currency        string  `mapstructure:"currency"`
	Interval        string  `mapstructure:"interval"` // empty sends once
	BadSignature    bool    `mapstructure:"bad_signature"`
}
