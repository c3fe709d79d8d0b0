package config

import (
	"encoding/json"
	"fmt"
	"io"

	"buffer-language-server/internal/completion"
	"buffer-language-server/internal/position"
)

type Config struct {
	PositionEncoding string `json:"position_encoding"`
	CandidateOrder   string `json:"candidate_order"`
	Journal          string `json:"journal"` // empty disables the journal
	InspectorAddr    string `json:"inspector_addr"`
}

var defaultConfig = Config{
	PositionEncoding: "utf-16",
	CandidateOrder:   "occurrence",
	Journal:          "",
	InspectorAddr:    "127.0.0.1:0",
}

// Default returns the built-in settings.
func Default() Config {
	return defaultConfig
}

// Load overlays v, typically initializationOptions, onto the defaults.
func Load(v any) (Config, error) {
	return Overlay(defaultConfig, v)
}

// Overlay copies the fields present in v over base.
func Overlay(base Config, v any) (Config, error) {
	cfg := base
	if v == nil {
		return cfg, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return Config{}, fmt.Errorf("failed to marshal source: %w", err)
	}

	// only fields present in src will overwrite.
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal into Config: %w", err)
	}

	return cfg, cfg.Validate()
}

// LoadFromJSON reads JSON from r into a Config.
func LoadFromJSON(r io.Reader) (Config, error) {
	cfg := defaultConfig

	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if _, err := position.ParseEncoding(c.PositionEncoding); err != nil {
		return err
	}
	if _, err := completion.ParseOrder(c.CandidateOrder); err != nil {
		return err
	}
	return nil
}

// Encoding returns the parsed position encoding, falling back to UTF-16.
func (c Config) Encoding() position.Encoding {
	enc, err := position.ParseEncoding(c.PositionEncoding)
	if err != nil {
		return position.UTF16
	}
	return enc
}

// Order returns the parsed candidate order, falling back to occurrence order.
func (c Config) Order() completion.Order {
	order, err := completion.ParseOrder(c.CandidateOrder)
	if err != nil {
		return completion.OrderOccurrence
	}
	return order
}
