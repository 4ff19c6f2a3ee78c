package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tracking is the static universe: who is followed, what is held and the cash balance.
type Tracking struct {
	Cash        float64            `yaml:"cash"`
	Actors      []ActorConfig      `yaml:"actors"`
	Instruments []InstrumentConfig `yaml:"instruments"`
}

// ActorConfig describes one tracked actor.
type ActorConfig struct {
	Name        string  `yaml:"name"`
	Weight      float64 `yaml:"weight"`
	SuccessRate float64 `yaml:"success_rate"`
}

// InstrumentConfig seeds one position. InitialValue is the dollar value held before any
// price is known; shares are derived from it on the first quote.
type InstrumentConfig struct {
	Ticker           string  `yaml:"ticker"`
	TargetAllocation float64 `yaml:"target_allocation"`
	InitialValue     float64 `yaml:"initial_value"`
}

// DefaultTracking is used when no tracking file is configured.
func DefaultTracking() *Tracking {
	return &Tracking{
		Cash: 1500,
		Actors: []ActorConfig{
			{Name: "Nancy Pelosi", Weight: 1.0, SuccessRate: 0.72},
			{Name: "Tommy Tuberville", Weight: 0.8, SuccessRate: 0.61},
			{Name: "Dan Crenshaw", Weight: 0.7, SuccessRate: 0.58},
			{Name: "Josh Gottheimer", Weight: 0.6, SuccessRate: 0.55},
			{Name: "Marjorie Taylor Greene", Weight: 0.5, SuccessRate: 0.49},
		},
		Instruments: []InstrumentConfig{
			{Ticker: "NVDA", TargetAllocation: 0.20, InitialValue: 2000},
			{Ticker: "MSFT", TargetAllocation: 0.20, InitialValue: 2000},
			{Ticker: "AAPL", TargetAllocation: 0.15, InitialValue: 1500},
			{Ticker: "GOOGL", TargetAllocation: 0.15, InitialValue: 1500},
			{Ticker: "AMZN", TargetAllocation: 0.15, InitialValue: 1500},
		},
	}
}

// LoadTracking reads the tracking universe from path, or returns the default when path is empty.
func LoadTracking(path string) (*Tracking, error) {
	if path == "" {
		return DefaultTracking(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tracking config %s: %w", path, err)
	}

	return ParseTracking(content)
}

// ParseTracking decodes a YAML tracking document and normalizes tickers to upper case.
func ParseTracking(content []byte) (*Tracking, error) {
	var t Tracking
	if err := yaml.Unmarshal(content, &t); err != nil {
		return nil, fmt.Errorf("failed to parse tracking config: %w", err)
	}

	for i := range t.Actors {
		t.Actors[i].Name = strings.TrimSpace(t.Actors[i].Name)
	}
	for i := range t.Instruments {
		t.Instruments[i].Ticker = strings.ToUpper(strings.TrimSpace(t.Instruments[i].Ticker))
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks ranges and uniqueness.
func (t *Tracking) Validate() error {
	if t.Cash < 0 {
		return fmt.Errorf("cash must not be negative")
	}
	if len(t.Actors) == 0 {
		return fmt.Errorf("at least one tracked actor is required")
	}
	if len(t.Instruments) == 0 {
		return fmt.Errorf("at least one tracked instrument is required")
	}

	names := make(map[string]bool, len(t.Actors))
	for _, a := range t.Actors {
		if a.Name == "" {
			return fmt.Errorf("actor name must not be empty")
		}
		if a.Weight < 0 || a.Weight > 1 {
			return fmt.Errorf("actor %s: weight %.2f out of range [0,1]", a.Name, a.Weight)
		}
		if a.SuccessRate < 0 || a.SuccessRate > 1 {
			return fmt.Errorf("actor %s: success rate %.2f out of range [0,1]", a.Name, a.SuccessRate)
		}
		key := strings.ToLower(a.Name)
		if names[key] {
			return fmt.Errorf("duplicate actor: %s", a.Name)
		}
		names[key] = true
	}

	tickers := make(map[string]bool, len(t.Instruments))
	for _, in := range t.Instruments {
		if in.Ticker == "" {
			return fmt.Errorf("instrument ticker must not be empty")
		}
		if in.TargetAllocation <= 0 || in.TargetAllocation > 1 {
			return fmt.Errorf("instrument %s: target allocation %.2f out of range (0,1]", in.Ticker, in.TargetAllocation)
		}
		if in.InitialValue < 0 {
			return fmt.Errorf("instrument %s: initial value must not be negative", in.Ticker)
		}
		if tickers[in.Ticker] {
			return fmt.Errorf("duplicate instrument: %s", in.Ticker)
		}
		tickers[in.Ticker] = true
	}

	return nil
}
