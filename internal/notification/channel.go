package notification

import (
	"context"

	"github.com/aristath/capitol/internal/domain"
	"github.com/rs/zerolog"
)

// Channel delivers a recommendation over one medium.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, rec domain.Recommendation) error
}

// Dispatcher sends issued recommendations over every configured channel. Delivery
// failures are logged and never retried.
type Dispatcher struct {
	channels []Channel
	log      zerolog.Logger
}

// NewDispatcher creates a dispatcher over channels.
func NewDispatcher(log zerolog.Logger, channels ...Channel) *Dispatcher {
	return &Dispatcher{
		channels: channels,
		log:      log.With().Str("service", "dispatcher").Logger(),
	}
}

// Channels returns the configured channel names.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for _, c := range d.channels {
		names = append(names, c.Name())
	}
	return names
}

// Send implements domain.Dispatcher.
func (d *Dispatcher) Send(ctx context.Context, rec domain.Recommendation) {
	for _, c := range d.channels {
		if err := c.Deliver(ctx, rec); err != nil {
			d.log.Error().
				Err(err).
				Str("channel", c.Name()).
				Str("ticker", rec.Ticker).
				Str("action", string(rec.Action)).
				Msg("Notification delivery failed")
			continue
		}
		d.log.Debug().Str("channel", c.Name()).Str("ticker", rec.Ticker).Msg("Notification delivered")
	}
}

// LogChannel writes recommendations to the structured log. It is always enabled.
type LogChannel struct {
	log zerolog.Logger
}

// NewLogChannel creates the log channel.
func NewLogChannel(log zerolog.Logger) *LogChannel {
	return &LogChannel{log: log.With().Str("channel", "log").Logger()}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Deliver(_ context.Context, rec domain.Recommendation) error {
	c.log.Info().
		Str("ticker", rec.Ticker).
		Str("action", string(rec.Action)).
		Float64("amount", rec.Amount).
		Float64("shares", rec.Shares).
		Float64("price", rec.Price).
		Float64("confidence", rec.Confidence).
		Str("actor", rec.Actor).
		Msg(PlainText(rec))
	return nil
}
