// Package relay bridges Postgres row-change notifications onto NATS. Row
// triggers NOTIFY a channel with a JSON change payload; the relay listens on
// that channel and republishes each event to its change subject, where store
// subscribers pick it up. Delivery is at-most-once: the protocol tolerates
// missed events because clients re-fetch full state on the next
// notification.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/chvlpont/typesprint/internal/store"
)

// Config holds relay settings.
type Config struct {
	DatabaseURL   string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel string        // channel the row triggers NOTIFY on
	NATSURL       string
	MaxRetries    int
	RetryDelay    time.Duration
	PingInterval  time.Duration
}

// DefaultConfig returns relay defaults.
func DefaultConfig() Config {
	return Config{
		NotifyChannel: "typesprint_row_changes",
		NATSURL:       nats.DefaultURL,
		MaxRetries:    5,
		RetryDelay:    200 * time.Millisecond,
		PingInterval:  90 * time.Second,
	}
}

// Relay consumes NOTIFY payloads and republishes them to NATS.
type Relay struct {
	listener *pq.Listener
	nc       *nats.Conn
	cfg      Config
}

// New connects the Postgres listener and NATS.
func New(cfg Config) (*Relay, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		return nil, fmt.Errorf("listen on channel: %w", err)
	}

	nc, err := nats.Connect(cfg.NATSURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		l.Close()
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for row changes")

	return &Relay{listener: l, nc: nc, cfg: cfg}, nil
}

// Start pumps notifications until the context is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	pingTicker := time.NewTicker(r.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("relay shutting down")
			return r.Stop()
		case note := <-r.listener.Notify:
			if note == nil {
				// nil notification means the connection was re-established
				continue
			}
			if err := r.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to relay notification")
			}
		case <-pingTicker.C:
			if err := r.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

// Stop closes the listener and NATS connection.
func (r *Relay) Stop() error {
	r.nc.Close()
	return r.listener.Close()
}

// handleNotification parses one NOTIFY payload and publishes it to the
// event's change subject.
func (r *Relay) handleNotification(ctx context.Context, payload string) error {
	var ev store.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return fmt.Errorf("invalid change payload: %w", err)
	}

	subject := store.Subject(ev)
	if err := r.publishWithRetry(ctx, subject, []byte(payload)); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	log.Debug().
		Str("subject", subject).
		Str("row_id", ev.RowID.String()).
		Msg("relayed change event")
	return nil
}

func (r *Relay) publishWithRetry(ctx context.Context, subject string, data []byte) error {
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := r.nc.Publish(subject, data); err != nil {
			lastErr = err
			log.Error().
				Err(err).
				Int("attempt", attempt+1).
				Str("subject", subject).
				Msg("failed to publish, retrying")
			continue
		}

		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("subject", subject).
				Msg("publish succeeded after retry")
		}
		return nil
	}

	return fmt.Errorf("publish failed after %d attempts: %w", r.cfg.MaxRetries+1, lastErr)
}
