package postgres

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/chvlpont/typesprint/internal/store"
)

const subscriptionBuffer = 128

type natsSubscription struct {
	sub *nats.Subscription
	ch  chan store.Event
}

func (s *natsSubscription) Events() <-chan store.Event { return s.ch }

func (s *natsSubscription) Close() error {
	// Unsubscribe stops delivery; the pump goroutine closes the channel when
	// the message channel drains.
	return s.sub.Unsubscribe()
}

// Subscribe opens a change stream over NATS. Insert and update streams are
// room-scoped through the subject's room token; delete subjects carry no
// room token, so a delete filter is silently not honored and every table
// delete is delivered.
func (s *Store) Subscribe(ctx context.Context, table store.Table, event store.EventType, filter store.Filter) (store.Subscription, error) {
	subject := store.SubscribeSubject(table, event, filter)

	msgCh := make(chan *nats.Msg, subscriptionBuffer)
	natsSub, err := s.nc.ChanSubscribe(subject, msgCh)
	if err != nil {
		return nil, store.NewOperationError("subscribe "+subject, err)
	}

	sub := &natsSubscription{sub: natsSub, ch: make(chan store.Event, subscriptionBuffer)}

	go func() {
		defer close(sub.ch)
		for {
			select {
			case <-ctx.Done():
				natsSub.Unsubscribe()
				return
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				var ev store.Event
				if err := json.Unmarshal(msg.Data, &ev); err != nil {
					log.Warn().Err(err).Str("subject", msg.Subject).Msg("bad change event payload")
					continue
				}
				select {
				case sub.ch <- ev:
				default:
					log.Warn().Str("subject", msg.Subject).Msg("subscriber buffer full, dropping change event")
				}
			}
		}
	}()

	return sub, nil
}
