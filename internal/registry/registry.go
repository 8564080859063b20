// Package registry maintains a locally cached, eventually consistent view of
// every player in a room. The cache is refreshed by re-fetching the full
// player list whenever any change notification arrives; no diff is ever
// applied, so the view cannot drift from the store.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/chvlpont/typesprint/internal/models"
	"github.com/chvlpont/typesprint/internal/store"
)

// RefreshFunc observes each refreshed snapshot. It is called from the view's
// event loop, after the cache has been replaced.
type RefreshFunc func(players []models.Player)

// View is the player registry for one room.
type View struct {
	store     store.Store
	roomID    uuid.UUID
	onRefresh RefreshFunc

	mu      sync.RWMutex
	players []models.Player

	subs   []store.Subscription
	cancel context.CancelFunc
	done   chan struct{}
}

// NewView creates a registry view for roomID. onRefresh may be nil.
func NewView(st store.Store, roomID uuid.UUID, onRefresh RefreshFunc) *View {
	return &View{store: st, roomID: roomID, onRefresh: onRefresh}
}

// Start fetches the initial snapshot and subscribes to player inserts,
// updates and deletes for the room. Insert and update subscriptions are
// room-scoped; the delete stream is not, so a deletion anywhere in the
// players table triggers a (harmless, room-filtered) re-fetch here.
func (v *View) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.done = make(chan struct{})

	for _, ev := range []store.EventType{store.EventInsert, store.EventUpdate, store.EventDelete} {
		sub, err := v.store.Subscribe(ctx, store.TablePlayers, ev, store.Filter{RoomID: v.roomID})
		if err != nil {
			v.closeSubs()
			cancel()
			return fmt.Errorf("subscribe players %s: %w", ev, err)
		}
		v.subs = append(v.subs, sub)
	}

	if err := v.refresh(ctx); err != nil {
		log.Error().Err(err).Str("room_id", v.roomID.String()).Msg("initial player fetch failed")
	}

	go v.loop(ctx)
	return nil
}

// Players returns the cached snapshot, ordered by creation time ascending.
func (v *View) Players() []models.Player {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]models.Player, len(v.players))
	copy(out, v.players)
	return out
}

// Close unsubscribes from all change notifications and stops the loop.
func (v *View) Close() error {
	if v.cancel != nil {
		v.cancel()
	}
	v.closeSubs()
	if v.done != nil {
		<-v.done
	}
	return nil
}

func (v *View) loop(ctx context.Context) {
	defer close(v.done)

	// Merge all three subscription streams into one refresh trigger.
	events := make(chan store.Event, 16)
	var wg sync.WaitGroup
	for _, sub := range v.subs {
		wg.Add(1)
		go func(sub store.Subscription) {
			defer wg.Done()
			for ev := range sub.Events() {
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}(sub)
	}
	go func() {
		wg.Wait()
		close(events)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			log.Debug().
				Str("table", string(ev.Table)).
				Str("event", string(ev.Type)).
				Str("room_id", v.roomID.String()).
				Msg("change notification, refreshing players")
			if err := v.refresh(ctx); err != nil {
				log.Error().Err(err).Str("room_id", v.roomID.String()).Msg("player refresh failed")
			}
		}
	}
}

// refresh replaces the cached snapshot with a full re-fetch. The fetch
// itself is room-scoped, which is what keeps unfiltered delete
// notifications correct, just redundant.
func (v *View) refresh(ctx context.Context) error {
	players, err := v.store.ListPlayers(ctx, v.roomID)
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}

	v.mu.Lock()
	v.players = players
	v.mu.Unlock()

	if v.onRefresh != nil {
		v.onRefresh(players)
	}
	return nil
}

func (v *View) closeSubs() {
	for _, sub := range v.subs {
		if err := sub.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close subscription")
		}
	}
}
