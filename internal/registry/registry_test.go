package registry_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chvlpont/typesprint/internal/models"
	"github.com/chvlpont/typesprint/internal/registry"
	"github.com/chvlpont/typesprint/internal/store"
	"github.com/chvlpont/typesprint/internal/store/memory"
)

type snapshotRecorder struct {
	mu        sync.Mutex
	snapshots [][]models.Player
}

func (r *snapshotRecorder) record(players []models.Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, players)
}

func (r *snapshotRecorder) latest() []models.Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return nil
	}
	return r.snapshots[len(r.snapshots)-1]
}

func TestViewInitialSnapshot(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	room, err := st.InsertRoom(ctx, "ABC123")
	require.NoError(t, err)
	_, err = st.InsertPlayer(ctx, room.ID, "host", true)
	require.NoError(t, err)
	_, err = st.InsertPlayer(ctx, room.ID, "guest", false)
	require.NoError(t, err)

	v := registry.NewView(st, room.ID, nil)
	require.NoError(t, v.Start(ctx))
	defer v.Close()

	players := v.Players()
	require.Len(t, players, 2)
	assert.Equal(t, "host", players[0].Name, "players are ordered by creation time")
	assert.Equal(t, "guest", players[1].Name)
}

func TestViewRefreshesOnInsertAndUpdate(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	room, err := st.InsertRoom(ctx, "ABC123")
	require.NoError(t, err)
	host, err := st.InsertPlayer(ctx, room.ID, "host", true)
	require.NoError(t, err)

	rec := &snapshotRecorder{}
	v := registry.NewView(st, room.ID, rec.record)
	require.NoError(t, v.Start(ctx))
	defer v.Close()

	_, err = st.InsertPlayer(ctx, room.ID, "guest", false)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(v.Players()) == 2
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, st.UpdatePlayerProgress(ctx, host.ID, store.ProgressUpdate{
		Progress: 12,
		WPM:      40,
		Accuracy: 100,
	}))

	require.Eventually(t, func() bool {
		players := v.Players()
		return len(players) == 2 && players[0].Progress == 12
	}, time.Second, 10*time.Millisecond)

	latest := rec.latest()
	require.Len(t, latest, 2)
	assert.Equal(t, 40, latest[0].WPM)
}

func TestViewIgnoresOtherRooms(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	room, err := st.InsertRoom(ctx, "ABC123")
	require.NoError(t, err)
	other, err := st.InsertRoom(ctx, "ZZZ999")
	require.NoError(t, err)
	_, err = st.InsertPlayer(ctx, room.ID, "host", true)
	require.NoError(t, err)

	v := registry.NewView(st, room.ID, nil)
	require.NoError(t, v.Start(ctx))
	defer v.Close()

	_, err = st.InsertPlayer(ctx, other.ID, "stranger", true)
	require.NoError(t, err)

	// The re-fetch is room-scoped, so even if a notification slips through
	// the cache never contains the other room's player.
	time.Sleep(50 * time.Millisecond)
	players := v.Players()
	require.Len(t, players, 1)
	assert.Equal(t, "host", players[0].Name)
}

func TestViewRefreshesOnDelete(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	room, err := st.InsertRoom(ctx, "ABC123")
	require.NoError(t, err)
	_, err = st.InsertPlayer(ctx, room.ID, "host", true)
	require.NoError(t, err)
	guest, err := st.InsertPlayer(ctx, room.ID, "guest", false)
	require.NoError(t, err)

	v := registry.NewView(st, room.ID, nil)
	require.NoError(t, v.Start(ctx))
	defer v.Close()

	require.NoError(t, st.DeletePlayer(ctx, guest.ID))

	require.Eventually(t, func() bool {
		players := v.Players()
		return len(players) == 1 && players[0].Name == "host"
	}, time.Second, 10*time.Millisecond)
}

func TestViewEmptiesAfterRoomDeletion(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	room, err := st.InsertRoom(ctx, "ABC123")
	require.NoError(t, err)
	_, err = st.InsertPlayer(ctx, room.ID, "host", true)
	require.NoError(t, err)

	v := registry.NewView(st, room.ID, nil)
	require.NoError(t, v.Start(ctx))
	defer v.Close()

	require.NoError(t, st.DeleteRoom(ctx, room.ID))

	require.Eventually(t, func() bool {
		return len(v.Players()) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestViewClose(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	room, err := st.InsertRoom(ctx, "ABC123")
	require.NoError(t, err)

	v := registry.NewView(st, room.ID, nil)
	require.NoError(t, v.Start(ctx))
	require.NoError(t, v.Close())

	// Writes after close must not panic or block.
	_, err = st.InsertPlayer(ctx, room.ID, "late", false)
	require.NoError(t, err)
}
