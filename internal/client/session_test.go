package client_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chvlpont/typesprint/internal/client"
	"github.com/chvlpont/typesprint/internal/models"
	"github.com/chvlpont/typesprint/internal/outcome"
	"github.com/chvlpont/typesprint/internal/rooms"
	"github.com/chvlpont/typesprint/internal/store/memory"
)

type results struct {
	mu       sync.Mutex
	winner   string
	rankings []models.Player
	raceText string
	deleted  bool
	fired    bool
}

func (r *results) callbacks() client.Callbacks {
	return client.Callbacks{
		OnRaceStarted: func(text string) {
			r.mu.Lock()
			r.raceText = text
			r.mu.Unlock()
		},
		OnResults: func(winner string, rankings []models.Player) {
			r.mu.Lock()
			r.winner = winner
			r.rankings = rankings
			r.fired = true
			r.mu.Unlock()
		},
		OnRoomDeleted: func() {
			r.mu.Lock()
			r.deleted = true
			r.mu.Unlock()
		},
	}
}

func (r *results) done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fired
}

func (r *results) roomDeleted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleted
}

func TestTwoPlayerRace(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	st := memory.NewWithClock(clock)

	hostRes := &results{}
	host := client.NewSession(st, clock, hostRes.callbacks())
	m, err := host.Create(ctx, "alice")
	require.NoError(t, err)
	require.True(t, m.Player.IsHost)
	assert.Equal(t, client.StateLobby, host.State())

	joinerRes := &results{}
	joiner := client.NewSession(st, clock, joinerRes.callbacks())
	_, err = joiner.Join(ctx, m.Room.Code, "bob")
	require.NoError(t, err)

	// Both registry views converge on the two-player roster.
	require.Eventually(t, func() bool {
		return len(host.Players()) == 2 && len(joiner.Players()) == 2
	}, time.Second, 10*time.Millisecond)

	// Typing before the race starts is rejected.
	_, err = host.Type(ctx, "a")
	require.ErrorIs(t, err, client.ErrNotRacing)

	// Only the host can start.
	require.ErrorIs(t, joiner.Start(ctx), client.ErrNotHost)

	require.NoError(t, host.Start(ctx))
	assert.Equal(t, client.StateRacing, host.State(), "the host transitions on its own action")

	// The joiner transitions when the room update notification lands.
	require.Eventually(t, func() bool {
		return joiner.State() == client.StateRacing
	}, time.Second, 10*time.Millisecond)

	hostRes.mu.Lock()
	text := hostRes.raceText
	hostRes.mu.Unlock()
	require.NotEmpty(t, text)

	// The host types honestly: first keystroke starts the clock, the full
	// text a minute later finishes with a real WPM.
	_, err = host.Type(ctx, text[:1])
	require.NoError(t, err)
	clock.Advance(time.Minute)
	snap, err := host.Type(ctx, text)
	require.NoError(t, err)
	require.True(t, snap.Finished)
	assert.Greater(t, snap.Score, 0)

	// The joiner pastes the whole text in one go. The timer never starts,
	// so WPM and score stay zero, but the race still counts as finished.
	snap, err = joiner.Type(ctx, text)
	require.NoError(t, err)
	require.True(t, snap.Finished)
	assert.Zero(t, snap.WPM)
	assert.Zero(t, snap.Score)

	// Each client's resolver fires independently after the settle delay.
	require.Eventually(t, func() bool {
		clock.Advance(outcome.ResultsDelay)
		return hostRes.done() && joinerRes.done()
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, client.StateResults, host.State())
	assert.Equal(t, client.StateResults, joiner.State())

	hostRes.mu.Lock()
	defer hostRes.mu.Unlock()
	assert.Equal(t, "alice", hostRes.winner)
	require.Len(t, hostRes.rankings, 2)
	assert.Equal(t, "alice", hostRes.rankings[0].Name)
	assert.Equal(t, "bob", hostRes.rankings[1].Name)

	host.Close()
	joiner.Close()
}

func TestHostLeaveDeletesRoomForEveryone(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	st := memory.NewWithClock(clock)

	host := client.NewSession(st, clock, client.Callbacks{})
	m, err := host.Create(ctx, "alice")
	require.NoError(t, err)

	joinerRes := &results{}
	joiner := client.NewSession(st, clock, joinerRes.callbacks())
	_, err = joiner.Join(ctx, m.Room.Code, "bob")
	require.NoError(t, err)

	require.NoError(t, host.Leave(ctx))
	assert.Equal(t, client.StateClosed, host.State())

	require.Eventually(t, joinerRes.roomDeleted, time.Second, 10*time.Millisecond)
	assert.Equal(t, client.StateClosed, joiner.State())

	room, err := st.GetRoom(ctx, m.Room.ID)
	require.NoError(t, err)
	assert.Nil(t, room)
}

func TestNonHostLeaveKeepsRoom(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	st := memory.NewWithClock(clock)

	host := client.NewSession(st, clock, client.Callbacks{})
	m, err := host.Create(ctx, "alice")
	require.NoError(t, err)
	defer host.Close()

	joiner := client.NewSession(st, clock, client.Callbacks{})
	_, err = joiner.Join(ctx, m.Room.Code, "bob")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(host.Players()) == 2
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, joiner.Leave(ctx))

	require.Eventually(t, func() bool {
		players := host.Players()
		return len(players) == 1 && players[0].Name == "alice"
	}, time.Second, 10*time.Millisecond)

	room, err := st.GetRoom(ctx, m.Room.ID)
	require.NoError(t, err)
	require.NotNil(t, room)
}

func TestSessionOutlivesCallerContext(t *testing.T) {
	clock := clockwork.NewFakeClock()
	st := memory.NewWithClock(clock)

	ctx, cancel := context.WithCancel(context.Background())
	host := client.NewSession(st, clock, client.Callbacks{})
	m, err := host.Create(ctx, "alice")
	require.NoError(t, err)
	defer host.Close()

	// The registry and room watchers run on the session's own context, so
	// cancelling the request context must not stop them.
	cancel()

	_, err = st.InsertPlayer(context.Background(), m.Room.ID, "bob", false)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(host.Players()) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestResumeValidatesAgainstStore(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	st := memory.NewWithClock(clock)

	host := client.NewSession(st, clock, client.Callbacks{})
	m, err := host.Create(ctx, "alice")
	require.NoError(t, err)
	host.Close()

	// A fresh session can reattach to the same membership.
	resumed := client.NewSession(st, clock, client.Callbacks{})
	require.NoError(t, resumed.Resume(ctx, m))
	assert.Equal(t, client.StateLobby, resumed.State())
	resumed.Close()

	// Once the room is gone, the same membership is rejected.
	require.NoError(t, st.DeleteRoom(ctx, m.Room.ID))
	stale := client.NewSession(st, clock, client.Callbacks{})
	err = stale.Resume(ctx, m)
	require.Error(t, err)
}

func TestResumeIntoStartedRoomEntersRace(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	st := memory.NewWithClock(clock)

	res := &results{}
	host := client.NewSession(st, clock, res.callbacks())
	m, err := host.Create(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, host.Start(ctx))
	host.Close()

	rejoined := client.NewSession(st, clock, res.callbacks())
	require.NoError(t, rejoined.Resume(ctx, m))
	defer rejoined.Close()
	assert.Equal(t, client.StateRacing, rejoined.State())

	snap, err := rejoined.Type(ctx, "x")
	require.NoError(t, err)
	assert.False(t, snap.Finished)
}

func TestJoinAfterStartRejected(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	st := memory.NewWithClock(clock)

	host := client.NewSession(st, clock, client.Callbacks{})
	m, err := host.Create(ctx, "alice")
	require.NoError(t, err)
	defer host.Close()
	require.NoError(t, host.Start(ctx))

	late := client.NewSession(st, clock, client.Callbacks{})
	_, err = late.Join(ctx, m.Room.Code, "bob")
	require.ErrorIs(t, err, rooms.ErrRoomAlreadyStarted)
}
