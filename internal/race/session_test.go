package race_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chvlpont/typesprint/internal/models"
	"github.com/chvlpont/typesprint/internal/race"
	"github.com/chvlpont/typesprint/internal/store/memory"
)

func newRacePlayer(t *testing.T, st *memory.Store) *models.Player {
	t.Helper()
	ctx := context.Background()
	room, err := st.InsertRoom(ctx, "ABC123")
	require.NoError(t, err)
	player, err := st.InsertPlayer(ctx, room.ID, "gopher", true)
	require.NoError(t, err)
	return player
}

func fetchPlayer(t *testing.T, st *memory.Store, p *models.Player) models.Player {
	t.Helper()
	players, err := st.ListPlayers(context.Background(), p.RoomID)
	require.NoError(t, err)
	require.Len(t, players, 1)
	return players[0]
}

func TestSessionPublishesSnapshots(t *testing.T) {
	clock := clockwork.NewFakeClock()
	st := memory.NewWithClock(clock)
	player := newRacePlayer(t, st)
	ctx := context.Background()

	sess := race.NewSession(st, clock, player.ID, "go go go")

	snap, err := sess.SetInput(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Progress)
	assert.Equal(t, 100, snap.Accuracy)
	assert.Equal(t, 0, snap.WPM, "no time has passed yet")
	assert.False(t, snap.Finished)

	clock.Advance(time.Minute)

	snap, err = sess.SetInput(ctx, "go go g")
	require.NoError(t, err)
	assert.Equal(t, 7, snap.Progress)
	assert.Equal(t, 3, snap.WPM)
	assert.Equal(t, 100, snap.Accuracy)
	assert.False(t, snap.Finished)

	stored := fetchPlayer(t, st, player)
	assert.Equal(t, 7, stored.Progress)
	assert.Equal(t, 3, stored.WPM)
	assert.False(t, stored.Finished)
	assert.Nil(t, stored.FinishTime)
	assert.Equal(t, 0, stored.Score)
}

func TestSessionFinishByLengthRegardlessOfCorrectness(t *testing.T) {
	clock := clockwork.NewFakeClock()
	st := memory.NewWithClock(clock)
	player := newRacePlayer(t, st)
	ctx := context.Background()

	sess := race.NewSession(st, clock, player.ID, "abcd")

	_, err := sess.SetInput(ctx, "x")
	require.NoError(t, err)
	clock.Advance(30 * time.Second)

	snap, err := sess.SetInput(ctx, "xxxx")
	require.NoError(t, err)
	assert.True(t, snap.Finished, "typing the full length finishes even when every character is wrong")
	assert.Equal(t, 0, snap.Accuracy)
	assert.Equal(t, 0, snap.Score)
	require.NotNil(t, snap.FinishTime)
	assert.Equal(t, clock.Now(), *snap.FinishTime)

	stored := fetchPlayer(t, st, player)
	assert.True(t, stored.Finished)
}

func TestSessionScoreFixedAtFinish(t *testing.T) {
	clock := clockwork.NewFakeClock()
	st := memory.NewWithClock(clock)
	player := newRacePlayer(t, st)
	ctx := context.Background()

	sess := race.NewSession(st, clock, player.ID, "go go go")

	_, err := sess.SetInput(ctx, "g")
	require.NoError(t, err)
	clock.Advance(time.Minute)

	snap, err := sess.SetInput(ctx, "go go go")
	require.NoError(t, err)
	require.True(t, snap.Finished)
	assert.Equal(t, 3, snap.WPM)
	assert.Equal(t, 3, snap.Score)

	// Input after the finish transition is ignored: the snapshot keeps the
	// score and finished flag from the transition instant.
	clock.Advance(time.Hour)
	again, err := sess.SetInput(ctx, "garbage")
	require.NoError(t, err)
	assert.True(t, again.Finished)
	assert.Equal(t, 3, again.Score)

	stored := fetchPlayer(t, st, player)
	assert.Equal(t, 3, stored.Score)
	assert.Equal(t, 8, stored.Progress)
}

func TestSessionPasteDoesNotStartTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	st := memory.NewWithClock(clock)
	player := newRacePlayer(t, st)
	ctx := context.Background()

	sess := race.NewSession(st, clock, player.ID, "hello world")

	snap, err := sess.SetInput(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, 0, snap.WPM, "a multi-character first change never starts the timer")

	clock.Advance(time.Minute)
	snap, err = sess.SetInput(ctx, "hello w")
	require.NoError(t, err)
	assert.Equal(t, 0, snap.WPM, "timer still unset until a single-character change")
}
