// internal/game/game_test.go
package game

import (
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/kaboom/internal/cache"
	"github.com/jason-s-yu/kaboom/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu           sync.Mutex
	allEvents    []GameEvent
	playerEvents map[uuid.UUID][]GameEvent
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{playerEvents: make(map[uuid.UUID][]GameEvent)}
}

func (mb *mockBroadcaster) broadcastFn(ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = append(mb.allEvents, ev)
}

func (mb *mockBroadcaster) broadcastToPlayerFn(playerID uuid.UUID, ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.playerEvents[playerID] = append(mb.playerEvents[playerID], ev)
}

func (mb *mockBroadcaster) clear() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = nil
	mb.playerEvents = make(map[uuid.UUID][]GameEvent)
}

func (mb *mockBroadcaster) public(t GameEventType) []GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	var out []GameEvent
	for _, ev := range mb.allEvents {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (mb *mockBroadcaster) private(id uuid.UUID, t GameEventType) []GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	var out []GameEvent
	for _, ev := range mb.playerEvents[id] {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type testRoom struct {
	g       *KaboomGame
	ids     []uuid.UUID
	mb      *mockBroadcaster
	clock   *ManualClock
	results []RoundResult
}

// newTestRoom seats n participants in join order. The round starts as soon as the
// second one joins; later ones join mid-round.
func newTestRoom(t *testing.T, n int) *testRoom {
	t.Helper()
	g := NewKaboomGame(uuid.New(), DefaultHouseRules())
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	g.SetLogger(logger)

	r := &testRoom{g: g, mb: newMockBroadcaster(), clock: NewManualClock(time.Unix(1700000000, 0))}
	g.scheduler = r.clock
	g.rng = rand.New(rand.NewSource(1))
	g.BroadcastFn = r.mb.broadcastFn
	g.BroadcastToPlayerFn = r.mb.broadcastToPlayerFn
	g.OnRoundEnd = func(res RoundResult) { r.results = append(r.results, res) }

	for i := 0; i < n; i++ {
		id := uuid.New()
		r.ids = append(r.ids, id)
		require.NoError(t, g.AddPlayer(id, "p"+string(rune('1'+i))))
	}
	if n >= MinPlayers {
		require.Equal(t, PhasePlaying, g.Phase)
	}
	r.mb.clear()
	return r
}

// rig replaces the deck (bottom first) and every hand, and empties the discard pile.
func (r *testRoom) rig(deck []models.Card, hands ...[]models.Card) {
	r.g.Deck = NewDeck(deck...)
	r.g.Discard.Clear()
	for i, id := range r.ids {
		p := r.g.Players[id]
		if p == nil {
			continue
		}
		p.Hand = []models.Card{}
		if i < len(hands) {
			p.Hand = append(p.Hand, hands[i]...)
		}
	}
}

func (r *testRoom) hand(i int) []models.Card {
	return r.g.Players[r.ids[i]].Hand
}

func (r *testRoom) current() uuid.UUID {
	cur, _ := r.g.Turns.Current()
	return cur
}

func (r *testRoom) expireWindow() {
	r.clock.Advance(r.g.Rules.NopeWindow)
}

func (r *testRoom) cardTotal() int {
	n := r.g.Deck.Len() + r.g.Discard.Len()
	for _, p := range r.g.Players {
		n += len(p.Hand)
	}
	return n
}

func plains(n int) []models.Card {
	out := make([]models.Card, n)
	for i := range out {
		out[i] = models.CardPlain
	}
	return out
}

func TestRoundStartsWhenSecondPlayerJoins(t *testing.T) {
	g := NewKaboomGame(uuid.New(), DefaultHouseRules())
	mb := newMockBroadcaster()
	g.BroadcastFn = mb.broadcastFn
	g.BroadcastToPlayerFn = mb.broadcastToPlayerFn

	p1, p2 := uuid.New(), uuid.New()
	require.NoError(t, g.AddPlayer(p1, "alice"))
	assert.Equal(t, PhaseWaiting, g.Phase)
	assert.Equal(t, 0, g.Deck.Len())

	require.NoError(t, g.AddPlayer(p2, "bob"))
	assert.Equal(t, PhasePlaying, g.Phase)
	assert.Equal(t, 1, g.Round)

	for _, id := range []uuid.UUID{p1, p2} {
		p := g.Players[id]
		assert.True(t, p.Alive)
		assert.Len(t, p.Hand, 5)
		assert.NotContains(t, p.Hand, models.CardBomb)
	}
	assert.Equal(t, 54-10, g.Deck.Len())

	cur, ok := g.Turns.Current()
	require.True(t, ok)
	assert.Equal(t, p1, cur, "first joiner starts")
	assert.Equal(t, 1, g.Turns.TurnsLeft())
	assert.Len(t, mb.public(EventGameRoundStarted), 1)
	assert.NotEmpty(t, mb.private(p2, EventPrivateSyncState))
}

func TestRejoinOnlyResendsState(t *testing.T) {
	r := newTestRoom(t, 2)
	before := r.hand(0)

	require.NoError(t, r.g.AddPlayer(r.ids[0], "p1"))
	assert.Equal(t, before, r.hand(0))
	assert.Equal(t, 2, r.g.Turns.Len())
	assert.Empty(t, r.mb.public(EventPlayerJoined))
	assert.Len(t, r.mb.private(r.ids[0], EventPrivateSyncState), 1)
}

func TestLateJoinerIsDealtInWithoutMovingTurn(t *testing.T) {
	r := newTestRoom(t, 2)
	require.Equal(t, 54, r.cardTotal())
	cur := r.current()

	late := uuid.New()
	require.NoError(t, r.g.AddPlayer(late, "late"))

	p := r.g.Players[late]
	assert.True(t, p.Alive)
	assert.Len(t, p.Hand, 5)
	assert.NotContains(t, p.Hand, models.CardBomb)
	assert.Equal(t, late, r.g.Turns.Order()[2])
	assert.Equal(t, cur, r.current())
	assert.Equal(t, 54, r.cardTotal())
}

func TestSkipUncontestedPassesTurnWithoutDraw(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig(plains(3), []models.Card{models.CardSkip}, nil)

	require.NoError(t, r.g.PlayCard(r.ids[0], models.CardSkip))
	require.NotNil(t, r.g.pending)
	assert.ErrorIs(t, r.g.DrawCard(r.ids[0]), ErrActionPending)
	assert.Len(t, r.mb.public(EventGameActionPending), 1)

	r.expireWindow()
	assert.Nil(t, r.g.pending)
	assert.Equal(t, r.ids[1], r.current())
	assert.Equal(t, 3, r.g.Deck.Len(), "skip does not draw")
	assert.Empty(t, r.hand(0))
	assert.Len(t, r.mb.public(EventGameActionResolved), 1)
}

func TestNopeParityDecidesOutcome(t *testing.T) {
	for nopes := 0; nopes <= 3; nopes++ {
		r := newTestRoom(t, 2)
		r.rig(plains(3),
			[]models.Card{models.CardSkip, models.CardNope},
			[]models.Card{models.CardNope, models.CardNope},
		)
		nopers := []uuid.UUID{r.ids[1], r.ids[0], r.ids[1]}

		require.NoError(t, r.g.PlayCard(r.ids[0], models.CardSkip))
		for i := 0; i < nopes; i++ {
			require.NoError(t, r.g.PlayNope(nopers[i]))
		}
		r.expireWindow()

		if nopes%2 == 0 {
			assert.Equal(t, r.ids[1], r.current(), "%d nopes: skip executes", nopes)
			assert.Len(t, r.mb.public(EventGameActionResolved), 1)
		} else {
			assert.Equal(t, r.ids[0], r.current(), "%d nopes: skip cancelled", nopes)
			cancelled := r.mb.public(EventGameActionCancelled)
			require.Len(t, cancelled, 1)
			assert.Equal(t, CancelReasonNoped, cancelled[0].Payload["reason"])
		}
		assert.Equal(t, 1+nopes, r.g.Discard.Len(), "played cards stay discarded")
		assert.Equal(t, 0, r.clock.Pending())
	}
}

func TestNopeRestartsWindow(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig(plains(3), []models.Card{models.CardSkip}, []models.Card{models.CardNope})
	window := r.g.Rules.NopeWindow

	require.NoError(t, r.g.PlayCard(r.ids[0], models.CardSkip))
	r.clock.Advance(window * 3 / 4)
	require.NoError(t, r.g.PlayNope(r.ids[1]))
	assert.Equal(t, r.clock.Now().Add(window), r.g.pending.ResolveAt)

	r.clock.Advance(window * 3 / 4)
	require.NotNil(t, r.g.pending, "the nope reset the deadline")

	r.clock.Advance(window / 2)
	assert.Nil(t, r.g.pending)
	assert.Equal(t, r.ids[0], r.current())
	assert.Len(t, r.mb.public(EventGameActionUpdated), 1)
}

func TestSupersededCallbackIsIgnored(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig(plains(3), []models.Card{models.CardSkip}, []models.Card{models.CardNope})

	require.NoError(t, r.g.PlayCard(r.ids[0], models.CardSkip))
	seq := r.g.pending.Seq
	require.NoError(t, r.g.PlayNope(r.ids[1]))

	// A callback from the first window that slipped past cancellation.
	r.g.onPendingDeadline(seq, 1)
	require.NotNil(t, r.g.pending)
	assert.Empty(t, r.mb.public(EventGameActionCancelled))
}

func TestSelfNopeIsAllowed(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig(plains(3), []models.Card{models.CardSkip, models.CardNope}, nil)

	require.NoError(t, r.g.PlayCard(r.ids[0], models.CardSkip))
	require.NoError(t, r.g.PlayNope(r.ids[0]))
	r.expireWindow()
	assert.Equal(t, r.ids[0], r.current())
}

func TestNopeValidation(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig(plains(3), []models.Card{models.CardSkip, models.CardNope}, nil)

	assert.ErrorIs(t, r.g.PlayNope(r.ids[0]), ErrNoPendingAction)
	require.NoError(t, r.g.PlayCard(r.ids[0], models.CardSkip))
	assert.ErrorIs(t, r.g.PlayNope(r.ids[1]), ErrCardNotHeld)
	assert.ErrorIs(t, r.g.PlayNope(uuid.New()), ErrUnknownPlayer)
	assert.Equal(t, 0, r.g.pending.NopeCount)
}

func TestAttackGrantsTwoSlots(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig(plains(5), []models.Card{models.CardAttack}, nil)

	require.NoError(t, r.g.PlayCard(r.ids[0], models.CardAttack))
	r.expireWindow()

	assert.Equal(t, r.ids[1], r.current())
	assert.Equal(t, 2, r.g.Turns.TurnsLeft())
	assert.Empty(t, r.hand(0), "attacker does not draw")

	require.NoError(t, r.g.DrawCard(r.ids[1]))
	assert.Equal(t, r.ids[1], r.current())
	assert.Equal(t, 1, r.g.Turns.TurnsLeft())

	require.NoError(t, r.g.DrawCard(r.ids[1]))
	assert.Equal(t, r.ids[0], r.current())
	assert.Equal(t, 1, r.g.Turns.TurnsLeft())
}

func TestNopedAttackLeavesOneSlot(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig(plains(5), []models.Card{models.CardAttack}, []models.Card{models.CardNope})

	require.NoError(t, r.g.PlayCard(r.ids[0], models.CardAttack))
	require.NoError(t, r.g.PlayNope(r.ids[1]))
	r.expireWindow()

	assert.Equal(t, r.ids[0], r.current(), "attacker still owes a draw")
	require.NoError(t, r.g.DrawCard(r.ids[0]))
	assert.Equal(t, r.ids[1], r.current())
	assert.Equal(t, 1, r.g.Turns.TurnsLeft())
}

func TestClonedAttackStillGrantsTwoSlots(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig(plains(5), []models.Card{models.CardAttack}, []models.Card{models.CardClone})

	require.NoError(t, r.g.PlayCard(r.ids[0], models.CardAttack))
	r.expireWindow()
	require.Equal(t, 2, r.g.Turns.TurnsLeft())

	require.NoError(t, r.g.PlayCard(r.ids[1], models.CardClone))
	assert.Equal(t, models.CardAttack, r.g.pending.EffectCard)
	assert.Equal(t, models.CardAttack, r.g.pending.ClonedFrom)
	r.expireWindow()

	assert.Equal(t, r.ids[1], r.current(), "the clone spends one of two slots")
	assert.Equal(t, 1, r.g.Turns.TurnsLeft())

	require.NoError(t, r.g.DrawCard(r.ids[1]))
	assert.Equal(t, r.ids[0], r.current())
	assert.Equal(t, 2, r.g.Turns.TurnsLeft())
}

func TestCloneOfCloneCopiesOriginalEffect(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig(plains(5), []models.Card{models.CardShuffle, models.CardClone}, nil)

	require.NoError(t, r.g.PlayCard(r.ids[0], models.CardShuffle))
	r.expireWindow()
	r.g.Discard.PushClone(models.CardShuffle)

	require.NoError(t, r.g.PlayCard(r.ids[0], models.CardClone))
	assert.Equal(t, models.CardShuffle, r.g.pending.EffectCard)
	r.expireWindow()
	assert.Len(t, r.mb.public(EventGameDeckShuffled), 2)
}

func TestPlayCardValidation(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig(plains(3),
		[]models.Card{models.CardClone, models.CardPairTaco, models.CardPlain, models.CardDefuse},
		[]models.Card{models.CardSkip},
	)
	total := r.cardTotal()

	assert.ErrorIs(t, r.g.PlayCard(r.ids[1], models.CardSkip), ErrNotYourTurn)
	assert.ErrorIs(t, r.g.PlayCard(r.ids[0], models.CardSkip), ErrCardNotHeld)
	assert.ErrorIs(t, r.g.PlayCard(r.ids[0], models.CardPairTaco), ErrCardNotPlayable)
	assert.ErrorIs(t, r.g.PlayCard(r.ids[0], models.CardPlain), ErrCardNotPlayable)
	assert.ErrorIs(t, r.g.PlayCard(r.ids[0], models.CardDefuse), ErrCardNotPlayable)
	assert.ErrorIs(t, r.g.PlayCard(r.ids[0], models.CardClone), ErrDiscardEmpty)

	r.g.Discard.Push(models.CardNope)
	assert.ErrorIs(t, r.g.PlayCard(r.ids[0], models.CardClone), ErrNotClonable)
	r.g.Discard.Push(models.CardPairTaco)
	assert.ErrorIs(t, r.g.PlayCard(r.ids[0], models.CardClone), ErrNotClonable)

	assert.Len(t, r.hand(0), 4)
	assert.Equal(t, total+2, r.cardTotal())
	assert.Nil(t, r.g.pending)
}

func TestDrawBottomRejectedOnEmptyDeck(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig(nil, []models.Card{models.CardDrawBottom}, nil)

	assert.ErrorIs(t, r.g.PlayCard(r.ids[0], models.CardDrawBottom), ErrDeckEmpty)
	assert.ErrorIs(t, r.g.DrawCard(r.ids[0]), ErrDeckEmpty)
	assert.Equal(t, []models.Card{models.CardDrawBottom}, r.hand(0))
	assert.Equal(t, r.ids[0], r.current())
}

func TestDrawBottomTakesBottomCard(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig([]models.Card{models.CardDefuse, models.CardPlain, models.CardBomb}, []models.Card{models.CardDrawBottom}, nil)

	require.NoError(t, r.g.PlayCard(r.ids[0], models.CardDrawBottom))
	r.expireWindow()

	assert.Equal(t, []models.Card{models.CardDefuse}, r.hand(0))
	assert.Equal(t, r.ids[1], r.current())
	draws := r.mb.private(r.ids[0], EventPrivateDraw)
	require.Len(t, draws, 1)
	assert.Equal(t, models.CardDefuse, draws[0].Card)
	assert.Empty(t, r.mb.private(r.ids[1], EventPrivateDraw))
}

func TestDrawBottomOnDeckEmptiedDuringWindow(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig(plains(3), []models.Card{models.CardDrawBottom}, nil)

	require.NoError(t, r.g.PlayCard(r.ids[0], models.CardDrawBottom))
	late := uuid.New()
	require.NoError(t, r.g.AddPlayer(late, "late"))
	require.Equal(t, 0, r.g.Deck.Len(), "the late joiner was dealt the whole deck")
	require.Len(t, r.g.Players[late].Hand, 3)

	r.expireWindow()

	failed := r.mb.private(r.ids[0], EventPrivateActionFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, ActionFailDeckEmpty, failed[0].Payload["reason"])
	assert.Equal(t, models.CardDrawBottom, failed[0].Card)
	assert.Empty(t, r.mb.private(r.ids[0], EventPrivateDraw))
	assert.Empty(t, r.hand(0))
	assert.Equal(t, r.ids[1], r.current(), "the failed draw still ends the slot")
	assert.Equal(t, 4, r.cardTotal())
}

func TestSeeFutureRevealsTopToActorOnly(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig([]models.Card{models.CardPlain, models.CardSkip, models.CardAttack, models.CardBomb},
		[]models.Card{models.CardSeeFuture}, nil)

	require.NoError(t, r.g.PlayCard(r.ids[0], models.CardSeeFuture))
	r.expireWindow()

	seen := r.mb.private(r.ids[0], EventPrivateSeeFuture)
	require.Len(t, seen, 1)
	assert.Equal(t, []models.Card{models.CardBomb, models.CardAttack, models.CardSkip}, seen[0].Payload["cards"])
	assert.Empty(t, r.mb.private(r.ids[1], EventPrivateSeeFuture))
	assert.Equal(t, r.ids[0], r.current(), "see future does not end the turn")
	assert.Equal(t, 4, r.g.Deck.Len())
}

func TestShuffleClearsRevealedTop(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig(plains(4), []models.Card{models.CardShuffle}, nil)
	r.g.TopCardPublic = true

	require.NoError(t, r.g.PlayCard(r.ids[0], models.CardShuffle))
	r.expireWindow()
	assert.False(t, r.g.TopCardPublic)
	assert.Equal(t, r.ids[0], r.current())
}

func TestBombWithDefuseLocksUntilInserted(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig([]models.Card{models.CardPlain, models.CardBomb},
		[]models.Card{models.CardDefuse}, []models.Card{models.CardNope})
	total := r.cardTotal()

	require.NoError(t, r.g.DrawCard(r.ids[0]))
	assert.True(t, r.g.Players[r.ids[0]].Alive)
	assert.Equal(t, r.ids[0], r.g.DefusingID)
	assert.Equal(t, []models.Card{models.CardBomb}, r.hand(0))
	assert.Equal(t, total, r.cardTotal())

	ask := r.mb.private(r.ids[0], EventPrivateInsertBomb)
	require.Len(t, ask, 1)
	assert.Equal(t, 0, ask[0].Payload["minIndex"])
	assert.Equal(t, 1, ask[0].Payload["maxIndex"])

	assert.ErrorIs(t, r.g.DrawCard(r.ids[0]), ErrDefusing)
	assert.ErrorIs(t, r.g.DrawCard(r.ids[1]), ErrDefusing)
	assert.ErrorIs(t, r.g.PlayNope(r.ids[1]), ErrNoPendingAction)
	assert.ErrorIs(t, r.g.InsertBomb(r.ids[1], 0, false), ErrNotDefusing)

	require.NoError(t, r.g.InsertBomb(r.ids[0], 99, true))
	assert.Equal(t, uuid.Nil, r.g.DefusingID)
	assert.True(t, r.g.TopCardPublic, "clamped onto the top and revealed")
	assert.Equal(t, []models.Card{models.CardPlain, models.CardBomb}, r.g.Deck.Cards())
	assert.Equal(t, r.ids[1], r.current())
	assert.Equal(t, total, r.cardTotal())
}

func TestInsertBombBelowTopIsNeverPublic(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig([]models.Card{models.CardPlain, models.CardPlain, models.CardBomb},
		[]models.Card{models.CardDefuse}, nil)

	require.NoError(t, r.g.DrawCard(r.ids[0]))
	require.NoError(t, r.g.InsertBomb(r.ids[0], -3, true))
	assert.False(t, r.g.TopCardPublic)
	assert.Equal(t, models.CardBomb, r.g.Deck.Cards()[0])
}

func TestCloneNeutralisesBombBeforeRealDefuse(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig([]models.Card{models.CardPlain, models.CardBomb},
		[]models.Card{models.CardDefuse, models.CardClone}, nil)
	r.g.Discard.Push(models.CardDefuse)

	require.NoError(t, r.g.DrawCard(r.ids[0]))
	assert.Equal(t, r.ids[0], r.g.DefusingID)
	assert.ElementsMatch(t, []models.Card{models.CardDefuse, models.CardBomb}, r.hand(0))

	top, _ := r.g.Discard.Top()
	eff, _ := r.g.Discard.Effective()
	assert.Equal(t, models.CardClone, top)
	assert.Equal(t, models.CardDefuse, eff)

	defused := r.mb.public(EventPlayerBombDefused)
	require.Len(t, defused, 1)
	assert.Equal(t, models.CardClone, defused[0].Card)
}

func TestCloneWithoutDiscardedDefuseDoesNotSave(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig([]models.Card{models.CardPlain, models.CardBomb}, []models.Card{models.CardClone}, nil)
	r.g.Discard.Push(models.CardSkip)

	require.NoError(t, r.g.DrawCard(r.ids[0]))
	assert.False(t, r.g.Players[r.ids[0]].Alive)
	assert.Equal(t, []models.Card{models.CardClone}, r.hand(0))
}

func TestBombWithoutDefuseEliminatesAndEndsRound(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig([]models.Card{models.CardPlain, models.CardBomb}, []models.Card{models.CardSkip}, nil)
	total := r.cardTotal()

	require.NoError(t, r.g.DrawCard(r.ids[0]))
	assert.False(t, r.g.Players[r.ids[0]].Alive)
	assert.Len(t, r.mb.public(EventPlayerEliminated), 1)
	top, _ := r.g.Discard.Top()
	assert.Equal(t, models.CardBomb, top)

	assert.Equal(t, PhaseEnded, r.g.Phase)
	assert.Equal(t, r.ids[1], r.g.WinnerID)
	assert.Equal(t, 0, r.g.Deck.Len(), "deck is cleared at round end")
	assert.Equal(t, total-1, r.cardTotal())

	require.Len(t, r.results, 1)
	assert.Equal(t, r.ids[1], r.results[0].WinnerID)
	assert.Equal(t, []uuid.UUID{r.ids[1], r.ids[0]}, r.results[0].Placements)

	assert.ErrorIs(t, r.g.DrawCard(r.ids[1]), ErrNotPlaying)
}

func TestEliminationHandsTurnToNextAliveAndDropsSlots(t *testing.T) {
	r := newTestRoom(t, 3)
	r.rig([]models.Card{models.CardPlain, models.CardPlain, models.CardBomb},
		[]models.Card{models.CardAttack},
		[]models.Card{models.CardSkip},
		[]models.Card{models.CardAttack},
	)

	require.NoError(t, r.g.PlayCard(r.ids[0], models.CardAttack))
	r.expireWindow()
	require.Equal(t, r.ids[1], r.current())
	require.Equal(t, 2, r.g.Turns.TurnsLeft())

	require.NoError(t, r.g.DrawCard(r.ids[1]))
	assert.False(t, r.g.Players[r.ids[1]].Alive)
	assert.Equal(t, PhasePlaying, r.g.Phase)
	assert.Equal(t, r.ids[2], r.current())
	assert.Equal(t, 1, r.g.Turns.TurnsLeft(), "the second slot died with its owner")

	// The next attack skips the eliminated participant.
	require.NoError(t, r.g.PlayCard(r.ids[2], models.CardAttack))
	r.expireWindow()
	assert.Equal(t, r.ids[0], r.current())
	assert.Equal(t, 2, r.g.Turns.TurnsLeft())
	assert.Equal(t, 0, r.g.Turns.Debt(r.ids[1]))
}

func TestDebtDroppedWhenTargetLeaves(t *testing.T) {
	r := newTestRoom(t, 3)
	r.rig(plains(5), []models.Card{models.CardPlain}, nil, nil)
	r.g.Turns.AddDebt(r.ids[1], 1)

	r.g.HandleDisconnect(r.ids[1])
	assert.Equal(t, 0, r.g.Turns.Debt(r.ids[1]))

	require.NoError(t, r.g.DrawCard(r.ids[0]))
	assert.Equal(t, r.ids[2], r.current())
	assert.Equal(t, 1, r.g.Turns.TurnsLeft())
}

func TestStealMovesRandomCardPrivately(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig(plains(3),
		[]models.Card{models.CardPairTaco, models.CardPairTaco},
		[]models.Card{models.CardDefuse},
	)
	total := r.cardTotal()

	require.NoError(t, r.g.PlayPair(r.ids[0], models.CardPairTaco, r.ids[1]))
	assert.Equal(t, 2, r.g.Discard.Len())
	assert.Equal(t, r.ids[1], r.g.pending.TargetID)
	r.expireWindow()

	assert.Equal(t, []models.Card{models.CardDefuse}, r.hand(0))
	assert.Empty(t, r.hand(1))
	assert.Equal(t, total, r.cardTotal())

	success := r.mb.private(r.ids[0], EventPrivateStealSuccess)
	require.Len(t, success, 1)
	assert.Equal(t, models.CardDefuse, success[0].Card)

	victim := r.mb.private(r.ids[1], EventPrivateStolenFrom)
	require.Len(t, victim, 1)
	assert.Empty(t, victim[0].Card, "the victim never learns the card")
	assert.Equal(t, r.ids[0], victim[0].User.ID)

	public := r.mb.public(EventPlayerSteal)
	require.Len(t, public, 1)
	assert.Equal(t, true, public[0].Payload["success"])
	assert.Empty(t, public[0].Card)

	assert.Equal(t, r.ids[1], r.current(), "a settled steal ends the slot")
}

func TestStealFromEmptyHandFails(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig(plains(3), []models.Card{models.CardPairMelon, models.CardPairMelon}, nil)

	require.NoError(t, r.g.PlayPair(r.ids[0], models.CardPairMelon, r.ids[1]))
	r.expireWindow()

	public := r.mb.public(EventPlayerSteal)
	require.Len(t, public, 1)
	assert.Equal(t, false, public[0].Payload["success"])
	assert.Equal(t, StealFailTargetEmptyHand, public[0].Payload["reason"])
	assert.Equal(t, r.ids[1], r.current())
}

func TestStealTargetLeftDuringWindow(t *testing.T) {
	r := newTestRoom(t, 3)
	r.rig(plains(3), []models.Card{models.CardPairBeard, models.CardPairBeard}, nil, []models.Card{models.CardSkip})

	require.NoError(t, r.g.PlayPair(r.ids[0], models.CardPairBeard, r.ids[2]))
	r.g.HandleDisconnect(r.ids[2])
	r.expireWindow()

	public := r.mb.public(EventPlayerSteal)
	require.Len(t, public, 1)
	assert.Equal(t, StealFailTargetGone, public[0].Payload["reason"])
	assert.Equal(t, r.ids[1], r.current())
}

func TestNopedStealKeepsSlot(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig(plains(3), []models.Card{models.CardPairTaco, models.CardPairTaco}, []models.Card{models.CardNope, models.CardSkip})

	require.NoError(t, r.g.PlayPair(r.ids[0], models.CardPairTaco, r.ids[1]))
	require.NoError(t, r.g.PlayNope(r.ids[1]))
	r.expireWindow()

	assert.Empty(t, r.mb.public(EventPlayerSteal))
	assert.Equal(t, []models.Card{models.CardSkip}, r.hand(1))
	assert.Equal(t, r.ids[0], r.current())
}

func TestPlayPairValidation(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig(plains(3), []models.Card{models.CardPairTaco, models.CardPairTaco, models.CardSkip, models.CardSkip}, nil)

	assert.ErrorIs(t, r.g.PlayPair(r.ids[0], models.CardSkip, r.ids[1]), ErrNotAPair)
	assert.ErrorIs(t, r.g.PlayPair(r.ids[0], models.CardPairMelon, r.ids[1]), ErrCardNotHeld)
	assert.ErrorIs(t, r.g.PlayPair(r.ids[0], models.CardPairTaco, r.ids[0]), ErrInvalidTarget)
	assert.ErrorIs(t, r.g.PlayPair(r.ids[0], models.CardPairTaco, uuid.New()), ErrInvalidTarget)
	assert.Len(t, r.hand(0), 4)
}

func TestActorLeavingCancelsPending(t *testing.T) {
	r := newTestRoom(t, 3)
	r.rig(plains(3), []models.Card{models.CardSkip}, nil, nil)

	require.NoError(t, r.g.PlayCard(r.ids[0], models.CardSkip))
	r.g.HandleDisconnect(r.ids[0])

	cancelled := r.mb.public(EventGameActionCancelled)
	require.Len(t, cancelled, 1)
	assert.Equal(t, CancelReasonActorLeft, cancelled[0].Payload["reason"])
	assert.Nil(t, r.g.pending)
	assert.Equal(t, 0, r.clock.Pending())

	assert.Equal(t, r.ids[1], r.current(), "turn heals to the successor")
	r.expireWindow()
	assert.Empty(t, r.mb.public(EventGameActionResolved))
}

func TestDefuserLeavingReleasesLock(t *testing.T) {
	r := newTestRoom(t, 3)
	r.rig([]models.Card{models.CardPlain, models.CardBomb}, []models.Card{models.CardDefuse}, nil, nil)

	require.NoError(t, r.g.DrawCard(r.ids[0]))
	require.Equal(t, r.ids[0], r.g.DefusingID)

	r.g.HandleDisconnect(r.ids[0])
	assert.Equal(t, uuid.Nil, r.g.DefusingID)
	assert.Equal(t, r.ids[1], r.current())
	require.NoError(t, r.g.DrawCard(r.ids[1]))
}

func TestShortfallReturnsToWaiting(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig(plains(3), []models.Card{models.CardSkip}, nil)
	require.NoError(t, r.g.PlayCard(r.ids[0], models.CardSkip))

	r.g.HandleDisconnect(r.ids[1])
	assert.Equal(t, PhaseWaiting, r.g.Phase)
	assert.Nil(t, r.g.pending)
	assert.Equal(t, 0, r.g.Deck.Len())
	assert.Equal(t, 0, r.g.Discard.Len())
	assert.Equal(t, 0, r.clock.Pending())

	require.NoError(t, r.g.AddPlayer(uuid.New(), "again"))
	assert.Equal(t, PhasePlaying, r.g.Phase)
	assert.Equal(t, 2, r.g.Round)
}

func TestRestartAfterRoundEnd(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig([]models.Card{models.CardBomb}, nil, nil)
	require.NoError(t, r.g.DrawCard(r.ids[0]))
	require.Equal(t, PhaseEnded, r.g.Phase)

	spectator := uuid.New()
	require.NoError(t, r.g.AddPlayer(spectator, "late"))
	assert.False(t, r.g.Players[spectator].Alive, "joins the next round")

	require.NoError(t, r.g.Restart(r.ids[1]))
	assert.Equal(t, PhasePlaying, r.g.Phase)
	assert.Equal(t, 2, r.g.Round)
	assert.Equal(t, uuid.Nil, r.g.WinnerID)
	for _, p := range r.g.Players {
		assert.True(t, p.Alive)
		assert.Len(t, p.Hand, 5)
	}
	assert.Equal(t, 54, r.cardTotal())

	started := r.mb.public(EventGameRoundStarted)
	require.Len(t, started, 1)
	assert.Equal(t, true, started[0].Payload["restart"])

	assert.ErrorIs(t, r.g.Restart(uuid.New()), ErrUnknownPlayer)
}

func TestLastPlayerLeavingClosesRoom(t *testing.T) {
	r := newTestRoom(t, 2)
	var emptied []uuid.UUID
	r.g.OnEmpty = func(id uuid.UUID) { emptied = append(emptied, id) }

	r.g.HandleDisconnect(r.ids[0])
	assert.Empty(t, emptied)
	r.g.HandleDisconnect(r.ids[1])
	assert.Equal(t, []uuid.UUID{r.g.ID}, emptied)

	assert.ErrorIs(t, r.g.AddPlayer(uuid.New(), "late"), ErrRoomClosed)
	assert.Equal(t, 0, r.g.PlayerCount())
}

func TestSnapshotHidesOtherHands(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig(plains(3), []models.Card{models.CardSkip, models.CardNope}, []models.Card{models.CardDefuse})
	require.NoError(t, r.g.PlayCard(r.ids[0], models.CardSkip))

	s := r.g.GetCurrentObfuscatedGameState(r.ids[1])
	assert.Equal(t, []models.Card{models.CardDefuse}, s.Hand)
	assert.Equal(t, 3, s.DeckSize)
	assert.Equal(t, models.CardSkip, s.DiscardTop)
	require.NotNil(t, s.CurrentPlayerID)
	assert.Equal(t, r.ids[0], *s.CurrentPlayerID)
	require.NotNil(t, s.Pending)
	assert.Equal(t, models.CardSkip, s.Pending.EffectCard)

	require.Len(t, s.Players, 2)
	assert.Equal(t, 1, s.Players[0].HandSize)
	assert.True(t, s.Players[0].IsCurrentTurn)
	assert.Equal(t, 1, s.Players[1].HandSize)
}

func TestHandlePlayerActionDispatch(t *testing.T) {
	r := newTestRoom(t, 2)
	r.rig(plains(3), nil, nil)

	require.NoError(t, r.g.HandlePlayerAction(r.ids[0], models.GameAction{ActionType: models.ActionDraw}))
	assert.Equal(t, r.ids[1], r.current())

	require.NoError(t, r.g.HandlePlayerAction(r.ids[1], models.GameAction{ActionType: models.ActionRequestState}))
	assert.NotEmpty(t, r.mb.private(r.ids[1], EventPrivateSyncState))

	err := r.g.HandlePlayerAction(r.ids[1], models.GameAction{ActionType: "action_explode"})
	assert.ErrorIs(t, err, ErrUnknownAction)
}

// Random legal play must never create or destroy cards mid-round.
func TestCardTotalInvariantUnderRandomPlay(t *testing.T) {
	r := newTestRoom(t, 3)
	rng := rand.New(rand.NewSource(99))
	total := r.cardTotal()
	require.Equal(t, 54, total)

	for step := 0; step < 500 && r.g.Phase == PhasePlaying; step++ {
		cur := r.current()
		switch {
		case r.g.DefusingID != uuid.Nil:
			require.NoError(t, r.g.InsertBomb(r.g.DefusingID, rng.Intn(r.g.Deck.Len()+3)-1, rng.Intn(2) == 0))
		case r.g.pending != nil:
			noper := r.ids[rng.Intn(len(r.ids))]
			if rng.Intn(3) == 0 && r.g.Players[noper].Alive && r.g.Players[noper].HasCard(models.CardNope) {
				require.NoError(t, r.g.PlayNope(noper))
			} else {
				r.expireWindow()
			}
		default:
			played := false
			for _, c := range r.g.Players[cur].Hand {
				if _, ok := EffectOf(c); ok && !c.IsPair() && rng.Intn(2) == 0 {
					if r.g.PlayCard(cur, c) == nil {
						played = true
					}
					break
				}
			}
			if !played {
				require.NoError(t, r.g.DrawCard(cur))
			}
		}
		if r.g.Phase == PhasePlaying {
			require.Equal(t, total, r.cardTotal(), "step %d", step)
		}
	}
}

func TestRestartIsRecordedUnderTheNewRound(t *testing.T) {
	r := newTestRoom(t, 2)
	var recs []cache.GameActionRecord
	r.g.publish = func(rec cache.GameActionRecord) { recs = append(recs, rec) }
	before := r.g.Round

	require.NoError(t, r.g.Restart(r.ids[1]))

	var restart *cache.GameActionRecord
	for i := range recs {
		if recs[i].ActionType == models.ActionRestart {
			restart = &recs[i]
		}
	}
	require.NotNil(t, restart)
	assert.Equal(t, before+1, r.g.Round)
	assert.Equal(t, r.g.Round, restart.Round)
	assert.Equal(t, r.ids[1], restart.ActorUserID)
}
