// internal/game/deck.go
package game

import (
	"math/rand"

	"github.com/jason-s-yu/kaboom/internal/models"
)

// DeckSpec is the fixed multiset a deck is built from.
type DeckSpec map[models.Card]int

// DefaultDeckSpec returns the standard 54 card composition.
func DefaultDeckSpec() DeckSpec {
	return DeckSpec{
		models.CardBomb:       4,
		models.CardDefuse:     6,
		models.CardSkip:       4,
		models.CardAttack:     4,
		models.CardSeeFuture:  4,
		models.CardDrawBottom: 3,
		models.CardShuffle:    3,
		models.CardClone:      3,
		models.CardNope:       5,
		models.CardPairTaco:   4,
		models.CardPairMelon:  4,
		models.CardPairBeard:  4,
		models.CardPlain:      6,
	}
}

// Size returns the total number of cards the deck holds.
func (s DeckSpec) Size() int {
	n := 0
	for _, count := range s {
		n += count
	}
	return n
}

// Deck is the draw pile. Index 0 is the bottom and the last element is the top.
type Deck struct {
	cards []models.Card
}

// NewDeck returns a deck holding cards in the given order, bottom first.
func NewDeck(cards ...models.Card) *Deck {
	d := &Deck{cards: make([]models.Card, len(cards))}
	copy(d.cards, cards)
	return d
}

// BuildDeck constructs a deck from spec and shuffles it.
func BuildDeck(spec DeckSpec, rng *rand.Rand) *Deck {
	d := &Deck{cards: make([]models.Card, 0, spec.Size())}
	for _, c := range models.AllCards {
		for i := 0; i < spec[c]; i++ {
			d.cards = append(d.cards, c)
		}
	}
	d.Shuffle(rng)
	return d
}

// Len returns the number of cards left to draw.
func (d *Deck) Len() int {
	return len(d.cards)
}

// Cards returns a copy of the deck, bottom first.
func (d *Deck) Cards() []models.Card {
	out := make([]models.Card, len(d.cards))
	copy(out, d.cards)
	return out
}

// Shuffle applies a uniform Fisher-Yates permutation.
func (d *Deck) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// DrawTop removes and returns the top card.
func (d *Deck) DrawTop() (models.Card, error) {
	if len(d.cards) == 0 {
		return "", ErrDeckEmpty
	}
	last := len(d.cards) - 1
	c := d.cards[last]
	d.cards = d.cards[:last]
	return c, nil
}

// DrawBottom removes and returns the bottom card.
func (d *Deck) DrawBottom() (models.Card, error) {
	if len(d.cards) == 0 {
		return "", ErrDeckEmpty
	}
	c := d.cards[0]
	d.cards = d.cards[1:]
	return c, nil
}

// InsertAt places c at index, counted from the bottom. The index is clamped to
// [0, Len()]; inserting at Len() puts the card on top. The effective index is returned.
func (d *Deck) InsertAt(index int, c models.Card) int {
	if index < 0 {
		index = 0
	}
	if index > len(d.cards) {
		index = len(d.cards)
	}
	d.cards = append(d.cards, "")
	copy(d.cards[index+1:], d.cards[index:])
	d.cards[index] = c
	return index
}

// PeekTop returns up to n cards nearest the top, top first, without removing them.
func (d *Deck) PeekTop(n int) []models.Card {
	if n > len(d.cards) {
		n = len(d.cards)
	}
	out := make([]models.Card, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, d.cards[len(d.cards)-1-i])
	}
	return out
}

// IsTop reports whether index addresses the current top card.
func (d *Deck) IsTop(index int) bool {
	return len(d.cards) > 0 && index == len(d.cards)-1
}

// Clear empties the deck.
func (d *Deck) Clear() {
	d.cards = d.cards[:0]
}

// drawSafe draws from the top, moving any fatal card it meets to the bottom and
// retrying, for at most Len() attempts. relocated reports whether any card moved.
func (d *Deck) drawSafe(fatal models.Card) (card models.Card, relocated bool, ok bool) {
	for attempt := 0; attempt < len(d.cards); attempt++ {
		c, err := d.DrawTop()
		if err != nil {
			return "", relocated, false
		}
		if c != fatal {
			return c, relocated, true
		}
		d.InsertAt(0, c)
		relocated = true
	}
	return "", relocated, false
}

// DealHand draws up to n cards that are never the fatal identity. Fewer cards are
// returned if the deck runs out of safe cards. relocated reports whether any fatal
// card was pushed to the bottom; callers must reshuffle once after all dealing if so.
func (d *Deck) DealHand(n int, fatal models.Card) (hand []models.Card, relocated bool) {
	hand = make([]models.Card, 0, n)
	for i := 0; i < n; i++ {
		c, moved, ok := d.drawSafe(fatal)
		relocated = relocated || moved
		if !ok {
			break
		}
		hand = append(hand, c)
	}
	return hand, relocated
}

// discardEntry is one card on the discard pile. A clone remembers which identity it
// stood in for so that cloning it again copies the same effect.
type discardEntry struct {
	card models.Card
	as   models.Card
}

// DiscardPile is the ordered pile of spent cards; the last entry is the top.
type DiscardPile struct {
	entries []discardEntry
}

// NewDiscardPile returns an empty pile.
func NewDiscardPile() *DiscardPile {
	return &DiscardPile{}
}

// Push discards c.
func (p *DiscardPile) Push(c models.Card) {
	p.entries = append(p.entries, discardEntry{card: c, as: c})
}

// PushClone discards a clone that impersonated as.
func (p *DiscardPile) PushClone(as models.Card) {
	p.entries = append(p.entries, discardEntry{card: models.CardClone, as: as})
}

// Top returns the physical identity of the top card.
func (p *DiscardPile) Top() (models.Card, bool) {
	if len(p.entries) == 0 {
		return "", false
	}
	return p.entries[len(p.entries)-1].card, true
}

// Effective returns the identity the top card counts as for cloning.
func (p *DiscardPile) Effective() (models.Card, bool) {
	if len(p.entries) == 0 {
		return "", false
	}
	return p.entries[len(p.entries)-1].as, true
}

// Len returns the number of discarded cards.
func (p *DiscardPile) Len() int {
	return len(p.entries)
}

// Clear empties the pile.
func (p *DiscardPile) Clear() {
	p.entries = p.entries[:0]
}
