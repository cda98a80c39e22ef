// internal/models/card.go
package models

// Card is a card identity. Cards are fungible within an identity, so a hand or a
// pile is just an ordered list of identities.
type Card string

const (
	CardBomb       Card = "bomb"
	CardDefuse     Card = "defuse"
	CardSkip       Card = "skip"
	CardAttack     Card = "attack"
	CardSeeFuture  Card = "see_future"
	CardDrawBottom Card = "draw_bottom"
	CardShuffle    Card = "shuffle"
	CardClone      Card = "clone"
	CardNope       Card = "nope"
	CardPairTaco   Card = "pair_taco"
	CardPairMelon  Card = "pair_melon"
	CardPairBeard  Card = "pair_beard"
	CardPlain      Card = "plain"
)

// AllCards lists every identity in a fixed order. Deck building iterates this slice
// so that a seeded shuffle is reproducible.
var AllCards = []Card{
	CardBomb, CardDefuse, CardSkip, CardAttack, CardSeeFuture, CardDrawBottom,
	CardShuffle, CardClone, CardNope, CardPairTaco, CardPairMelon, CardPairBeard, CardPlain,
}

// IsPair reports whether c is one of the paired-steal variants.
func (c Card) IsPair() bool {
	switch c {
	case CardPairTaco, CardPairMelon, CardPairBeard:
		return true
	}
	return false
}

// Valid reports whether c is a known identity.
func (c Card) Valid() bool {
	for _, known := range AllCards {
		if c == known {
			return true
		}
	}
	return false
}
