package models

import "github.com/google/uuid"

// Player is a participant seated in a room. Connections are owned by the transport
// layer, not by the player.
type Player struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Hand     []Card    `json:"hand"`
	Alive    bool      `json:"alive"`
}

// CountCard returns how many copies of c the player holds.
func (p *Player) CountCard(c Card) int {
	n := 0
	for _, held := range p.Hand {
		if held == c {
			n++
		}
	}
	return n
}

// HasCard reports whether the player holds at least one c.
func (p *Player) HasCard(c Card) bool {
	return p.CountCard(c) > 0
}

// RemoveCard removes the first copy of c from the hand.
func (p *Player) RemoveCard(c Card) bool {
	for i, held := range p.Hand {
		if held == c {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveCardAt removes and returns the card at idx.
func (p *Player) RemoveCardAt(idx int) Card {
	c := p.Hand[idx]
	p.Hand = append(p.Hand[:idx], p.Hand[idx+1:]...)
	return c
}

// AddCard appends c to the hand.
func (p *Player) AddCard(c Card) {
	p.Hand = append(p.Hand, c)
}
