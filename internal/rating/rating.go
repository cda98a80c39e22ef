// internal/rating/rating.go
package rating

import (
	"math"

	"github.com/google/uuid"
	"github.com/jason-s-yu/kaboom/internal/models"
)

// ApplyRound updates the ratings of users after a round. placements lists participant
// ids best first; users missing from placements keep their rating. Each user is rated
// against the average of everyone else in the round, scoring 1 for first place down to
// 0 for last.
func ApplyRound(users []models.User, placements []uuid.UUID) []models.User {
	rank := make(map[uuid.UUID]int, len(placements))
	for i, id := range placements {
		rank[id] = i
	}

	var rated []int
	for i, u := range users {
		if _, ok := rank[u.ID]; ok {
			rated = append(rated, i)
		}
	}
	out := make([]models.User, len(users))
	copy(out, users)
	if len(rated) < 2 {
		return out
	}

	states := make([]glicko, len(rated))
	var total float64
	for k, i := range rated {
		states[k] = current(users[i])
		total += states[k].rating()
	}

	for k, i := range rated {
		u := out[i]
		self := states[k]
		oppRating := (total - self.rating()) / float64(len(rated)-1)
		opp := fromScale(oppRating, DefaultDeviation, DefaultVolatility)

		next := update(self, opp, Score(rank[u.ID], len(rated)))
		u.Rating = int(math.Round(next.rating()))
		u.RatingDeviation = next.deviation()
		u.Volatility = next.sigma
		out[i] = u
	}
	return out
}

// Score maps a zero-based place among n finishers onto [0,1].
func Score(place, n int) float64 {
	if n < 2 {
		return 1
	}
	if place >= n {
		place = n - 1
	}
	return 1.0 - float64(place)/float64(n-1)
}

// current reads a user's stored rating, filling defaults for unrated accounts.
func current(u models.User) glicko {
	r := float64(u.Rating)
	if u.Rating == 0 {
		r = DefaultRating
	}
	rd := u.RatingDeviation
	if rd <= 0 {
		rd = DefaultDeviation
	}
	sigma := u.Volatility
	if sigma <= 0 {
		sigma = DefaultVolatility
	}
	return fromScale(r, rd, sigma)
}
