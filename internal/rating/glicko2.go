// internal/rating/glicko2.go
package rating

import "math"

const (
	// GlickoScale converts between the 1500 scale and Glicko-2's internal mu.
	GlickoScale = 173.7178
	// DefaultRating is the rating a new account starts with.
	DefaultRating = 1500.0
	// DefaultDeviation is the rating deviation a new account starts with.
	DefaultDeviation = 350.0
	// DefaultVolatility is the volatility a new account starts with.
	DefaultVolatility = 0.06
	// Tau constrains volatility changes between rounds.
	Tau = 0.5
	// Epsilon is the convergence tolerance of the volatility iteration.
	Epsilon = 0.000001
)

// glicko is one rating in Glicko-2 space.
type glicko struct {
	mu    float64
	phi   float64
	sigma float64
}

func fromScale(r, rd, sigma float64) glicko {
	return glicko{
		mu:    (r - DefaultRating) / GlickoScale,
		phi:   rd / GlickoScale,
		sigma: sigma,
	}
}

func (r glicko) rating() float64 {
	return r.mu*GlickoScale + DefaultRating
}

func (r glicko) deviation() float64 {
	return r.phi * GlickoScale
}

// update applies a single-period Glicko-2 update of r against opp for score in [0,1].
func update(r, opp glicko, score float64) glicko {
	gVal := gPhi(opp.phi)
	eVal := expected(r.mu, opp.mu, opp.phi)
	v := 1.0 / (gVal * gVal * eVal * (1 - eVal))
	delta := v * gVal * (score - eVal)

	a := math.Log(r.sigma * r.sigma)
	fx := func(x float64) float64 {
		return volatilityFn(x, r.phi, v, delta, a)
	}

	A := a
	var B float64
	if delta*delta > r.phi*r.phi+v {
		B = math.Log(delta*delta - r.phi*r.phi - v)
	} else {
		k := 1.0
		for fx(a-k*Tau) < 0 {
			k++
		}
		B = a - k*Tau
	}

	fA, fB := fx(A), fx(B)
	for i := 0; i < 100 && math.Abs(B-A) > Epsilon; i++ {
		C := A + (A-B)*fA/(fB-fA)
		fC := fx(C)
		if fC*fB <= 0 {
			A, fA = B, fB
		} else {
			fA /= 2
		}
		B, fB = C, fC
	}

	sigma := math.Exp(A / 2)
	phiStar := math.Sqrt(r.phi*r.phi + sigma*sigma)
	phi := 1.0 / math.Sqrt(1.0/(phiStar*phiStar)+1.0/v)
	mu := r.mu + phi*phi*gVal*(score-eVal)
	return glicko{mu: mu, phi: phi, sigma: sigma}
}

// gPhi is 1/sqrt(1+3phi^2/pi^2).
func gPhi(phi float64) float64 {
	return 1.0 / math.Sqrt(1.0+3.0*phi*phi/(math.Pi*math.Pi))
}

// expected is the expected score of mu against an opponent (mu2, phi2).
func expected(mu, mu2, phi2 float64) float64 {
	return 1.0 / (1.0 + math.Exp(-gPhi(phi2)*(mu-mu2)))
}

func volatilityFn(x, phi, v, delta, a float64) float64 {
	ex := math.Exp(x)
	num := ex * (delta*delta - phi*phi - v - ex)
	den := 2.0 * (phi*phi + v + ex) * (phi*phi + v + ex)
	return num/den - (x-a)/(Tau*Tau)
}
