package core

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	m "github.com/Rasimilian/Monte-Carlo-Simulation/models"
)

// Stable samples the four-parameter stable family S(alpha, beta, gamma, delta)
// with the Chambers-Mallows-Stuck method (CMS 1976, Weron 1996), in the S1
// parameterization so gamma scales and delta shifts the standard variate
// directly. alpha=2 reduces to Normal(delta, sqrt(2)*gamma), alpha=1 beta=0 to
// Cauchy(delta, gamma). One draw consumes one uniform and one exponential
// variate from the source, so a fixed source always yields the same sequence.
type Stable struct {
	Alpha float64 // stability index, (0, 2]
	Beta  float64 // skewness, [-1, 1]
	Gamma float64 // scale, > 0
	Delta float64 // location

	uniform     distuv.Uniform
	exponential distuv.Exponential

	// CMS skew constants, precomputed for alpha != 1
	skewShift float64
	skewScale float64
}

func NewStable(alpha, beta, gamma, delta float64, src rand.Source) (*Stable, error) {
	if err := validateStableParameters(alpha, beta, gamma); err != nil {
		return nil, err
	}

	st := &Stable{
		Alpha:       alpha,
		Beta:        beta,
		Gamma:       gamma,
		Delta:       delta,
		uniform:     distuv.Uniform{Min: -math.Pi / 2, Max: math.Pi / 2, Src: src},
		exponential: distuv.Exponential{Rate: 1, Src: src},
	}

	if alpha != 1 {
		tanHalf := math.Tan(math.Pi * alpha / 2)
		st.skewShift = math.Atan(beta*tanHalf) / alpha
		st.skewScale = math.Pow(1+beta*beta*tanHalf*tanHalf, 1/(2*alpha))
	}

	return st, nil
}

func validateStableParameters(alpha, beta, gamma float64) error {
	if !(alpha > 0 && alpha <= 2) {
		return fmt.Errorf("stability index must be in (0, 2], got %v: %w", alpha, m.ErrInvalidParameter)
	}
	if !(beta >= -1 && beta <= 1) {
		return fmt.Errorf("skewness must be in [-1, 1], got %v: %w", beta, m.ErrInvalidParameter)
	}
	if !(gamma > 0) {
		return fmt.Errorf("scale must be positive, got %v: %w", gamma, m.ErrInvalidParameter)
	}
	return nil
}

// Rand returns one stable variate.
func (st *Stable) Rand() float64 {
	u := st.uniform.Rand()
	w := st.exponential.Rand()

	if st.Alpha == 1 {
		halfPiBU := math.Pi/2 + st.Beta*u
		x := (halfPiBU*math.Tan(u) - st.Beta*math.Log((math.Pi/2)*w*math.Cos(u)/halfPiBU)) / (math.Pi / 2)

		y := st.Delta + st.Gamma*x
		if st.Beta != 0 {
			// the alpha=1 location correction of the S1 parameterization
			y += st.Beta * st.Gamma * math.Log(st.Gamma) * 2 / math.Pi
		}
		return y
	}

	shifted := st.Alpha * (u + st.skewShift)
	x := st.skewScale * math.Sin(shifted) / math.Pow(math.Cos(u), 1/st.Alpha) *
		math.Pow(math.Cos(u-shifted)/w, (1-st.Alpha)/st.Alpha)

	return st.Delta + st.Gamma*x
}
