package store

import "math"

// DecayFunc recomputes what value, recorded at logical time tValue, has
// decayed to over the interval [tStart, tEnd]. Implementations must be pure:
// replicas merging the same inputs have to agree on the result.
//
// Required properties:
//   - decay(0, t, v, t) == v
//   - non-increasing in tEnd-tValue for fixed v and tValue
type DecayFunc func(tStart, tEnd, value, tValue float64) float64

// DefaultDecayScale is the number of ticks over which a weight falls by a
// factor of e.
const DefaultDecayScale = 200

// ExponentialDecay returns the decay policy tStart + value*exp((tValue-tEnd)/scale).
func ExponentialDecay(scale float64) DecayFunc {
	return func(tStart, tEnd, value, tValue float64) float64 {
		return tStart + value*math.Exp((tValue-tEnd)/scale)
	}
}
