// Package quantile implements streaming quantile estimation, used for frame
// timing statistics.
package quantile

import (
	"math"
	"slices"
)

// Estimator implements the P-Square algorithm for a single quantile, with
// O(1) updates and constant memory.
//
// Reference:
// Jain, R. and Chlamtac, I. (1985). "The P² Algorithm for Dynamic Calculation
// of Quantiles and Histograms Without Storing Observations". Communications
// of the ACM, 28(10), pp. 1076-1085.
//
// Not safe for concurrent use.
type Estimator struct {
	// q stores the 5 marker heights
	q [5]float64
	// np stores the desired marker positions
	np [5]float64
	// dn stores the increments for the desired marker positions
	dn [5]float64
	// initBuffer stores the first 5 observations
	initBuffer [5]float64
	// n stores the actual marker positions
	n     [5]int
	p     float64
	count int
}

// New returns an estimator for quantile p, clamped to [0, 1].
func New(p float64) *Estimator {
	var e Estimator
	e.reset(p)
	return &e
}

func (e *Estimator) reset(p float64) {
	p = math.Max(0, math.Min(1, p))
	*e = Estimator{
		p:  p,
		dn: [5]float64{0, p / 2, p, (1 + p) / 2, 1},
	}
}

// P returns the target quantile.
func (e *Estimator) P() float64 {
	return e.p
}

// Update adds an observation.
func (e *Estimator) Update(x float64) {
	e.count++

	if e.count <= 5 {
		e.initBuffer[e.count-1] = x
		if e.count == 5 {
			e.initialize()
		}
		return
	}

	// find the cell k such that q[k] <= x < q[k+1]
	var k int
	switch {
	case x < e.q[0]:
		e.q[0] = x
		k = 0
	case x >= e.q[4]:
		e.q[4] = x
		k = 3
	default:
		for k = 0; k < 4; k++ {
			if e.q[k] <= x && x < e.q[k+1] {
				break
			}
		}
	}

	for i := k + 1; i < 5; i++ {
		e.n[i]++
	}
	for i := range e.np {
		e.np[i] += e.dn[i]
	}

	for i := 1; i < 4; i++ {
		d := e.np[i] - float64(e.n[i])
		if (d >= 1 && e.n[i+1]-e.n[i] > 1) || (d <= -1 && e.n[i-1]-e.n[i] < -1) {
			sign := 1
			if d < 0 {
				sign = -1
			}
			if q := e.parabolic(i, sign); e.q[i-1] < q && q < e.q[i+1] {
				e.q[i] = q
			} else {
				e.q[i] = e.linear(i, sign)
			}
			e.n[i] += sign
		}
	}
}

func (e *Estimator) initialize() {
	slices.Sort(e.initBuffer[:])
	for i := range e.q {
		e.q[i] = e.initBuffer[i]
		e.n[i] = i
	}
	e.np = [5]float64{0, 2 * e.p, 4 * e.p, 2 + 2*e.p, 4}
}

func (e *Estimator) parabolic(i, d int) float64 {
	df := float64(d)
	ni := float64(e.n[i])
	niPrev := float64(e.n[i-1])
	niNext := float64(e.n[i+1])

	term1 := df / (niNext - niPrev)
	term2 := (ni - niPrev + df) * (e.q[i+1] - e.q[i]) / (niNext - ni)
	term3 := (niNext - ni - df) * (e.q[i] - e.q[i-1]) / (ni - niPrev)

	return e.q[i] + term1*(term2+term3)
}

func (e *Estimator) linear(i, d int) float64 {
	if d == 1 {
		return e.q[i] + (e.q[i+1]-e.q[i])/float64(e.n[i+1]-e.n[i])
	}
	return e.q[i] - (e.q[i]-e.q[i-1])/float64(e.n[i]-e.n[i-1])
}

// Quantile returns the current estimate, or 0 if there are no observations.
func (e *Estimator) Quantile() float64 {
	if e.count == 0 {
		return 0
	}
	if e.count < 5 {
		sorted := slices.Clone(e.initBuffer[:e.count])
		slices.Sort(sorted)
		return sorted[int(float64(e.count-1)*e.p)]
	}
	return e.q[2]
}

// Count returns the number of observations.
func (e *Estimator) Count() int {
	return e.count
}

// Multi tracks several quantiles of the same observations, plus their
// count, sum and maximum.
//
// Not safe for concurrent use.
type Multi struct {
	estimators []*Estimator
	sum        float64
	max        float64
	count      int
}

// NewMulti returns a Multi tracking the given quantiles.
func NewMulti(quantiles ...float64) *Multi {
	m := &Multi{
		estimators: make([]*Estimator, len(quantiles)),
		max:        -math.MaxFloat64,
	}
	for i, p := range quantiles {
		m.estimators[i] = New(p)
	}
	return m
}

// Update adds an observation to every estimator.
func (m *Multi) Update(x float64) {
	m.count++
	m.sum += x
	if x > m.max {
		m.max = x
	}
	for _, e := range m.estimators {
		e.Update(x)
	}
}

// Quantile returns the estimate of the i-th tracked quantile.
func (m *Multi) Quantile(i int) float64 {
	if i < 0 || i >= len(m.estimators) {
		return 0
	}
	return m.estimators[i].Quantile()
}

// Quantiles returns the tracked quantiles, in order.
func (m *Multi) Quantiles() []float64 {
	ps := make([]float64, len(m.estimators))
	for i, e := range m.estimators {
		ps[i] = e.p
	}
	return ps
}

func (m *Multi) Count() int { return m.count }

func (m *Multi) Sum() float64 { return m.sum }

// Max returns the largest observation, or 0 if there are none.
func (m *Multi) Max() float64 {
	if m.count == 0 {
		return 0
	}
	return m.max
}

// Mean returns the arithmetic mean, or 0 if there are no observations.
func (m *Multi) Mean() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}

// Reset clears all observations.
func (m *Multi) Reset() {
	m.sum = 0
	m.count = 0
	m.max = -math.MaxFloat64
	for _, e := range m.estimators {
		e.reset(e.p)
	}
}
