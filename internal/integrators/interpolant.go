package integrators

import "sort"

// Interpolant stores (t, y, dy) samples and evaluates a piecewise cubic
// Hermite curve through them. Times must be monotonic in one direction.
type Interpolant struct {
	dim   int
	times []float64
	ys    []float64
	dys   []float64
}

func NewInterpolant(dim int) *Interpolant {
	return &Interpolant{dim: dim}
}

func (h *Interpolant) Dim() int { return h.dim }
func (h *Interpolant) Len() int { return len(h.times) }

func (h *Interpolant) Reset() {
	h.times = h.times[:0]
	h.ys = h.ys[:0]
	h.dys = h.dys[:0]
}

// Add appends a sample. A sample at the same time as the last one replaces it.
func (h *Interpolant) Add(t float64, y, dy []float64) {
	if n := len(h.times); n > 0 && h.times[n-1] == t {
		copy(h.ys[(n-1)*h.dim:], y[:h.dim])
		copy(h.dys[(n-1)*h.dim:], dy[:h.dim])
		return
	}
	h.times = append(h.times, t)
	h.ys = append(h.ys, y[:h.dim]...)
	h.dys = append(h.dys, dy[:h.dim]...)
}

func (h *Interpolant) MinTime() float64 {
	if len(h.times) == 0 {
		return 0
	}
	return min(h.times[0], h.times[len(h.times)-1])
}

func (h *Interpolant) MaxTime() float64 {
	if len(h.times) == 0 {
		return 0
	}
	return max(h.times[0], h.times[len(h.times)-1])
}

// Sample returns views of the i-th stored sample.
func (h *Interpolant) Sample(i int) (float64, []float64, []float64) {
	lo, hi := i*h.dim, (i+1)*h.dim
	return h.times[i], h.ys[lo:hi], h.dys[lo:hi]
}

// Offset adds delta to component k of every stored sample.
func (h *Interpolant) Offset(k int, delta float64) {
	for i := range h.times {
		h.ys[i*h.dim+k] += delta
	}
}

// Evaluate writes the interpolated state at t into out. Times outside the
// sampled range are clamped to the nearest end.
func (h *Interpolant) Evaluate(t float64, out []float64) {
	n := len(h.times)
	switch {
	case n == 0:
		for i := range out {
			out[i] = 0
		}
		return
	case n == 1:
		copy(out, h.ys[:h.dim])
		return
	}

	forward := h.times[n-1] >= h.times[0]
	// first index whose time is past t in the direction of integration
	j := sort.Search(n, func(i int) bool {
		if forward {
			return h.times[i] > t
		}
		return h.times[i] < t
	})
	if j == 0 {
		copy(out, h.ys[:h.dim])
		return
	}
	if j == n {
		copy(out, h.ys[(n-1)*h.dim:])
		return
	}

	i := j - 1
	t0, t1 := h.times[i], h.times[j]
	dt := t1 - t0
	if dt == 0 {
		copy(out, h.ys[i*h.dim:(i+1)*h.dim])
		return
	}
	s := (t - t0) / dt
	s2 := s * s
	s3 := s2 * s
	h00 := 2*s3 - 3*s2 + 1
	h10 := s3 - 2*s2 + s
	h01 := -2*s3 + 3*s2
	h11 := s3 - s2

	y0 := h.ys[i*h.dim:]
	y1 := h.ys[j*h.dim:]
	f0 := h.dys[i*h.dim:]
	f1 := h.dys[j*h.dim:]
	for k := 0; k < h.dim; k++ {
		out[k] = h00*y0[k] + h10*dt*f0[k] + h01*y1[k] + h11*dt*f1[k]
	}
}
