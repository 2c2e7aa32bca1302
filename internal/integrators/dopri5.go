package integrators

import (
	"math"

	"github.com/san-kum/ascent/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0

	// continuous extension
	d1 = -12715105075.0 / 11282082432.0
	d3 = 87487479700.0 / 32700410799.0
	d4 = -10690763975.0 / 1880347072.0
	d5 = 701980252875.0 / 199316789632.0
	d6 = -1453857185.0 / 822651844.0
	d7 = 69997945.0 / 29380423.0
)

// DormandPrince5 is the 7-stage FSAL embedded pair of order 5(4) with its
// 4th order dense output.
type DormandPrince5 struct{}

func NewDormandPrince5() *DormandPrince5 { return &DormandPrince5{} }

type dp5Workspace struct {
	k2, k3, k4, k5, k6 dynamo.State
	tmp                dynamo.State
	r1, r2, r3, r4, r5 dynamo.State
}

func (w *dp5Workspace) Release(a *dynamo.Arena) {
	for _, s := range []dynamo.State{w.k2, w.k3, w.k4, w.k5, w.k6, w.tmp, w.r1, w.r2, w.r3, w.r4, w.r5} {
		a.Put(s)
	}
}

func (d *DormandPrince5) Order() int { return 5 }

func (d *DormandPrince5) NewWorkspace(a *dynamo.Arena) Workspace {
	return &dp5Workspace{
		k2: a.Get(), k3: a.Get(), k4: a.Get(), k5: a.Get(), k6: a.Get(),
		tmp: a.Get(),
		r1:  a.Get(), r2: a.Get(), r3: a.Get(), r4: a.Get(), r5: a.Get(),
	}
}

func (d *DormandPrince5) Step(f dynamo.Func, t, h float64, y, k1, ynew, k7 []float64, accuracy float64, ws Workspace) float64 {
	w := ws.(*dp5Workspace)
	n := len(y)
	x := w.tmp

	for i := 0; i < n; i++ {
		x[i] = y[i] + h*b21*k1[i]
	}
	f(x, t+a2*h, w.k2)

	for i := 0; i < n; i++ {
		x[i] = y[i] + h*(b31*k1[i]+b32*w.k2[i])
	}
	f(x, t+a3*h, w.k3)

	for i := 0; i < n; i++ {
		x[i] = y[i] + h*(b41*k1[i]+b42*w.k2[i]+b43*w.k3[i])
	}
	f(x, t+a4*h, w.k4)

	for i := 0; i < n; i++ {
		x[i] = y[i] + h*(b51*k1[i]+b52*w.k2[i]+b53*w.k3[i]+b54*w.k4[i])
	}
	f(x, t+a5*h, w.k5)

	for i := 0; i < n; i++ {
		x[i] = y[i] + h*(b61*k1[i]+b62*w.k2[i]+b63*w.k3[i]+b64*w.k4[i]+b65*w.k5[i])
	}
	f(x, t+h, w.k6)

	for i := 0; i < n; i++ {
		ynew[i] = y[i] + h*(c1*k1[i]+c3*w.k3[i]+c4*w.k4[i]+c5*w.k5[i]+c6*w.k6[i])
	}
	f(ynew, t+h, k7)

	sum := 0.0
	for i := 0; i < n; i++ {
		errEst := h * (dc1*k1[i] + dc3*w.k3[i] + dc4*w.k4[i] + dc5*w.k5[i] + dc6*w.k6[i] + dc7*k7[i])
		sc := accuracy * (1 + math.Max(math.Abs(y[i]), math.Abs(ynew[i])))
		sum += (errEst / sc) * (errEst / sc)
	}
	return math.Sqrt(sum / float64(n))
}

func (d *DormandPrince5) InitialStep(f dynamo.Func, t0 float64, y0, dy0 []float64, direction, accuracy, hmax float64, ws Workspace) float64 {
	w := ws.(*dp5Workspace)
	n := len(y0)

	var dnf, dny float64
	for i := 0; i < n; i++ {
		sk := accuracy * (1 + math.Abs(y0[i]))
		dnf += (dy0[i] / sk) * (dy0[i] / sk)
		dny += (y0[i] / sk) * (y0[i] / sk)
	}

	h := 1e-6
	if dnf > 1e-10 && dny > 1e-10 {
		h = math.Sqrt(dny/dnf) * 0.01
	}
	h = math.Min(h, hmax)

	for i := 0; i < n; i++ {
		w.tmp[i] = y0[i] + direction*h*dy0[i]
	}
	f(w.tmp, t0+direction*h, w.k2)

	der2 := 0.0
	for i := 0; i < n; i++ {
		sk := accuracy * (1 + math.Abs(y0[i]))
		v := (w.k2[i] - dy0[i]) / sk
		der2 += v * v
	}
	der2 = math.Sqrt(der2) / h

	der12 := math.Max(der2, math.Sqrt(dnf))
	var h1 float64
	if der12 <= 1e-15 {
		h1 = math.Max(1e-6, h*1e-3)
	} else {
		h1 = math.Pow(0.01/der12, 1.0/float64(d.Order()))
	}

	return math.Min(math.Min(100*h, h1), hmax)
}

func (d *DormandPrince5) PrepareInterpolant(h float64, y, k1, ynew, k7 []float64, ws Workspace) {
	w := ws.(*dp5Workspace)
	for i := range y {
		dy := ynew[i] - y[i]
		bspl := h*k1[i] - dy
		w.r1[i] = y[i]
		w.r2[i] = dy
		w.r3[i] = bspl
		w.r4[i] = dy - h*k7[i] - bspl
		w.r5[i] = h * (d1*k1[i] + d3*w.k3[i] + d4*w.k4[i] + d5*w.k5[i] + d6*w.k6[i] + d7*k7[i])
	}
}

func (d *DormandPrince5) Interpolate(theta float64, out []float64, ws Workspace) {
	w := ws.(*dp5Workspace)
	s1 := 1 - theta
	for i := range out {
		out[i] = w.r1[i] + theta*(w.r2[i]+s1*(w.r3[i]+theta*(w.r4[i]+s1*w.r5[i])))
	}
}
