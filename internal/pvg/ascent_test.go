package pvg_test

import (
	"context"
	"math"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/ascent/internal/astro"
	"github.com/san-kum/ascent/internal/dynamo"
	"github.com/san-kum/ascent/internal/pvg"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	mu     = 3.986004418e14
	rbody  = 6.371e6
	t0     = 661803.431918959
	peR    = rbody + 185e3
	apR    = rbody + 10e6
	incDeg = 28.608
)

var (
	r0 = r3.Vec{X: -521765.111703417, Y: -5568874.59934707, Z: 3050608.87783524}
	v0 = r3.Vec{X: 406.088016257895, Y: -38.0495807832894, Z: 0.000701038889818476}
	u0 = r3.Vec{X: -0.0820737379089317, Y: -0.874094973679233, Z: 0.478771328926086}
)

func standard() *pvg.Builder {
	return pvg.NewBuilder().
		Initial(r0, v0, u0, t0, mu, rbody).
		SetTarget(peR, apR, peR, astro.Deg2Rad(incDeg), 0, 0, true, true).
		AddStageUsingBurnTime(49119.7842689869, 7114.2513992454, 288.000034332275, 170.308460385726, 3, 3).
		AddStageUsingBurnTime(2848.62586760223, 1363.71123994759, 270.15767003304, 116.391834883409, 1, 1, pvg.OptimizeBurnTime()).
		AddOptimizedCoast(678.290157913434, 0, 0, 450, 1, 1).
		AddStageUsingBurnTime(678.290157913434, 177.582604389742, 230.039271734103, 53.0805126571005, 0, 0, pvg.Unguided())
}

var _ = Describe("Ascent", Label("slow"), Ordered, func() {
	var (
		sol      *pvg.Solution
		progress []pvg.Progress
		wantSma  float64
		wantEcc  float64
	)

	BeforeAll(func() {
		if testing.Short() {
			Skip("full ascent solve")
		}
		wantSma, wantEcc = astro.SmaEccFromApsides(peR, apR)

		a, err := standard().
			Observer(func(p pvg.Progress) { progress = append(progress, p) }).
			Build()
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		Expect(a.Run(ctx)).To(Succeed())
		Expect(a.GetOptimizer().Status()).To(Equal(pvg.Converged))
		sol = a.Solution()
	})

	It("drives the residual below tolerance", func() {
		Expect(sol.Znorm()).To(BeNumerically("<", 1e-9))
		Expect(progress).NotTo(BeEmpty())
		Expect(progress[len(progress)-1].Status).To(Equal(pvg.Converged))
	})

	It("reaches the target orbit", func() {
		el := sol.Elements()
		Expect(el.SMA).To(BeNumerically("~", wantSma, 1e-7*wantSma))
		Expect(el.Ecc).To(BeNumerically("~", wantEcc, 1e-7))
		Expect(el.Inc).To(BeNumerically("~", astro.Deg2Rad(incDeg), 1e-7))
	})

	It("has time to go in every phase", func() {
		for i := 0; i < sol.NumPhases(); i++ {
			Expect(sol.Tgo(t0, i)).To(BeNumerically(">", 0), "phase %d", i)
		}
	})

	It("keeps the optimized coast inside its bounds", func() {
		coast := sol.PhaseEnd(2) - sol.PhaseStart(2)
		Expect(coast).To(BeNumerically(">=", 0))
		Expect(coast).To(BeNumerically("<=", 450+1e-6))
	})

	It("starts from the launch state", func() {
		Expect(r3.Norm(r3.Sub(sol.R(t0), r0))).To(BeNumerically("<", 1e-6))
		Expect(r3.Norm(r3.Sub(sol.V(t0), v0))).To(BeNumerically("<", 1e-9))
		Expect(sol.M(t0)).To(BeNumerically("~", 49119.7842689869, 1e-9))
	})

	It("needs the expected velocity budget", func() {
		const vgo = 9595.3503336684062
		Expect(sol.Vgo(t0)).To(BeNumerically("~", vgo, 1e-7*vgo))
		Expect(sol.DV(sol.Tf())).To(BeNumerically("~", sol.Vgo(t0), 1e-6*sol.Vgo(t0)))
	})

	It("starts along the expected primer vector", func() {
		want := r3.Vec{X: 0.4907116486773232, Y: -0.35249571092720933, Z: 0.16642316543642413}
		Expect(r3.Norm(r3.Sub(sol.Pv(t0), want))).To(BeNumerically("<", 1e-7))
	})

	It("shuts the upper stage down early and burns the kick stage out", func() {
		Expect(sol.PhaseEnd(1) - sol.PhaseStart(1)).To(BeNumerically("<", 116.391834883409))
		Expect(sol.M(sol.PhaseEnd(1))).To(BeNumerically(">", 1363.71123994759))
		Expect(sol.M(sol.Tf())).To(BeNumerically("~", 177.582604389742, 1e-6))

		kick := sol.PhaseStart(3)
		Expect(r3.Norm(r3.Sub(sol.U(kick+1), sol.U(sol.Tf())))).To(BeNumerically("<", 1e-12))
	})

	It("reproduces the orbit from a warm start", func() {
		a, err := standard().OldSolution(sol).Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Run(context.Background())).To(Succeed())
		Expect(a.GetOptimizer().WarmStarted()).To(BeTrue())

		el, prev := a.Solution().Elements(), sol.Elements()
		Expect(el.SMA).To(BeNumerically("~", prev.SMA, 1e-7*prev.SMA))
		Expect(el.Ecc).To(BeNumerically("~", prev.Ecc, 1e-7))
		Expect(el.Inc).To(BeNumerically("~", prev.Inc, 1e-7))
	})

	It("builds a replan from the lowest point of the first stage", func() {
		var low pvg.Sample
		for _, p := range sol.Samples(400) {
			if p.Phase == 0 && (low.T == 0 || r3.Norm(p.R) < r3.Norm(low.R)) {
				low = p
			}
		}
		_, err := pvg.NewBuilder().
			Initial(low.R, low.V, low.U, low.T, mu, rbody).
			SetTarget(peR, apR, peR, astro.Deg2Rad(incDeg), 0, 0, true, true).
			AddStageUsingFinalMass(low.M, 7114.2513992454, sol.Phase(0).Thrust, sol.Phase(0).Isp, 3, 3).
			AddStageUsingBurnTime(2848.62586760223, 1363.71123994759, 270.15767003304, 116.391834883409, 1, 1, pvg.OptimizeBurnTime()).
			AddOptimizedCoast(678.290157913434, 0, 0, 450, 1, 1).
			AddStageUsingBurnTime(678.290157913434, 177.582604389742, 230.039271734103, 53.0805126571005, 0, 0, pvg.Unguided()).
			OldSolution(sol).
			Build()
		Expect(err).NotTo(HaveOccurred())
	})

	It("seeds a later solve after staging", func() {
		tStage := sol.PhaseStart(1) + 1
		a, err := pvg.NewBuilder().
			Initial(sol.R(tStage), sol.V(tStage), sol.U(tStage), tStage, mu, rbody).
			SetTarget(peR, apR, peR, astro.Deg2Rad(incDeg), 0, 0, true, true).
			AddStageUsingFinalMass(sol.M(tStage), 1363.71123994759, sol.Phase(1).Thrust, sol.Phase(1).Isp, 1, 1, pvg.OptimizeBurnTime()).
			AddOptimizedCoast(678.290157913434, 0, 0, 450, 1, 1).
			AddStageUsingBurnTime(678.290157913434, 177.582604389742, 230.039271734103, 53.0805126571005, 0, 0, pvg.Unguided()).
			OldSolution(sol).
			Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Run(context.Background())).To(Succeed())
		Expect(a.GetOptimizer().WarmStarted()).To(BeTrue())
		Expect(a.Solution().Elements().SMA).To(BeNumerically("~", wantSma, 1e-7*wantSma))
	})
})

var _ = Describe("Validation", func() {
	DescribeTable("rejects malformed input before integrating",
		func(b *pvg.Builder, want error) {
			_, err := b.Build()
			Expect(err).To(MatchError(want))
		},
		Entry("negative stage mass",
			pvg.NewBuilder().Initial(r0, v0, u0, t0, mu, rbody).
				SetTarget(peR, apR, peR, 0.5, 0, 0, true, true).
				AddStageUsingFinalMass(-10, -20, 1e5, 300, 1, 1),
			pvg.ErrInvalidPhase),
		Entry("coast bounds reversed",
			pvg.NewBuilder().Initial(r0, v0, u0, t0, mu, rbody).
				SetTarget(peR, apR, peR, 0.5, 0, 0, true, true).
				AddStageUsingFinalMass(1000, 400, 2e4, 300, 1, 1).
				AddOptimizedCoast(400, 0, 100, 50, 1, 1).
				AddStageUsingFinalMass(400, 100, 5e3, 320, 1, 1),
			pvg.ErrInvalidPhase),
		Entry("apoapsis below periapsis",
			pvg.NewBuilder().Initial(r0, v0, u0, t0, mu, rbody).
				SetTarget(apR, peR, apR, 0.5, 0, 0, true, true).
				AddStageUsingFinalMass(1000, 400, 2e4, 300, 1, 1),
			pvg.ErrInvalidTarget),
		Entry("zero gravitational parameter",
			pvg.NewBuilder().Initial(r0, v0, u0, t0, 0, rbody).
				SetTarget(peR, peR, peR, 0.5, 0, 0, true, true).
				AddStageUsingFinalMass(1000, 400, 2e4, 300, 1, 1),
			pvg.ErrInvalidProblem),
	)
})

var _ = Describe("Cancellation", func() {
	It("reports a canceled outcome", func() {
		a, err := standard().Build()
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err = a.Run(ctx)
		Expect(err).To(MatchError(dynamo.ErrContextCanceled))
		Expect(a.Solution()).To(BeNil())
	})
})

var _ = Describe("Scale", func() {
	It("makes the initial radius, mass and mu unity", func() {
		s := pvg.NewScale(mu, r3.Norm(r0), 49119.7842689869)
		Expect(s.ToLength(r3.Norm(r0))).To(BeNumerically("~", 1, 1e-15))
		Expect(s.ToMass(49119.7842689869)).To(BeNumerically("~", 1, 1e-15))
		Expect(mu * s.TimeScale * s.TimeScale / math.Pow(s.LengthScale, 3)).To(BeNumerically("~", 1, 1e-12))
	})
})
