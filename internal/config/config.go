package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/san-kum/ascent/internal/astro"
	"github.com/san-kum/ascent/internal/pvg"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMu     = 3.986004418e14
	DefaultRadius = 6.371e6

	StageBurn       = "burn"
	StageCoast      = "coast"
	StageFixedCoast = "fixed_coast"
)

var ErrInvalidConfig = errors.New("config: invalid scenario")

// Config is one ascent scenario.
type Config struct {
	Name    string        `yaml:"name"`
	Body    BodyConfig    `yaml:"body"`
	Initial InitialConfig `yaml:"initial"`
	Target  TargetConfig  `yaml:"target"`
	Stages  []StageConfig `yaml:"stages"`
	Solver  SolverConfig  `yaml:"solver"`
}

type Vec3 [3]float64

func (v Vec3) R3() r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }

type BodyConfig struct {
	Mu     float64 `yaml:"mu"`
	Radius float64 `yaml:"radius"`
}

type InitialConfig struct {
	R0 Vec3    `yaml:"r0,flow"`
	V0 Vec3    `yaml:"v0,flow"`
	U0 Vec3    `yaml:"u0,flow"`
	T0 float64 `yaml:"t0"`
}

// TargetConfig radii are in metres from the body centre, angles in degrees.
type TargetConfig struct {
	Periapsis   float64 `yaml:"periapsis"`
	Apoapsis    float64 `yaml:"apoapsis"`
	Attach      float64 `yaml:"attach"`
	Inclination float64 `yaml:"inclination_deg"`
	LAN         float64 `yaml:"lan_deg"`
	ArgP        float64 `yaml:"argp_deg"`
	LANFree     bool    `yaml:"lan_free"`
	ArgPFree    bool    `yaml:"argp_free"`
}

// StageConfig describes one phase. Burns give either thrust or burn_time.
type StageConfig struct {
	Kind           string  `yaml:"kind"`
	M0             float64 `yaml:"m0"`
	Mf             float64 `yaml:"mf,omitempty"`
	Thrust         float64 `yaml:"thrust,omitempty"`
	Isp            float64 `yaml:"isp,omitempty"`
	BurnTime       float64 `yaml:"burn_time,omitempty"`
	MinT           float64 `yaml:"min_t,omitempty"`
	MaxT           float64 `yaml:"max_t,omitempty"`
	ResumeThrust   float64 `yaml:"resume_thrust,omitempty"`
	MinEngines     int     `yaml:"min_engines,omitempty"`
	MaxEngines     int     `yaml:"max_engines,omitempty"`
	OptimizeTime   bool    `yaml:"optimize_time,omitempty"`
	Unguided       bool    `yaml:"unguided,omitempty"`
	MassContinuity bool    `yaml:"mass_continuity,omitempty"`
	FixedBurnTime  bool    `yaml:"fixed_burn_time,omitempty"`
}

type SolverConfig struct {
	MaxIterations int     `yaml:"max_iterations"`
	Tolerance     float64 `yaml:"tolerance"`
	Accuracy      float64 `yaml:"accuracy"`
	Samples       int     `yaml:"samples"`
}

func DefaultSolverConfig() SolverConfig {
	d := pvg.DefaultConfig()
	return SolverConfig{
		MaxIterations: d.MaxIterations,
		Tolerance:     d.Tolerance,
		Accuracy:      d.Integrator.Accuracy,
		Samples:       d.SolutionSamples,
	}
}

// DefaultConfig is a copy of the standard preset.
func DefaultConfig() *Config {
	return GetPreset("standard")
}

func Parse(data []byte) (*Config, error) {
	cfg := &Config{
		Body:   BodyConfig{Mu: DefaultMu, Radius: DefaultRadius},
		Solver: DefaultSolverConfig(),
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	cfg := *c
	cfg.Stages = append([]StageConfig(nil), c.Stages...)
	return &cfg
}

func (c *Config) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
	}
	if c.Body.Mu <= 0 || c.Body.Radius <= 0 {
		return bad("body mu %g radius %g", c.Body.Mu, c.Body.Radius)
	}
	if r3.Norm(c.Initial.R0.R3()) < c.Body.Radius*(1-1e-3) {
		return bad("initial position below the surface")
	}
	if c.Target.Periapsis <= c.Body.Radius || c.Target.Apoapsis < c.Target.Periapsis {
		return bad("target periapsis %g apoapsis %g", c.Target.Periapsis, c.Target.Apoapsis)
	}
	if math.Abs(c.Target.Inclination) > 180 {
		return bad("inclination %g deg", c.Target.Inclination)
	}
	if len(c.Stages) == 0 {
		return bad("no stages")
	}
	for i, s := range c.Stages {
		switch s.Kind {
		case StageBurn:
			if s.Thrust <= 0 && s.BurnTime <= 0 && s.Mf < s.M0 {
				return bad("stage %d needs thrust or burn_time", i)
			}
		case StageCoast, StageFixedCoast:
		default:
			return bad("stage %d kind %q", i, s.Kind)
		}
	}
	if c.Solver.MaxIterations <= 0 || c.Solver.Tolerance <= 0 || c.Solver.Accuracy <= 0 {
		return bad("solver settings %+v", c.Solver)
	}
	return nil
}

// PVGConfig converts the solver section.
func (c *Config) PVGConfig() pvg.Config {
	pc := pvg.DefaultConfig()
	pc.MaxIterations = c.Solver.MaxIterations
	pc.Tolerance = c.Solver.Tolerance
	pc.Integrator.Accuracy = c.Solver.Accuracy
	if c.Solver.Samples >= 2 {
		pc.SolutionSamples = c.Solver.Samples
	}
	return pc
}

// Builder returns a pvg builder for the scenario. Phase level checks are
// left to pvg.
func (c *Config) Builder() (*pvg.Builder, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	t := c.Target
	b := pvg.NewBuilder().
		Initial(c.Initial.R0.R3(), c.Initial.V0.R3(), c.Initial.U0.R3(), c.Initial.T0, c.Body.Mu, c.Body.Radius).
		SetTarget(t.Periapsis, t.Apoapsis, t.Attach,
			astro.Deg2Rad(t.Inclination), astro.Deg2Rad(t.LAN), astro.Deg2Rad(t.ArgP),
			t.LANFree, t.ArgPFree).
		Config(c.PVGConfig())

	for _, s := range c.Stages {
		switch s.Kind {
		case StageCoast:
			b.AddOptimizedCoast(s.M0, s.ResumeThrust, s.MinT, s.MaxT, s.MinEngines, s.MaxEngines)
		case StageFixedCoast:
			b.AddFixedCoast(s.M0, s.BurnTime)
		default:
			var opts []pvg.StageOption
			if s.OptimizeTime {
				opts = append(opts, pvg.OptimizeBurnTime())
			}
			if s.Unguided {
				opts = append(opts, pvg.Unguided())
			}
			if s.MassContinuity {
				opts = append(opts, pvg.MassContinuity())
			}
			if s.FixedBurnTime {
				opts = append(opts, pvg.FixedBurnTime())
			}
			if s.Thrust > 0 {
				b.AddStageUsingFinalMass(s.M0, s.Mf, s.Thrust, s.Isp, s.MinEngines, s.MaxEngines, opts...)
			} else {
				b.AddStageUsingBurnTime(s.M0, s.Mf, s.Isp, s.BurnTime, s.MinEngines, s.MaxEngines, opts...)
			}
		}
	}
	return b, nil
}
