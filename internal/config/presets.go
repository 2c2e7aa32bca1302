package config

import "sort"

// launch site shared by the presets: 28.6 deg north at t0
var (
	siteR0 = Vec3{-521765.111703417, -5568874.59934707, 3050608.87783524}
	siteV0 = Vec3{406.088016257895, -38.0495807832894, 0.000701038889818476}
	siteU0 = Vec3{-0.0820737379089317, -0.874094973679233, 0.478771328926086}
)

const siteT0 = 661803.431918959

func site() InitialConfig {
	return InitialConfig{R0: siteR0, V0: siteV0, U0: siteU0, T0: siteT0}
}

var Presets = map[string]*Config{
	"standard": {
		Name:    "standard",
		Body:    BodyConfig{Mu: DefaultMu, Radius: DefaultRadius},
		Initial: site(),
		Target: TargetConfig{
			Periapsis: DefaultRadius + 185e3, Apoapsis: DefaultRadius + 10e6, Attach: DefaultRadius + 185e3,
			Inclination: 28.608, LANFree: true, ArgPFree: true,
		},
		Stages: []StageConfig{
			{Kind: StageBurn, M0: 49119.7842689869, Mf: 7114.2513992454, Isp: 288.000034332275, BurnTime: 170.308460385726},
			{Kind: StageBurn, M0: 2848.62586760223, Mf: 1363.71123994759, Isp: 270.15767003304, BurnTime: 116.391834883409, MinEngines: 1, MaxEngines: 1, OptimizeTime: true},
			{Kind: StageCoast, M0: 678.290157913434, MaxT: 450, MinEngines: 1, MaxEngines: 1},
			{Kind: StageBurn, M0: 678.290157913434, Mf: 177.582604389742, Isp: 230.039271734103, BurnTime: 53.0805126571005, Unguided: true},
		},
		Solver: DefaultSolverConfig(),
	},
	"leo": {
		Name:    "leo",
		Body:    BodyConfig{Mu: DefaultMu, Radius: DefaultRadius},
		Initial: site(),
		Target: TargetConfig{
			Periapsis: DefaultRadius + 200e3, Apoapsis: DefaultRadius + 200e3, Attach: DefaultRadius + 200e3,
			Inclination: 30, LANFree: true, ArgPFree: true,
		},
		Stages: []StageConfig{
			{Kind: StageBurn, M0: 120000, Mf: 30000, Thrust: 1.8e6, Isp: 300, MinEngines: 1, MaxEngines: 1},
			{Kind: StageBurn, M0: 25000, Mf: 5000, Thrust: 2.5e5, Isp: 340, MinEngines: 1, MaxEngines: 1},
		},
		Solver: DefaultSolverConfig(),
	},
	"gto-like": {
		Name:    "gto-like",
		Body:    BodyConfig{Mu: DefaultMu, Radius: DefaultRadius},
		Initial: site(),
		Target: TargetConfig{
			Periapsis: DefaultRadius + 185e3, Apoapsis: DefaultRadius + 35786e3, Attach: DefaultRadius + 185e3,
			Inclination: 28.7, LANFree: true, ArgPFree: true,
		},
		Stages: []StageConfig{
			{Kind: StageBurn, M0: 150000, Mf: 40000, Thrust: 2.2e6, Isp: 300, MinEngines: 1, MaxEngines: 1},
			{Kind: StageBurn, M0: 32000, Mf: 9000, Thrust: 3.0e5, Isp: 345, MinEngines: 1, MaxEngines: 1},
			{Kind: StageCoast, M0: 8000, MaxT: 1200, ResumeThrust: 6e4, MinEngines: 1, MaxEngines: 1},
			{Kind: StageBurn, M0: 8000, Mf: 2000, Thrust: 6e4, Isp: 450, MinEngines: 1, MaxEngines: 1},
		},
		Solver: DefaultSolverConfig(),
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	return p.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
