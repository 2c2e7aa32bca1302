package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/ascent/internal/astro"
	"github.com/san-kum/ascent/internal/metrics"
	"github.com/san-kum/ascent/internal/pvg"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	metadataFile = "metadata.json"
	samplesFile  = "samples.csv"
)

var ErrNotFound = errors.New("storage: run not found")

var sampleHeader = []string{"t", "phase", "rx", "ry", "rz", "vx", "vy", "vz", "m", "ux", "uy", "uz"}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// Record is a solved ascent ready to be written.
type Record struct {
	Scenario   string
	Terminal   string
	Iterations int
	Znorm      float64
	Mu         float64
	BodyRadius float64
	T0, Tf     float64
	Vgo        float64
	Elements   astro.Elements
	Samples    []pvg.Sample
}

// FromSolution samples sol at n points.
func FromSolution(scenario string, sol *pvg.Solution, n int) Record {
	return Record{
		Scenario:   scenario,
		Terminal:   sol.Terminal(),
		Iterations: sol.Iterations(),
		Znorm:      sol.Znorm(),
		Mu:         sol.Mu(),
		BodyRadius: sol.BodyRadius(),
		T0:         sol.T0(),
		Tf:         sol.Tf(),
		Vgo:        sol.Vgo(sol.T0()),
		Elements:   sol.Elements(),
		Samples:    sol.Samples(n),
	}
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Scenario   string             `json:"scenario"`
	Timestamp  time.Time          `json:"timestamp"`
	Terminal   string             `json:"terminal"`
	Iterations int                `json:"iterations"`
	Znorm      float64            `json:"znorm"`
	BodyRadius float64            `json:"body_radius"`
	T0         float64            `json:"t0"`
	Tf         float64            `json:"tf"`
	Vgo        float64            `json:"vgo"`
	SMA        float64            `json:"sma"`
	Ecc        float64            `json:"ecc"`
	IncDeg     float64            `json:"inc_deg"`
	LANDeg     float64            `json:"lan_deg"`
	ArgPDeg    float64            `json:"argp_deg"`
	Samples    int                `json:"samples"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Points converts samples for the trajectory metrics.
func Points(samples []pvg.Sample) []metrics.Point {
	pts := make([]metrics.Point, len(samples))
	for i, s := range samples {
		pts[i] = metrics.Point{T: s.T, R: s.R, V: s.V, U: s.U, M: s.M}
	}
	return pts
}

func (s *Store) Save(rec Record) (string, error) {
	runID := uuid.NewString()
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Scenario:   rec.Scenario,
		Timestamp:  time.Now().UTC(),
		Terminal:   rec.Terminal,
		Iterations: rec.Iterations,
		Znorm:      rec.Znorm,
		BodyRadius: rec.BodyRadius,
		T0:         rec.T0,
		Tf:         rec.Tf,
		Vgo:        rec.Vgo,
		SMA:        rec.Elements.SMA,
		Ecc:        rec.Elements.Ecc,
		IncDeg:     astro.Rad2Deg(rec.Elements.Inc),
		LANDeg:     astro.Rad2Deg(rec.Elements.LAN),
		ArgPDeg:    astro.Rad2Deg(rec.Elements.ArgP),
		Samples:    len(rec.Samples),
		Metrics: metrics.Evaluate(Points(rec.Samples),
			metrics.NewEnergy(rec.Mu),
			metrics.NewControlEffort(),
			metrics.NewClearance(rec.BodyRadius, 0),
		),
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, samplesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := writeSamples(csvFile, rec.Samples); err != nil {
		return "", err
	}
	return runID, nil
}

func writeSamples(w io.Writer, samples []pvg.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(sampleHeader); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for _, s := range samples {
		row := []string{
			f(s.T), strconv.Itoa(s.Phase),
			f(s.R.X), f(s.R.Y), f(s.R.Z),
			f(s.V.X), f(s.V.Y), f(s.V.Z),
			f(s.M),
			f(s.U.X), f(s.U.Y), f(s.U.Z),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// List returns stored runs, newest first. Unreadable entries are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadSamples(runID string) ([]pvg.Sample, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, samplesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(sampleHeader)

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("storage: %s: %w", runID, err)
	}
	if len(records) < 2 {
		return []pvg.Sample{}, nil
	}

	samples := make([]pvg.Sample, 0, len(records)-1)
	for i, record := range records[1:] {
		var v [12]float64
		for j, field := range record {
			if j == 1 {
				continue
			}
			if v[j], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, fmt.Errorf("storage: %s row %d: %w", runID, i+1, err)
			}
		}
		phase, err := strconv.Atoi(record[1])
		if err != nil {
			return nil, fmt.Errorf("storage: %s row %d: %w", runID, i+1, err)
		}
		samples = append(samples, pvg.Sample{
			T:     v[0],
			Phase: phase,
			R:     r3.Vec{X: v[2], Y: v[3], Z: v[4]},
			V:     r3.Vec{X: v[5], Y: v[6], Z: v[7]},
			M:     v[8],
			U:     r3.Vec{X: v[9], Y: v[10], Z: v[11]},
		})
	}
	return samples, nil
}

// ExportData is the single-document JSON form of a run.
type ExportData struct {
	Run     RunMetadata  `json:"run"`
	Samples []pvg.Sample `json:"samples"`
}

func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	samples, err := s.LoadSamples(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportData{Run: *meta, Samples: samples})
}

func (s *Store) ExportCSV(w io.Writer, runID string) error {
	samples, err := s.LoadSamples(runID)
	if err != nil {
		return err
	}
	return writeSamples(w, samples)
}
