// Package server exposes the guidance publisher over HTTP.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/san-kum/ascent/internal/astro"
	"github.com/san-kum/ascent/internal/config"
	"github.com/san-kum/ascent/internal/guidance"
	"github.com/san-kum/ascent/internal/metrics"
	"github.com/san-kum/ascent/internal/pvg"
	"go.uber.org/zap"
)

const maxBody = 1 << 20

var errBadTime = errors.New("server: steering time must be finite")

// Submitter accepts background solve jobs.
type Submitter interface {
	Submit(job guidance.Job)
}

type Server struct {
	pub      *guidance.Publisher
	jobs     Submitter
	log      *zap.Logger
	metrics  *metrics.Solver
	gatherer prometheus.Gatherer
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics attaches the solver metrics to submitted solves and serves g
// on /metrics.
func WithMetrics(m *metrics.Solver, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

func New(pub *guidance.Publisher, jobs Submitter, opts ...Option) *Server {
	s := &Server{
		pub:      pub,
		jobs:     jobs,
		log:      zap.NewNop(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/solution", s.getSolution).Methods("GET")
	router.HandleFunc("/steering", s.getSteering).Methods("GET").Queries("t", "{t}")
	router.HandleFunc("/steering", s.badRequest("missing query parameter t")).Methods("GET")
	router.HandleFunc("/solve", s.postSolve).Methods("POST")
	router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	return router
}

type PhaseSummary struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Coast bool    `json:"coast"`
}

type SolutionSummary struct {
	Terminal   string         `json:"terminal"`
	Iterations int            `json:"iterations"`
	Znorm      float64        `json:"znorm"`
	T0         float64        `json:"t0"`
	Tf         float64        `json:"tf"`
	Vgo        float64        `json:"vgo"`
	SMA        float64        `json:"sma"`
	Ecc        float64        `json:"ecc"`
	IncDeg     float64        `json:"inc_deg"`
	LANDeg     float64        `json:"lan_deg"`
	ArgPDeg    float64        `json:"argp_deg"`
	Phases     []PhaseSummary `json:"phases"`
}

func Summarize(sol *pvg.Solution) SolutionSummary {
	el := sol.Elements()
	out := SolutionSummary{
		Terminal:   sol.Terminal(),
		Iterations: sol.Iterations(),
		Znorm:      sol.Znorm(),
		T0:         sol.T0(),
		Tf:         sol.Tf(),
		Vgo:        sol.Vgo(sol.T0()),
		SMA:        el.SMA,
		Ecc:        el.Ecc,
		IncDeg:     astro.Rad2Deg(el.Inc),
		LANDeg:     astro.Rad2Deg(el.LAN),
		ArgPDeg:    astro.Rad2Deg(el.ArgP),
	}
	for i := 0; i < sol.NumPhases(); i++ {
		out.Phases = append(out.Phases, PhaseSummary{
			Index: i,
			Start: sol.PhaseStart(i),
			End:   sol.PhaseEnd(i),
			Coast: sol.Phase(i).Coast,
		})
	}
	return out
}

func (s *Server) getSolution(w http.ResponseWriter, r *http.Request) {
	sol := s.pub.Current()
	if sol == nil {
		s.writeError(w, http.StatusServiceUnavailable, guidance.ErrNoSolution)
		return
	}
	s.writeJSON(w, http.StatusOK, Summarize(sol))
}

func (s *Server) getSteering(w http.ResponseWriter, r *http.Request) {
	t, err := strconv.ParseFloat(mux.Vars(r)["t"], 64)
	if err == nil && (math.IsNaN(t) || math.IsInf(t, 0)) {
		err = fmt.Errorf("%w: %v", errBadTime, t)
	}
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	cmd, err := s.pub.Steering(t)
	if errors.Is(err, guidance.ErrNoSolution) {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cmd)
}

// postSolve queues a solve of the scenario in the body, or of the standard
// scenario when the body is empty.
func (s *Server) postSolve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	cfg := config.DefaultConfig()
	if len(bytes.TrimSpace(body)) > 0 {
		if cfg, err = config.Parse(body); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if err := cfg.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	log := s.log.With(zap.String("scenario", cfg.Name))
	s.jobs.Submit(guidance.BuilderJob(func() (*pvg.Builder, error) {
		b, err := cfg.Builder()
		if err != nil {
			return nil, err
		}
		return b.Logger(log).Metrics(s.metrics), nil
	}))
	log.Info("solve queued")
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "scenario": cfg.Name})
}

func (s *Server) badRequest(msg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusBadRequest, errors.New(msg))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
