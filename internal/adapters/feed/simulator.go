// Package feed generates simulated FX prices: a seeded multiplicative random
// walk per pair, pushed into bounded features.Windows.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/fxbot/internal/features"
)

// ErrUnknownPair se devuelve al pedir precios de un par no simulado.
var ErrUnknownPair = errors.New("feed: unknown pair")

// Config configura el simulador.
type Config struct {
	Pairs      map[string]float64 // par → precio inicial
	Volatility float64            // std-dev relativa por paso
	Drift      float64            // deriva relativa por paso
	Interval   time.Duration
	WindowSize int
	Warmup     int // pasos generados antes de arrancar
	Seed       uint64
}

// DefaultConfig devuelve un feed de EUR/USD con precalentamiento suficiente
// para todas las estrategias.
func DefaultConfig() Config {
	return Config{
		Pairs:      map[string]float64{"EUR/USD": 1.0847},
		Volatility: 0.0005,
		Interval:   time.Second,
		WindowSize: 200,
		Warmup:     50,
		Seed:       1,
	}
}

// Simulator implementa ports.PriceSource.
type Simulator struct {
	cfg     Config
	mu      sync.Mutex // protege rng y last
	rng     *rand.Rand
	last    map[string]float64
	windows map[string]*features.Window
}

// NewSimulator crea el simulador y genera cfg.Warmup pasos por par.
func NewSimulator(cfg Config) (*Simulator, error) {
	if len(cfg.Pairs) == 0 {
		return nil, fmt.Errorf("feed.NewSimulator: no pairs configured")
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 200
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}

	s := &Simulator{
		cfg:     cfg,
		rng:     rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		last:    make(map[string]float64, len(cfg.Pairs)),
		windows: make(map[string]*features.Window, len(cfg.Pairs)),
	}
	for pair, start := range cfg.Pairs {
		w := features.NewWindow(cfg.WindowSize)
		if err := w.Push(start); err != nil {
			return nil, fmt.Errorf("feed.NewSimulator: %s start price %v: %w", pair, start, err)
		}
		s.windows[pair] = w
		s.last[pair] = start
	}
	for i := 0; i < cfg.Warmup; i++ {
		s.Step()
	}
	return s, nil
}

// Step avanza un paso todos los pares, en orden de nombre para que la
// secuencia dependa solo de la semilla.
func (s *Simulator) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pair := range s.pairsLocked() {
		next := s.last[pair] * math.Exp(s.cfg.Drift+s.cfg.Volatility*s.rng.NormFloat64())
		if err := s.windows[pair].Push(next); err != nil {
			slog.Warn("feed: price rejected", "pair", pair, "price", next, "err", err)
			continue
		}
		s.last[pair] = next
	}
}

// Run genera un paso por intervalo hasta que el contexto se cancele.
func (s *Simulator) Run(ctx context.Context) error {
	slog.Info("feed starting", "pairs", s.Pairs(), "interval", s.cfg.Interval)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("feed stopped")
			return nil
		case <-ticker.C:
			s.Step()
		}
	}
}

// Prices devuelve una copia de la ventana del par, más antiguo primero.
func (s *Simulator) Prices(_ context.Context, pair string) ([]float64, error) {
	w, ok := s.windows[pair]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPair, pair)
	}
	return w.Values(), nil
}

// Window devuelve la ventana del par para escritores externos.
func (s *Simulator) Window(pair string) (*features.Window, bool) {
	w, ok := s.windows[pair]
	return w, ok
}

// Pairs devuelve los pares simulados ordenados.
func (s *Simulator) Pairs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairsLocked()
}

func (s *Simulator) pairsLocked() []string {
	pairs := make([]string, 0, len(s.windows))
	for p := range s.windows {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)
	return pairs
}
