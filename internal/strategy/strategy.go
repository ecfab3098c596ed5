package strategy

import (
	"fmt"
	"sort"

	"github.com/alejandrodnm/fxbot/internal/domain"
)

// Name identifies a strategy. Selection is always explicit, by name.
type Name string

const (
	NameCrossover Name = "crossover"
	NameForest    Name = "forest"
	NameSVM       Name = "svm"
	NameIndicator Name = "indicator"
)

// aliases of the model names accepted by the agent API ("model": "sma" | "rf" | "svm").
var aliases = map[string]Name{
	"sma": NameCrossover,
	"rf":  NameForest,
}

// ParseName resolves a strategy name or alias.
func ParseName(s string) (Name, error) {
	if n, ok := aliases[s]; ok {
		return n, nil
	}
	switch n := Name(s); n {
	case NameCrossover, NameForest, NameSVM, NameIndicator:
		return n, nil
	}
	return "", fmt.Errorf("strategy.ParseName: unknown strategy %q", s)
}

// Strategy maps a price series to a signal. Implementations are pure and
// safe for concurrent use.
type Strategy interface {
	// Name devuelve el identificador único de la estrategia.
	Name() Name

	// MinSamples is the shortest series the strategy will trade on. Below it
	// Predict returns HOLD with confidence 0.
	MinSamples() int

	// Predict evalúa la serie (más reciente al final) y devuelve la señal.
	Predict(prices []float64) domain.Prediction
}

// Registry mantiene las estrategias disponibles indexadas por nombre.
type Registry map[Name]Strategy

// NewRegistry crea un registry vacío.
func NewRegistry() Registry {
	return make(Registry)
}

// Default returns a registry with every built-in strategy.
func Default() Registry {
	r := NewRegistry()
	r.Register(Crossover{})
	r.Register(Forest{})
	r.Register(SVM{})
	r.Register(NewIndicator(DefaultIndicatorConfig()))
	return r
}

// Register añade una estrategia al registry.
func (r Registry) Register(s Strategy) {
	r[s.Name()] = s
}

// Get devuelve la estrategia por nombre.
func (r Registry) Get(name Name) (Strategy, bool) {
	s, ok := r[name]
	return s, ok
}

// Lookup resolves a raw name or alias to a registered strategy.
func (r Registry) Lookup(raw string) (Strategy, error) {
	name, err := ParseName(raw)
	if err != nil {
		return nil, err
	}
	s, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("strategy.Lookup: %q not registered", name)
	}
	return s, nil
}

// Names returns the registered names in sorted order.
func (r Registry) Names() []Name {
	names := make([]Name, 0, len(r))
	for n := range r {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

func insufficient(name Name) domain.Prediction {
	p := domain.Hold("insufficient data")
	p.Source = string(name)
	return p
}
