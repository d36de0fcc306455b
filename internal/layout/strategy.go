package layout

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mohammed-shakir/solar-site-layout/internal/core/model"
	"github.com/mohammed-shakir/solar-site-layout/internal/shape"
)

// Strategy places module shapes over a roof. Implementations build each module
// with shape.New using roof.Projection() and roof.Spec().Surface; a rebuild
// rejects modules bound to anything else.
type Strategy interface {
	Modules(roof *shape.Shape, params model.LayoutParams) ([]*shape.Shape, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(roof *shape.Shape, params model.LayoutParams) ([]*shape.Shape, error)

func (f StrategyFunc) Modules(roof *shape.Shape, params model.LayoutParams) ([]*shape.Shape, error) {
	return f(roof, params)
}

// DefaultStrategy places no modules.
const DefaultStrategy = "none"

var (
	regMu sync.RWMutex
	reg   = map[string]Strategy{}
)

func init() {
	Register(DefaultStrategy, StrategyFunc(func(*shape.Shape, model.LayoutParams) ([]*shape.Shape, error) {
		return nil, nil
	}))
}

func Register(name string, s Strategy) {
	regMu.Lock()
	defer regMu.Unlock()
	reg[name] = s
}

// Strategies lists registered strategy names, sorted.
func Strategies() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(reg))
	for k := range reg {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// StrategyFor returns the named strategy, falling back to DefaultStrategy.
func StrategyFor(name string, logger *slog.Logger) (Strategy, error) {
	regMu.RLock()
	defer regMu.RUnlock()
	if s, ok := reg[name]; ok {
		return s, nil
	}
	if s, ok := reg[DefaultStrategy]; ok {
		if name != "" && logger != nil {
			logger.Warn("unknown module strategy; falling back", "strategy", name, "fallback", DefaultStrategy)
		}
		return s, nil
	}
	return nil, fmt.Errorf("no module strategy %q and no %q registered", name, DefaultStrategy)
}
