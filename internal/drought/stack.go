package drought

import (
	"log/slog"

	"github.com/couchcryptid/palmer-drought-service/internal/config"
	"github.com/couchcryptid/palmer-drought-service/internal/engine"
	"github.com/couchcryptid/palmer-drought-service/internal/observability"
	"github.com/couchcryptid/palmer-drought-service/internal/workspace"
)

// Stack is the computation pipeline wired from configuration.
type Stack struct {
	Invoker    *engine.Invoker
	Workspaces *workspace.Manager
	Calculator *Calculator
	// Computer is the Calculator, behind the result cache when one is configured.
	Computer Computer
}

// NewStack wires the engine invoker, workspace manager, calculator and
// optional result cache.
func NewStack(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Stack {
	inv := engine.NewInvoker(engine.Options{
		Root:    cfg.EngineRoot,
		Timeout: cfg.EngineTimeout,
	}, logger)
	workspaces := workspace.NewManager(cfg.WorkspaceDir, logger, metrics.WorkspacesActive)
	calc := NewCalculator(workspaces, inv, logger, metrics)

	s := &Stack{
		Invoker:    inv,
		Workspaces: workspaces,
		Calculator: calc,
		Computer:   calc,
	}
	if cfg.ResultCacheSize > 0 {
		s.Computer = NewCachedCalculator(calc, cfg.ResultCacheSize, metrics)
		logger.Info("result cache enabled", "cache_size", cfg.ResultCacheSize)
	}
	return s
}
