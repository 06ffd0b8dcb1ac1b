// Package drought runs Palmer Drought Severity Index computations end to end:
// validate and reshape the climate series, stage the engine inputs in a
// private workspace, run the engine and parse the tables the caller asked for.
package drought

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/palmer-drought-service/internal/domain"
	"github.com/couchcryptid/palmer-drought-service/internal/engine"
	"github.com/couchcryptid/palmer-drought-service/internal/fixedwidth"
	"github.com/couchcryptid/palmer-drought-service/internal/observability"
	"github.com/couchcryptid/palmer-drought-service/internal/workspace"
)

// Engine runs the external PDSI program against a prepared workspace.
type Engine interface {
	Run(ctx context.Context, ws *workspace.Workspace, start, end int) (engine.Execution, error)
	CheckReadiness(ctx context.Context) error
}

// Computer is anything that turns a request into result tables.
type Computer interface {
	Compute(ctx context.Context, req domain.ComputationRequest) (domain.ComputationResult, error)
}

// Calculator computes PDSI tables. It holds no per-call state and is safe for
// concurrent use; every call gets its own workspace.
type Calculator struct {
	workspaces *workspace.Manager
	engine     Engine
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewCalculator creates a Calculator.
func NewCalculator(workspaces *workspace.Manager, eng Engine, logger *slog.Logger, metrics *observability.Metrics) *Calculator {
	return &Calculator{
		workspaces: workspaces,
		engine:     eng,
		logger:     logger,
		metrics:    metrics,
	}
}

// Compute runs one computation. Invalid requests fail before any file is
// written, and the workspace is gone by the time Compute returns.
func (c *Calculator) Compute(ctx context.Context, req domain.ComputationRequest) (domain.ComputationResult, error) {
	start := time.Now()
	result, mode, err := c.compute(ctx, req)
	c.metrics.ComputationDuration.Observe(time.Since(start).Seconds())

	logger := c.logger.With("request_id", req.ID, "mode", mode, "start_year", req.Start, "end_year", req.End)
	if err != nil {
		c.metrics.Computations.WithLabelValues(mode, "error").Inc()
		logger.Warn("computation failed", "error_kind", domain.ErrorKind(err), "error", err)
		return domain.ComputationResult{}, err
	}
	c.metrics.Computations.WithLabelValues(mode, "success").Inc()
	logger.Info("computation finished", "duration", time.Since(start))
	return result, nil
}

// CheckReadiness reports whether the engine is installed for this platform.
func (c *Calculator) CheckReadiness(ctx context.Context) error {
	return c.engine.CheckReadiness(ctx)
}

func (c *Calculator) compute(ctx context.Context, req domain.ComputationRequest) (domain.ComputationResult, string, error) {
	req, err := req.Normalize()
	if err != nil {
		return domain.ComputationResult{}, "invalid", fmt.Errorf("validate request: %w", err)
	}
	mode := string(req.Mode)

	temperature, precipitation, err := domain.Reshape(req.Records, req.Start, req.End)
	if err != nil {
		return domain.ComputationResult{}, mode, fmt.Errorf("reshape records: %w", err)
	}
	tNormals, err := domain.ComputeNormals(temperature)
	if err != nil {
		return domain.ComputationResult{}, mode, fmt.Errorf("temperature normals: %w", err)
	}
	pNormals, err := domain.ComputeNormals(precipitation)
	if err != nil {
		return domain.ComputationResult{}, mode, fmt.Errorf("precipitation normals: %w", err)
	}
	inputs := fixedwidth.Inputs{
		Temperature:          temperature,
		Precipitation:        precipitation,
		TemperatureNormals:   tNormals,
		PrecipitationNormals: pNormals,
		Site:                 req.Site,
	}

	var result domain.ComputationResult
	err = c.workspaces.With(ctx, func(ctx context.Context, ws *workspace.Workspace) error {
		if err := fixedwidth.WriteInputs(ws, inputs); err != nil {
			return fmt.Errorf("write engine inputs: %w", err)
		}

		exec, err := c.engine.Run(ctx, ws, req.Start, req.End)
		if exec.Binary != "" {
			c.metrics.EngineDuration.Observe(exec.Duration.Seconds())
		}
		if err != nil {
			c.metrics.EngineFailures.WithLabelValues(domain.ErrorKind(err)).Inc()
			return fmt.Errorf("run engine: %w", err)
		}

		result, err = fixedwidth.ReadResults(ws, req.Mode)
		if err != nil {
			c.metrics.EngineFailures.WithLabelValues(domain.ErrorKind(err)).Inc()
			return fmt.Errorf("read engine output: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.ComputationResult{}, mode, err
	}

	result.ComputedAt = domain.Now()
	return result, mode, nil
}
