// Package workspace owns the scratch directory of a single engine run.
//
// Every computation gets its own directory named from a random UUID, so any
// number of runs may share a parent directory. The directory and everything the
// engine writes into it are removed when the run ends, whatever the outcome.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/couchcryptid/palmer-drought-service/internal/domain"
	"github.com/google/uuid"
)

// Engine input files, written to the workspace root.
const (
	TemperatureFile          = "monthly_T"
	PrecipitationFile        = "monthly_P"
	TemperatureNormalsFile   = "mon_T_normal"
	PrecipitationNormalsFile = "mon_P_normal"
	ParameterFile            = "parameter"
)

// Engine output tables, relative to the workspace root.
var (
	OriginalTable       = filepath.Join("monthly", "original", "PDSI.tbl")
	SelfCalibratedTable = filepath.Join("monthly", "self_cal", "PDSI.tbl")
)

const namePrefix = "pdsi-"

// Gauge tracks live workspaces. prometheus.Gauge satisfies it.
type Gauge interface {
	Inc()
	Dec()
}

// Workspace is an exclusively owned run directory and the files inside it.
type Workspace struct {
	Dir string

	Temperature          string
	Precipitation        string
	TemperatureNormals   string
	PrecipitationNormals string
	Parameters           string

	Original       string
	SelfCalibrated string

	release sync.Once
}

func newWorkspace(dir string) *Workspace {
	return &Workspace{
		Dir:                  dir,
		Temperature:          filepath.Join(dir, TemperatureFile),
		Precipitation:        filepath.Join(dir, PrecipitationFile),
		TemperatureNormals:   filepath.Join(dir, TemperatureNormalsFile),
		PrecipitationNormals: filepath.Join(dir, PrecipitationNormalsFile),
		Parameters:           filepath.Join(dir, ParameterFile),
		Original:             filepath.Join(dir, OriginalTable),
		SelfCalibrated:       filepath.Join(dir, SelfCalibratedTable),
	}
}

// Manager creates and removes workspaces under a parent directory.
type Manager struct {
	parent string
	logger *slog.Logger
	active Gauge
}

// NewManager creates a Manager rooted at parent. An empty parent selects the
// OS temp directory. active may be nil.
func NewManager(parent string, logger *slog.Logger, active Gauge) *Manager {
	if parent == "" {
		parent = os.TempDir()
	}
	return &Manager{parent: parent, logger: logger, active: active}
}

// Parent returns the directory new workspaces are created in.
func (m *Manager) Parent() string { return m.parent }

// Acquire creates a fresh workspace. The caller must Release it.
func (m *Manager) Acquire() (*Workspace, error) {
	if err := os.MkdirAll(m.parent, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create workspace parent %s: %v", domain.ErrIO, m.parent, err)
	}

	dir := filepath.Join(m.parent, namePrefix+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create workspace: %v", domain.ErrIO, err)
	}
	if m.active != nil {
		m.active.Inc()
	}
	m.logger.Debug("workspace acquired", "workspace", dir)
	return newWorkspace(dir), nil
}

// Release removes the workspace tree. Calls after the first are no-ops.
func (m *Manager) Release(ws *Workspace) error {
	if ws == nil {
		return nil
	}
	var err error
	ws.release.Do(func() {
		if m.active != nil {
			m.active.Dec()
		}
		if rmErr := os.RemoveAll(ws.Dir); rmErr != nil {
			err = fmt.Errorf("%w: remove workspace %s: %v", domain.ErrIO, ws.Dir, rmErr)
			m.logger.Error("workspace release failed", "workspace", ws.Dir, "error", rmErr)
			return
		}
		m.logger.Debug("workspace released", "workspace", ws.Dir)
	})
	return err
}

// With runs fn inside a fresh workspace and releases it on every exit path,
// including a panic in fn. A release failure is joined to fn's error.
func (m *Manager) With(ctx context.Context, fn func(ctx context.Context, ws *Workspace) error) (err error) {
	ws, err := m.Acquire()
	if err != nil {
		return err
	}
	defer func() {
		if relErr := m.Release(ws); relErr != nil {
			err = errors.Join(err, relErr)
		}
	}()
	return fn(ctx, ws)
}
