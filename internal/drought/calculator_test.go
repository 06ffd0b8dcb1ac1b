package drought_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/palmer-drought-service/internal/domain"
	"github.com/couchcryptid/palmer-drought-service/internal/drought"
	"github.com/couchcryptid/palmer-drought-service/internal/engine"
	"github.com/couchcryptid/palmer-drought-service/internal/engine/enginetest"
	"github.com/couchcryptid/palmer-drought-service/internal/observability"
	"github.com/couchcryptid/palmer-drought-service/internal/synthetic"
	"github.com/couchcryptid/palmer-drought-service/internal/workspace"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type recordingEngine struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *recordingEngine) Run(_ context.Context, _ *workspace.Workspace, _, _ int) (engine.Execution, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return engine.Execution{}, e.err
}

func (e *recordingEngine) CheckReadiness(context.Context) error { return e.err }

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	calc   *drought.Calculator
	parent string
}

func newFixture(t *testing.T, eng drought.Engine) fixture {
	t.Helper()
	parent := filepath.Join(t.TempDir(), "workspaces")
	manager := workspace.NewManager(parent, discardLogger(), nil)
	return fixture{
		calc:   drought.NewCalculator(manager, eng, discardLogger(), observability.NewMetricsForTesting()),
		parent: parent,
	}
}

func newEngineFixture(t *testing.T, b enginetest.Behavior) fixture {
	t.Helper()
	root := enginetest.Install(t, b)
	return newFixture(t, engine.NewInvoker(enginetest.Options(root), discardLogger()))
}

func assertNoWorkspaces(t *testing.T, parent string) {
	t.Helper()
	entries, err := os.ReadDir(parent)
	if os.IsNotExist(err) {
		return
	}
	require.NoError(t, err)
	assert.Empty(t, entries, "workspace left behind")
}

func exampleRequest(mode domain.Mode) domain.ComputationRequest {
	return synthetic.Request(synthetic.MidLatitude, 1959, 2000, 42, mode)
}

// --- tests ---

func TestCompute_FullRange(t *testing.T) {
	computedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(computedAt))
	t.Cleanup(func() { domain.SetClock(nil) })

	f := newEngineFixture(t, enginetest.Succeed)
	result, err := f.calc.Compute(context.Background(), exampleRequest(domain.ModeBoth))
	require.NoError(t, err)

	require.NotNil(t, result.Original)
	require.NotNil(t, result.SelfCalibrated)
	assert.Equal(t, computedAt, result.ComputedAt)

	for _, table := range []*domain.ResultTable{result.Original, result.SelfCalibrated} {
		assert.Len(t, table.Rows, 41)
		assert.Equal(t, []string{"YEAR", "JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}, table.Columns)
		assert.Equal(t, 1960, table.Rows[0].Year)
		assert.Equal(t, 2000, table.Rows[40].Year)
	}
	assert.Equal(t, enginetest.OriginalValues, result.Original.Rows[10].Values)
	assert.Equal(t, enginetest.SelfCalibratedValues, result.SelfCalibrated.Rows[10].Values)
	assertNoWorkspaces(t, f.parent)
}

func TestCompute_MonsoonPrecipitationOverThousandMillimetres(t *testing.T) {
	req := exampleRequest(domain.ModeBoth)
	for i := range req.Records {
		switch req.Records[i].Month {
		case 7:
			req.Records[i].Precipitation = 1180.4
		case 8:
			req.Records[i].Precipitation = 2315.7
		}
	}

	f := newEngineFixture(t, enginetest.Succeed)
	result, err := f.calc.Compute(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result.Original)
	assert.Len(t, result.Original.Rows, 41)
	assertNoWorkspaces(t, f.parent)
}

func TestCompute_ModeSelection(t *testing.T) {
	f := newEngineFixture(t, enginetest.Succeed)

	tests := []struct {
		mode         domain.Mode
		wantOriginal bool
		wantSelfCal  bool
	}{
		{domain.ModePDSI, true, false},
		{domain.ModeSCPDSI, false, true},
		{domain.ModeBoth, true, true},
		{"", true, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			req := synthetic.Request(synthetic.MidLatitude, 1990, 1995, 1, tt.mode)
			result, err := f.calc.Compute(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOriginal, result.Original != nil)
			assert.Equal(t, tt.wantSelfCal, result.SelfCalibrated != nil)
		})
	}
	assertNoWorkspaces(t, f.parent)
}

func TestCompute_InvalidModeFailsBeforeIO(t *testing.T) {
	eng := &recordingEngine{}
	f := newFixture(t, eng)

	_, err := f.calc.Compute(context.Background(), exampleRequest("annual"))
	require.ErrorIs(t, err, domain.ErrInvalidMode)
	assert.Zero(t, eng.calls)
	assert.NoDirExists(t, f.parent)
}

func TestCompute_InputErrorsSkipEngine(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.ComputationRequest)
		wantErr error
	}{
		{"missing year before start", func(r *domain.ComputationRequest) { r.Start = 1959 }, domain.ErrRange},
		{"end beyond data", func(r *domain.ComputationRequest) { r.End = 2001 }, domain.ErrRange},
		{"start after end", func(r *domain.ComputationRequest) { r.Start, r.End = 1990, 1980 }, domain.ErrRange},
		{"gap in months", func(r *domain.ComputationRequest) {
			r.Records = append(r.Records[:100:100], r.Records[101:]...)
		}, domain.ErrMalformedInput},
		{"bad site", func(r *domain.ComputationRequest) { r.Site.AvailableWaterCapacity = 0 }, domain.ErrMalformedInput},
		{"unencodable value", func(r *domain.ComputationRequest) { r.Records[50].Temperature = 5000 }, domain.ErrMalformedInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &recordingEngine{}
			f := newFixture(t, eng)
			req := exampleRequest(domain.ModeBoth)
			tt.mutate(&req)

			_, err := f.calc.Compute(context.Background(), req)
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, domain.IsInputError(err))
			assert.Zero(t, eng.calls)
			assertNoWorkspaces(t, f.parent)
		})
	}
}

func TestCompute_EngineFailuresReleaseWorkspace(t *testing.T) {
	tests := []struct {
		behavior enginetest.Behavior
		wantErr  error
	}{
		{enginetest.Fail, domain.ErrEngineExecution},
		{enginetest.NoOutput, domain.ErrMissingOutput},
		{enginetest.Garbage, domain.ErrMalformedOutput},
	}
	for _, tt := range tests {
		t.Run(domain.ErrorKind(tt.wantErr), func(t *testing.T) {
			f := newEngineFixture(t, tt.behavior)
			_, err := f.calc.Compute(context.Background(), synthetic.Request(synthetic.MidLatitude, 1990, 1991, 1, domain.ModeBoth))
			require.ErrorIs(t, err, tt.wantErr)
			assert.False(t, domain.IsInputError(err))
			assertNoWorkspaces(t, f.parent)
		})
	}
}

func TestCompute_EngineNotFound(t *testing.T) {
	f := newFixture(t, engine.NewInvoker(engine.Options{Root: t.TempDir()}, discardLogger()))

	_, err := f.calc.Compute(context.Background(), exampleRequest(domain.ModeBoth))
	require.ErrorIs(t, err, domain.ErrEngineNotFound)
	assert.Equal(t, "engine_not_found", domain.ErrorKind(err))
	assertNoWorkspaces(t, f.parent)

	require.ErrorIs(t, f.calc.CheckReadiness(context.Background()), domain.ErrEngineNotFound)
}

func TestCompute_Concurrent(t *testing.T) {
	f := newEngineFixture(t, enginetest.Succeed)

	const workers = 6
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			req := synthetic.Request(synthetic.MidLatitude, 1980, 1990, seed, domain.ModePDSI)
			_, err := f.calc.Compute(context.Background(), req)
			errs <- err
		}(uint64(i))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assertNoWorkspaces(t, f.parent)
}
