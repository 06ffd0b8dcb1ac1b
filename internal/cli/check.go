package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/couchcryptid/palmer-drought-service/internal/domain"
	"github.com/couchcryptid/palmer-drought-service/internal/drought"
	"github.com/couchcryptid/palmer-drought-service/internal/observability"
	"github.com/couchcryptid/palmer-drought-service/internal/synthetic"
	"github.com/spf13/cobra"
)

// Synthetic series used by check: 1959 is history, 1960..2000 is reported.
const (
	checkFirstYear = 1959
	checkLastYear  = 2000
	checkSeed      = 1
)

// errCheckFailed is returned when any phase fails; the report already names it.
var errCheckFailed = errors.New("engine check failed")

// phase tracks pass/fail for one check step.
type phase struct {
	name    string
	detail  string
	skipped bool
	errors  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return !p.skipped && len(p.errors) == 0 }

func newCheckCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the engine install with a synthetic computation",
		Long: `check resolves the engine binary for this platform, confirms a workspace can
be created, runs a synthetic 1959-2000 series through the engine and verifies
the shape of both output tables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := g.load(cmd)
			if err != nil {
				return err
			}
			stack := drought.NewStack(cfg, logger, observability.NewUnregisteredMetrics())

			phases := runChecks(cmd.Context(), stack)
			fmt.Fprint(cmd.OutOrStdout(), renderReport(phases))
			for _, p := range phases {
				if !p.passed() {
					return errCheckFailed
				}
			}
			return nil
		},
	}
}

func runChecks(ctx context.Context, stack *drought.Stack) []*phase {
	resolve := &phase{name: "engine binary"}
	if path, err := stack.Invoker.Resolve(); err != nil {
		resolve.errorf("%v", err)
	} else {
		resolve.detail = path
	}

	ws := &phase{name: "workspace"}
	if w, err := stack.Workspaces.Acquire(); err != nil {
		ws.errorf("%v", err)
	} else {
		ws.detail = stack.Workspaces.Parent()
		if err := stack.Workspaces.Release(w); err != nil {
			ws.errorf("release: %v", err)
		}
	}

	compute := &phase{name: "synthetic computation"}
	shape := &phase{name: "result tables"}
	if !resolve.passed() || !ws.passed() {
		compute.skipped = true
		shape.skipped = true
		return []*phase{resolve, ws, compute, shape}
	}

	req := synthetic.Request(synthetic.MidLatitude, checkFirstYear, checkLastYear, checkSeed, domain.ModeBoth)
	result, err := stack.Calculator.Compute(ctx, req)
	if err != nil {
		compute.errorf("%v", err)
		shape.skipped = true
		return []*phase{resolve, ws, compute, shape}
	}
	compute.detail = fmt.Sprintf("%d-%d", req.Start, req.End)

	verifyTable(shape, "original", result.Original, req.Start, req.End)
	verifyTable(shape, "self_calibrated", result.SelfCalibrated, req.Start, req.End)
	if shape.passed() {
		shape.detail = fmt.Sprintf("2 x %d rows", req.End-req.Start+1)
	}
	return []*phase{resolve, ws, compute, shape}
}

func verifyTable(p *phase, name string, t *domain.ResultTable, start, end int) {
	if t == nil {
		p.errorf("%s: table missing", name)
		return
	}
	if want := end - start + 1; len(t.Rows) != want {
		p.errorf("%s: %d rows, want %d", name, len(t.Rows), want)
		return
	}
	for i, r := range t.Rows {
		if r.Year != start+i {
			p.errorf("%s: row %d labelled %d, want %d", name, i, r.Year, start+i)
			return
		}
	}
	if len(t.Columns) != 1+domain.MonthsPerYear {
		p.errorf("%s: %d columns, want %d", name, len(t.Columns), 1+domain.MonthsPerYear)
	}
}

func renderReport(phases []*phase) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("scPDSI engine check"))
	b.WriteString("\n\n")

	for _, p := range phases {
		var status string
		switch {
		case p.skipped:
			status = skipStyle.Render("SKIP")
		case p.passed():
			status = passStyle.Render("PASS")
		default:
			status = failStyle.Render(fmt.Sprintf("FAIL (%d errors)", len(p.errors)))
		}
		fmt.Fprintf(&b, "  %-24s %s", p.name, status)
		if p.detail != "" {
			fmt.Fprintf(&b, "  %s", skipStyle.Render(p.detail))
		}
		b.WriteString("\n")
	}

	for _, p := range phases {
		if len(p.errors) == 0 {
			continue
		}
		lines := make([]string, 0, len(p.errors)+1)
		lines = append(lines, headerStyle.Render(p.name))
		for i, e := range p.errors {
			lines = append(lines, fmt.Sprintf("[%d] %s", i+1, e))
		}
		b.WriteString("\n")
		b.WriteString(boxStyle.Render(strings.Join(lines, "\n")))
		b.WriteString("\n")
	}
	return b.String()
}
