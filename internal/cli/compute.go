package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/palmer-drought-service/internal/adapter/csvio"
	"github.com/couchcryptid/palmer-drought-service/internal/domain"
	"github.com/couchcryptid/palmer-drought-service/internal/drought"
	"github.com/couchcryptid/palmer-drought-service/internal/observability"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	formatJSON  = "json"
	formatCSV   = "csv"
	formatTable = "table"
)

type computeOptions struct {
	input  string
	output string
	format string

	id    string
	start int
	end   int
	mode  string
	awc   float64
	lat   float64
}

func newComputeCmd(g *globalOptions) *cobra.Command {
	opts := &computeOptions{}

	cmd := &cobra.Command{
		Use:   "compute --input FILE",
		Short: "Run one computation over a climate file",
		Long: `compute reads a climate series and prints the drought index tables.

The input is either a CSV of monthly records (columns year, month,
temperature, precipitation) or a YAML/JSON request file holding site, records,
start_year, end_year and mode. Flags override the values in a request file;
a CSV input needs --start, --end, --awc and --lat.

With --format csv and --output DIR, each table is written to DIR/<table>.csv.`,
		Example: `  pdsi compute --input station.csv --start 1960 --end 2000 --awc 12 --lat 50
  pdsi compute --input request.yaml --mode scpdsi --format table`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompute(cmd, g, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "", "climate CSV or YAML/JSON request file")
	f.StringVarP(&opts.output, "output", "o", "", "output file (json, table) or directory (csv); default stdout")
	f.StringVarP(&opts.format, "format", "f", formatJSON, "output format: json, csv or table")
	f.StringVar(&opts.id, "id", "", "request identifier echoed in the response")
	f.IntVar(&opts.start, "start", 0, "first year reported")
	f.IntVar(&opts.end, "end", 0, "last year reported")
	f.StringVar(&opts.mode, "mode", "", "tables to return: pdsi, scpdsi or both (default both)")
	f.Float64Var(&opts.awc, "awc", 0, "available water capacity of the soil, cm")
	f.Float64Var(&opts.lat, "lat", 0, "site latitude, decimal degrees")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runCompute(cmd *cobra.Command, g *globalOptions, opts *computeOptions) error {
	switch opts.format {
	case formatJSON, formatCSV, formatTable:
	default:
		return fmt.Errorf("unknown format %q (want json, csv or table)", opts.format)
	}

	req, err := loadRequest(opts.input)
	if err != nil {
		return err
	}
	opts.applyTo(&req, cmd.Flags())

	cfg, logger, err := g.load(cmd)
	if err != nil {
		return err
	}
	stack := drought.NewStack(cfg, logger, observability.NewUnregisteredMetrics())

	result, err := stack.Computer.Compute(cmd.Context(), req)
	if err != nil {
		return err
	}
	return writeResult(cmd.OutOrStdout(), opts, req.ID, result)
}

// loadRequest reads path by extension: .csv holds records only, .yaml, .yml
// and .json hold a whole request.
func loadRequest(path string) (domain.ComputationRequest, error) {
	var req domain.ComputationRequest

	f, err := os.Open(path)
	if err != nil {
		return req, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		records, err := csvio.ReadRecords(f)
		if err != nil {
			return req, fmt.Errorf("read %s: %w", path, err)
		}
		req.Records = records
	case ".yaml", ".yml", ".json":
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&req); err != nil {
			return req, fmt.Errorf("%w: read %s: %v", domain.ErrMalformedInput, path, err)
		}
	default:
		return req, fmt.Errorf("unsupported input extension %q (want .csv, .yaml, .yml or .json)", ext)
	}
	return req, nil
}

func (o *computeOptions) applyTo(req *domain.ComputationRequest, flags *pflag.FlagSet) {
	if flags.Changed("id") {
		req.ID = o.id
	}
	if flags.Changed("start") {
		req.Start = o.start
	}
	if flags.Changed("end") {
		req.End = o.end
	}
	if flags.Changed("mode") {
		req.Mode = domain.Mode(o.mode)
	}
	if flags.Changed("awc") {
		req.Site.AvailableWaterCapacity = o.awc
	}
	if flags.Changed("lat") {
		req.Site.Latitude = o.lat
	}
}

func writeResult(stdout io.Writer, opts *computeOptions, id string, result domain.ComputationResult) error {
	if opts.format == formatCSV && opts.output != "" {
		return writeCSVDir(opts.output, result)
	}

	w := stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch opts.format {
	case formatCSV:
		return writeCSVSections(w, result)
	case formatTable:
		_, err := io.WriteString(w, renderResult(result))
		return err
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(domain.NewResponse(id, result, nil))
	}
}

type namedTable struct {
	name  string
	table *domain.ResultTable
}

// namedTables lists the tables present in result in engine order.
func namedTables(result domain.ComputationResult) []namedTable {
	var out []namedTable
	if result.Original != nil {
		out = append(out, namedTable{"original", result.Original})
	}
	if result.SelfCalibrated != nil {
		out = append(out, namedTable{"self_calibrated", result.SelfCalibrated})
	}
	return out
}

func writeCSVDir(dir string, result domain.ComputationResult) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, nt := range namedTables(result) {
		path := filepath.Join(dir, nt.name+".csv")
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if err := csvio.WriteTable(f, *nt.table); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", path, err)
		}
	}
	return nil
}

// writeCSVSections writes each table preceded by a "# <name>" comment line.
func writeCSVSections(w io.Writer, result domain.ComputationResult) error {
	for i, nt := range namedTables(result) {
		sep := ""
		if i > 0 {
			sep = "\n"
		}
		if _, err := fmt.Fprintf(w, "%s# %s\n", sep, nt.name); err != nil {
			return err
		}
		if err := csvio.WriteTable(w, *nt.table); err != nil {
			return err
		}
	}
	return nil
}
