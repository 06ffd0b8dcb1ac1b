// Command genmock writes deterministic climate fixtures: a records CSV for
// "pdsi compute --input" and a request file (JSON or YAML by extension) for
// the HTTP endpoint, the Kafka source topic or the CLI.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -first 1959 -last 2000 -seed 7 \
//	  -csv-out data/mock/station.csv \
//	  -request-out data/mock/request.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/palmer-drought-service/internal/adapter/csvio"
	"github.com/couchcryptid/palmer-drought-service/internal/domain"
	"github.com/couchcryptid/palmer-drought-service/internal/synthetic"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	first := flag.Int("first", 1959, "first year of records (history year)")
	last := flag.Int("last", 2000, "last year of records")
	seed := flag.Uint64("seed", 1, "generator seed")
	mode := flag.String("mode", string(domain.ModeBoth), "request mode: pdsi, scpdsi or both")
	id := flag.String("id", "", "request id")
	csvOut := flag.String("csv-out", "", "output path for the records CSV")
	requestOut := flag.String("request-out", "", "output path for the request (.json, .yaml or .yml)")
	flag.Parse()

	if *csvOut == "" && *requestOut == "" {
		flag.Usage()
		return fmt.Errorf("missing output: set -csv-out, -request-out or both")
	}
	if *last <= *first {
		return fmt.Errorf("need at least two years, got %d-%d", *first, *last)
	}
	m, err := domain.ParseMode(*mode)
	if err != nil {
		return err
	}

	req := synthetic.Request(synthetic.MidLatitude, *first, *last, *seed, m)
	req.ID = *id

	if *csvOut != "" {
		if err := writeCSV(*csvOut, req.Records); err != nil {
			return err
		}
		fmt.Printf("Wrote %d records to %s\n", len(req.Records), *csvOut)
	}
	if *requestOut != "" {
		if err := writeRequest(*requestOut, req); err != nil {
			return err
		}
		fmt.Printf("Wrote %s request for %d-%d to %s\n", req.Mode, req.Start, req.End, *requestOut)
	}
	return nil
}

func writeCSV(path string, records []domain.ClimateRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := csvio.WriteRecords(f, records); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func writeRequest(path string, req domain.ComputationRequest) error {
	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		data, err = json.MarshalIndent(req, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(req)
	default:
		return fmt.Errorf("unsupported request extension %q", ext)
	}
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
