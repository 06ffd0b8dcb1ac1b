package fixedwidth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/couchcryptid/palmer-drought-service/internal/domain"
	"github.com/couchcryptid/palmer-drought-service/internal/workspace"
)

// Inputs are the values written to a workspace before the engine runs.
type Inputs struct {
	Temperature          domain.ClimateMatrix
	Precipitation        domain.ClimateMatrix
	TemperatureNormals   domain.NormalsVector
	PrecipitationNormals domain.NormalsVector
	Site                 domain.SiteParameters
}

// WriteInputs encodes all five engine input files into ws. Every file is
// encoded before the first one is written, so a value that cannot be encoded
// leaves the workspace untouched.
func WriteInputs(ws *workspace.Workspace, in Inputs) error {
	type file struct {
		path string
		data []byte
	}

	temp, err := EncodeMatrix(in.Temperature)
	if err != nil {
		return fmt.Errorf("encode %s: %w", workspace.TemperatureFile, err)
	}
	precip, err := EncodeMatrix(in.Precipitation)
	if err != nil {
		return fmt.Errorf("encode %s: %w", workspace.PrecipitationFile, err)
	}
	tNormals, err := EncodeNormals(in.TemperatureNormals)
	if err != nil {
		return fmt.Errorf("encode %s: %w", workspace.TemperatureNormalsFile, err)
	}
	pNormals, err := EncodeNormals(in.PrecipitationNormals)
	if err != nil {
		return fmt.Errorf("encode %s: %w", workspace.PrecipitationNormalsFile, err)
	}
	params, err := EncodeParameters(in.Site)
	if err != nil {
		return fmt.Errorf("encode %s: %w", workspace.ParameterFile, err)
	}

	files := []file{
		{ws.Temperature, temp},
		{ws.Precipitation, precip},
		{ws.TemperatureNormals, tNormals},
		{ws.PrecipitationNormals, pNormals},
		{ws.Parameters, params},
	}
	for _, f := range files {
		if err := os.WriteFile(f.path, f.data, 0o644); err != nil {
			return fmt.Errorf("%w: write %s: %v", domain.ErrIO, f.path, err)
		}
	}
	return nil
}

// ReadTableFile decodes one engine output table. An absent file, or one with
// no data rows, is reported as domain.ErrMissingOutput.
func ReadTableFile(path string) (domain.ResultTable, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.ResultTable{}, fmt.Errorf("%w: %s", domain.ErrMissingOutput, path)
	}
	if err != nil {
		return domain.ResultTable{}, fmt.Errorf("%w: open %s: %v", domain.ErrIO, path, err)
	}
	defer f.Close()

	table, err := ReadTable(f)
	if err != nil {
		return domain.ResultTable{}, fmt.Errorf("%s: %w", path, err)
	}
	if len(table.Rows) == 0 {
		return domain.ResultTable{}, fmt.Errorf("%w: %s has no data rows", domain.ErrMissingOutput, path)
	}
	return table, nil
}

// ReadResults decodes the output tables mode asks for. Tables the mode does not
// select are not opened.
func ReadResults(ws *workspace.Workspace, mode domain.Mode) (domain.ComputationResult, error) {
	var result domain.ComputationResult
	if mode.WantsOriginal() {
		table, err := ReadTableFile(ws.Original)
		if err != nil {
			return result, err
		}
		result.Original = &table
	}
	if mode.WantsSelfCalibrated() {
		table, err := ReadTableFile(ws.SelfCalibrated)
		if err != nil {
			return result, err
		}
		result.SelfCalibrated = &table
	}
	return result, nil
}
