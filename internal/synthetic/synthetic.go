// Package synthetic generates deterministic monthly climate series for
// fixtures, smoke checks and load testing.
package synthetic

import (
	"math"
	"math/rand/v2"

	"github.com/couchcryptid/palmer-drought-service/internal/domain"
)

// Site describes the climate the generator imitates.
type Site struct {
	MeanTemperature     float64 // annual mean, degrees C
	TemperatureRange    float64 // July minus January, degrees C
	AnnualPrecipitation float64 // mm
	AvailableWaterCap   float64
	Latitude            float64
}

// MidLatitude is a temperate continental site.
var MidLatitude = Site{
	MeanTemperature:     9.5,
	TemperatureRange:    22,
	AnnualPrecipitation: 780,
	AvailableWaterCap:   12,
	Latitude:            50,
}

// Records returns one record per month from January of first to December of
// last. The same seed always yields the same series.
func Records(site Site, first, last int, seed uint64) []domain.ClimateRecord {
	if last < first {
		return nil
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // fixtures, not secrets

	monthlyPrecip := site.AnnualPrecipitation / domain.MonthsPerYear
	records := make([]domain.ClimateRecord, 0, (last-first+1)*domain.MonthsPerYear)
	for year := first; year <= last; year++ {
		for month := 1; month <= domain.MonthsPerYear; month++ {
			// Coldest in January, warmest in July.
			phase := 2 * math.Pi * float64(month-1) / domain.MonthsPerYear
			temp := site.MeanTemperature - site.TemperatureRange/2*math.Cos(phase) + rng.NormFloat64()*1.5

			precip := monthlyPrecip * (1 + 0.3*math.Sin(phase)) * rng.ExpFloat64()
			records = append(records, domain.ClimateRecord{
				Year:          year,
				Month:         month,
				Temperature:   round1(temp),
				Precipitation: round1(precip),
			})
		}
	}
	return records
}

// Request returns a computation request over records for first..last. The
// reported range starts at first+1 because the engine needs one year of
// history before the start year.
func Request(site Site, first, last int, seed uint64, mode domain.Mode) domain.ComputationRequest {
	return domain.ComputationRequest{
		Site: domain.SiteParameters{
			AvailableWaterCapacity: site.AvailableWaterCap,
			Latitude:               site.Latitude,
		},
		Records: Records(site, first, last, seed),
		Start:   first + 1,
		End:     last,
		Mode:    mode,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
