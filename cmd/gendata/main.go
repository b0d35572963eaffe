// Command gendata writes a synthetic air-quality CSV for local runs and
// test fixtures. Output is deterministic for a given seed: per-city PM
// baselines with a seasonal swing drive the other pollutants, so the
// generated columns carry realistic correlations.
//
// Usage:
//
//	go run ./cmd/gendata \
//	  -out generated_aqi_data.csv \
//	  -days 90 -cities "Delhi,Mumbai,Chennai,Kolkata" -seed 42
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var header = []string{"Date", "City", "PM2.5", "PM10", "NO2", "SO2", "CO", "O3", "AQI"}

type cityProfile struct {
	name  string
	base  float64 // baseline PM2.5 level
	swing float64 // seasonal amplitude
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "generated_aqi_data.csv", "output CSV path")
	days := flag.Int("days", 90, "days of observations per city")
	cities := flag.String("cities", "Delhi,Mumbai,Chennai,Kolkata,Bengaluru", "comma-separated city names")
	start := flag.String("start", "2024-01-01", "first observation date (YYYY-MM-DD)")
	seed := flag.Int64("seed", 42, "random seed")
	missing := flag.Float64("missing", 0.02, "fraction of measurements left empty")
	flag.Parse()

	if *days <= 0 {
		return fmt.Errorf("-days must be positive, got %d", *days)
	}
	if *missing < 0 || *missing >= 1 {
		return fmt.Errorf("-missing must be in [0, 1), got %g", *missing)
	}
	startDate, err := time.Parse("2006-01-02", *start)
	if err != nil {
		return fmt.Errorf("parse -start: %w", err)
	}
	profiles := buildProfiles(strings.Split(*cities, ","))
	if len(profiles) == 0 {
		return fmt.Errorf("-cities must name at least one city")
	}

	rng := rand.New(rand.NewSource(*seed))
	rows := generate(rng, profiles, startDate, *days, *missing)

	if err := writeCSV(*out, rows); err != nil {
		return fmt.Errorf("writing %s: %w", *out, err)
	}
	log.Printf("wrote %d rows for %d cities: %s", len(rows), len(profiles), *out)

	printStats(rows)
	return nil
}

func buildProfiles(names []string) []cityProfile {
	var profiles []cityProfile
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		profiles = append(profiles, cityProfile{
			name:  name,
			base:  55 + 30*float64(i%5),
			swing: 18 + 6*float64(i%3),
		})
	}
	return profiles
}

func generate(rng *rand.Rand, profiles []cityProfile, start time.Time, days int, missing float64) [][]string {
	rows := make([][]string, 0, days*len(profiles))
	for d := 0; d < days; d++ {
		date := start.AddDate(0, 0, d).Format("2006-01-02")
		for _, p := range profiles {
			season := p.swing * math.Sin(2*math.Pi*float64(d)/365)
			pm25 := math.Max(2, p.base+season+rng.NormFloat64()*p.base*0.18)
			pm10 := math.Max(4, pm25*1.55+rng.NormFloat64()*9)
			no2 := math.Max(3, 16+pm25*0.17+rng.NormFloat64()*4)
			so2 := math.Max(1, 5+pm25*0.04+rng.NormFloat64()*1.3)
			co := math.Max(0.1, 0.35+pm25*0.0065+rng.NormFloat64()*0.12)
			// Ozone runs against NO2 through titration, so it
			// anti-correlates with the traffic pollutants.
			o3 := math.Max(5, 52-no2*0.4+rng.NormFloat64()*6)

			row := []string{
				date,
				p.name,
				format(pm25, 1),
				format(pm10, 1),
				format(no2, 1),
				format(so2, 1),
				format(co, 2),
				format(o3, 1),
				strconv.Itoa(int(math.Round(airQualityIndex(pm25, pm10)))),
			}
			blankSome(rng, row, missing)
			rows = append(rows, row)
		}
	}
	return rows
}

// aqiBreakpoint maps a concentration band onto an index band.
type aqiBreakpoint struct {
	cLo, cHi float64
	iLo, iHi float64
}

// Sub-index bands in the style of the CPCB index, reduced to the two
// particulate pollutants that dominate the composite.
var (
	pm25Bands = []aqiBreakpoint{
		{0, 30, 0, 50},
		{30, 60, 51, 100},
		{60, 90, 101, 200},
		{90, 120, 201, 300},
		{120, 250, 301, 400},
		{250, 500, 401, 500},
	}
	pm10Bands = []aqiBreakpoint{
		{0, 50, 0, 50},
		{50, 100, 51, 100},
		{100, 250, 101, 200},
		{250, 350, 201, 300},
		{350, 430, 301, 400},
		{430, 600, 401, 500},
	}
)

func airQualityIndex(pm25, pm10 float64) float64 {
	return math.Max(subIndex(pm25, pm25Bands), subIndex(pm10, pm10Bands))
}

func subIndex(c float64, bands []aqiBreakpoint) float64 {
	last := bands[len(bands)-1]
	if c >= last.cHi {
		return last.iHi
	}
	for _, b := range bands {
		if c < b.cHi {
			return b.iLo + (c-b.cLo)*(b.iHi-b.iLo)/(b.cHi-b.cLo)
		}
	}
	return last.iHi
}

func format(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

// blankSome empties measurement cells at the missing rate. Date and City
// stay intact so every row remains attributable.
func blankSome(rng *rand.Rand, row []string, missing float64) {
	if missing <= 0 {
		return
	}
	for i := 2; i < len(row); i++ {
		if rng.Float64() < missing {
			row[i] = ""
		}
	}
}

func writeCSV(path string, rows [][]string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close() //nolint:errcheck // already failing
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close() //nolint:errcheck // already failing
		return err
	}
	return f.Close()
}

// colStats aggregates per-column facts for the summary print.
type colStats struct {
	count   int
	missing int
	min     float64
	max     float64
	sum     float64
}

func printStats(rows [][]string) {
	stats := make([]colStats, len(header))
	for i := range stats {
		stats[i].min = math.Inf(1)
		stats[i].max = math.Inf(-1)
	}
	for _, row := range rows {
		for i := 2; i < len(row); i++ {
			if row[i] == "" {
				stats[i].missing++
				continue
			}
			v, err := strconv.ParseFloat(row[i], 64)
			if err != nil {
				continue
			}
			s := &stats[i]
			s.count++
			s.sum += v
			s.min = math.Min(s.min, v)
			s.max = math.Max(s.max, v)
		}
	}

	fmt.Println("\n=== Column summary ===")
	for i := 2; i < len(header); i++ {
		s := stats[i]
		if s.count == 0 {
			fmt.Printf("%-6s all missing\n", header[i])
			continue
		}
		fmt.Printf("%-6s min=%.1f mean=%.1f max=%.1f missing=%d\n",
			header[i], s.min, s.sum/float64(s.count), s.max, s.missing)
	}
}
