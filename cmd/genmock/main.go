// Command genmock generates a reproducible JSON fixture of synthetic readings
// for tests and local demos. Readings are produced by the same generator the
// service uses, against a frozen clock and a seeded RNG, and labeled the way
// the transformer labels synthetic readings.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/readings.json \
//	  -count 500 -seed 42 -mode fixed
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/soundwatch/noise-monitor-service/internal/adapter/synthetic"
	"github.com/soundwatch/noise-monitor-service/internal/domain"
)

var baseTime = time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the readings fixture")
	count := flag.Int("count", 500, "number of readings to generate")
	seed := flag.Uint64("seed", 42, "random seed")
	location := flag.String("location", "fixture-room", "location stamped on every reading")
	interval := flag.Duration("interval", 5*time.Second, "spacing between reading timestamps")
	modeFlag := flag.String("mode", string(domain.ModeFixed), "labeling mode: fixed or adaptive")
	flag.Parse()

	if *out == "" || *count < 1 {
		flag.Usage()
		return fmt.Errorf("missing required flag -out or invalid -count")
	}
	mode, ok := domain.ParseMode(*modeFlag)
	if !ok {
		return fmt.Errorf("invalid -mode %q", *modeFlag)
	}

	clock := clockwork.NewFakeClockAt(baseTime)
	logger := slog.New(slog.DiscardHandler)
	gen := synthetic.NewGenerator(synthetic.NewSeededRand(*seed), clock, *interval, *location, logger)

	readings := make([]domain.Reading, 0, *count)
	for range *count {
		readings = append(readings, gen.Reading())
		clock.Advance(*interval)
	}
	labelAll(readings, mode)

	if err := writeJSON(*out, readings); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote %d readings to %s", len(readings), *out)

	printStats(readings, mode)
	return nil
}

// labelAll labels each reading. Adaptive labels use the whole fixture as history.
func labelAll(readings []domain.Reading, mode domain.Mode) {
	history := make([]float64, len(readings))
	for i, r := range readings {
		history[i] = r.LevelDB
	}
	for i := range readings {
		label := domain.ClassifyFixed(readings[i].LevelDB)
		if mode == domain.ModeAdaptive {
			label = domain.ClassifyAdaptive(readings[i].LevelDB, func() []float64 { return history })
		}
		readings[i] = readings[i].WithLabel(label)
	}
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(readings []domain.Reading, mode domain.Mode) {
	counts := map[domain.Label]int{}
	lo, hi := readings[0].LevelDB, readings[0].LevelDB
	for _, r := range readings {
		counts[*r.Label]++
		lo = min(lo, r.LevelDB)
		hi = max(hi, r.LevelDB)
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d (mode %s)\n", len(readings), mode)
	fmt.Printf("Level range: %.1f to %.1f dB\n", lo, hi)
	for _, l := range domain.Labels {
		fmt.Printf("  %-10s %d\n", l, counts[l])
	}
}
