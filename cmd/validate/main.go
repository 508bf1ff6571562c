// Command validate checks a readings fixture produced by genmock: identities,
// level ranges, ordering and labels are verified against the domain package so
// fixtures stay in step with the classifier.
//
// Usage:
//
//	go run ./cmd/validate -fixture data/mock/readings.json -mode fixed
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/soundwatch/noise-monitor-service/internal/domain"
)

// Synthetic readings are drawn from [30, 80] dB.
const (
	syntheticMinDB = 30.0
	syntheticMaxDB = 80.0
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	fixture := flag.String("fixture", "", "path to readings JSON fixture")
	modeFlag := flag.String("mode", string(domain.ModeFixed), "mode the fixture was labeled with: fixed or adaptive")
	flag.Parse()

	mode, ok := domain.ParseMode(*modeFlag)
	if *fixture == "" || !ok {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*fixture, mode); code != 0 {
		os.Exit(code)
	}
}

func run(path string, mode domain.Mode) int {
	fmt.Println("=== Readings Fixture Validation ===")
	fmt.Println()

	readings, err := loadJSON[domain.Reading](path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load fixture: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateIdentity(readings),
		validateLevels(readings),
		validateOrdering(readings),
		validateLabels(readings, mode),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Readings: %d (mode %s)\n", len(readings), mode)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Printf("  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	return 0
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func validateIdentity(readings []domain.Reading) *phase {
	p := &phase{name: "Reading IDs are derived and unique"}
	seen := make(map[string]int, len(readings))
	for i, r := range readings {
		if want := domain.ReadingID(r.Location, r.Timestamp, r.LevelDB); r.ID != want {
			p.errorf("[%d] id %s, want %s", i, r.ID, want)
		}
		if j, dup := seen[r.ID]; dup {
			p.errorf("[%d] duplicate id %s (first at %d)", i, r.ID, j)
		}
		seen[r.ID] = i
	}
	return p
}

func validateLevels(readings []domain.Reading) *phase {
	p := &phase{name: "Levels are finite and in range"}
	for i, r := range readings {
		switch {
		case math.IsNaN(r.LevelDB) || math.IsInf(r.LevelDB, 0):
			p.errorf("[%d] level %v is not finite", i, r.LevelDB)
		case r.Source == domain.SourceSynthetic && (r.LevelDB < syntheticMinDB || r.LevelDB > syntheticMaxDB):
			p.errorf("[%d] synthetic level %.1f outside [%.0f, %.0f]", i, r.LevelDB, syntheticMinDB, syntheticMaxDB)
		}
	}
	return p
}

func validateOrdering(readings []domain.Reading) *phase {
	p := &phase{name: "Timestamps strictly ascending"}
	for i := 1; i < len(readings); i++ {
		if readings[i].Timestamp <= readings[i-1].Timestamp {
			p.errorf("[%d] timestamp %.3f not after %.3f", i, readings[i].Timestamp, readings[i-1].Timestamp)
		}
	}
	return p
}

// validateLabels reclassifies every reading. Adaptive fixtures are checked
// against the whole fixture as history, the way genmock labels them.
func validateLabels(readings []domain.Reading, mode domain.Mode) *phase {
	p := &phase{name: fmt.Sprintf("Labels match %s classification", mode)}
	history := make([]float64, len(readings))
	for i, r := range readings {
		history[i] = r.LevelDB
	}
	for i, r := range readings {
		if r.Label == nil {
			p.errorf("[%d] missing label", i)
			continue
		}
		want := domain.ClassifyFixed(r.LevelDB)
		if mode == domain.ModeAdaptive {
			want = domain.ClassifyAdaptive(r.LevelDB, func() []float64 { return history })
		}
		if *r.Label != want {
			p.errorf("[%d] level %.1f labeled %s, want %s", i, r.LevelDB, *r.Label, want)
		}
	}
	return p
}
