// Command classify shows how a set of historical levels would be classified.
// It prints the adaptive centroids with the labels their ranks map to and then,
// for each level, the fixed and adaptive labels side by side.
//
// Levels are read from -in (or stdin) as a JSON array or one number per line.
//
// Usage:
//
//	go run ./cmd/classify -in levels.txt
//	mongoexport ... | jq '.level_db' | go run ./cmd/classify
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/soundwatch/noise-monitor-service/internal/domain"
)

func main() {
	if err := run(os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(w io.Writer) error {
	in := flag.String("in", "", "file of levels (default stdin)")
	flag.Parse()

	r := io.Reader(os.Stdin)
	if *in != "" {
		f, err := os.Open(*in)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	levels, err := readLevels(r)
	if err != nil {
		return fmt.Errorf("read levels: %w", err)
	}
	report(w, levels)
	return nil
}

// readLevels parses a JSON array of numbers or one number per line. Blank
// lines and lines starting with # are skipped; non-finite values are rejected.
func readLevels(r io.Reader) ([]float64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(data)

	var levels []float64
	if bytes.HasPrefix(trimmed, []byte("[")) {
		if err := json.Unmarshal(trimmed, &levels); err != nil {
			return nil, err
		}
	} else if levels, err = scanLevels(trimmed); err != nil {
		return nil, err
	}
	if len(levels) == 0 {
		return nil, errors.New("no levels")
	}
	return levels, nil
}

func scanLevels(data []byte) ([]float64, error) {
	var levels []float64
	sc := bufio.NewScanner(bytes.NewReader(data))
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("line %d: invalid level %q", n, line)
		}
		levels = append(levels, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return levels, nil
}

func report(w io.Writer, levels []float64) {
	history := func() []float64 { return levels }

	fmt.Fprintf(w, "=== %d levels ===\n", len(levels))
	if len(levels) < domain.MinHistorySamples {
		fmt.Fprintf(w, "fewer than %d levels: adaptive mode falls back to fixed thresholds\n", domain.MinHistorySamples)
	} else {
		centroids := domain.Cluster(levels, domain.NumBands, domain.AdaptiveMaxIterations)
		ranked := domain.RankLabels(centroids)
		fmt.Fprintln(w, "Centroids:")
		for i, c := range centroids {
			fmt.Fprintf(w, "  %8.2f dB  %s\n", c, ranked[i])
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%10s  %-10s  %-10s\n", "level_db", "fixed", "adaptive")
	for _, l := range levels {
		fmt.Fprintf(w, "%10.2f  %-10s  %-10s\n", l, domain.ClassifyFixed(l), domain.ClassifyAdaptive(l, history))
	}
}
