//go:build blackbox

package blackbox

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
)

func contains(s, sub string) bool { return strings.Contains(s, sub) }

func f64(x float64) string {
	// stable formatting, enough precision for FX ticks
	return fmt.Sprintf("%.6f", x)
}

var start = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func writeTicksCSV(t *testing.T, path, instrument string, n int, step time.Duration, priceFn func(i int) (bid, ask float64)) {
	t.Helper()

	var b strings.Builder
	b.WriteString("time,instrument,bid,ask\n")
	for i := 0; i < n; i++ {
		bid, ask := priceFn(i)
		ts := start.Add(step * time.Duration(i)).Format(time.RFC3339Nano)
		b.WriteString(ts + "," + instrument + "," + f64(bid) + "," + f64(ask) + "\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatal(err)
	}
}

// writeCandlesCSV writes hourly single-side candles ending just before
// start.
func writeCandlesCSV(t *testing.T, path, instrument string, closes []float64) {
	t.Helper()

	var b strings.Builder
	b.WriteString("time,instrument,granularity,complete,volume,o,h,l,c\n")
	first := start.Add(-time.Duration(len(closes)) * time.Hour)
	for i, c := range closes {
		o := c
		if i > 0 {
			o = closes[i-1]
		}
		ts := first.Add(time.Duration(i) * time.Hour).Format(time.RFC3339)
		fmt.Fprintf(&b, "%s,%s,H1,true,100,%s,%s,%s,%s\n",
			ts, instrument, f64(o), f64(max(o, c)+0.0005), f64(min(o, c)-0.0005), f64(c))
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatal(err)
	}
}

func wave(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		// a slow saw so bands are crossed both ways
		phase := float64(i%24) / 24
		if phase > 0.5 {
			phase = 1 - phase
		}
		out[i] = 1.1000 + phase*0.01
	}
	return out
}
