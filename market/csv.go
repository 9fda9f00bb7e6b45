package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CandleHeader is the canonical candle CSV layout.
var CandleHeader = []string{
	"time", "instrument", "granularity", "complete", "volume",
	"bid_o", "bid_h", "bid_l", "bid_c",
	"mid_o", "mid_h", "mid_l", "mid_c",
	"ask_o", "ask_h", "ask_l", "ask_c",
}

// WriteCandlesCSV writes candles with a header row and returns the number
// of data rows written.
func WriteCandlesCSV(w io.Writer, candles []Candle) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(CandleHeader); err != nil {
		return 0, err
	}

	written := 0
	for _, c := range candles {
		row := []string{
			c.Time.UTC().Format(time.RFC3339),
			c.Instrument,
			c.Granularity.String(),
			strconv.FormatBool(c.Complete),
			strconv.Itoa(c.Volume),
		}
		for _, side := range []OHLC{c.Bid, c.Mid, c.Ask} {
			row = append(row, side.O.String(), side.H.String(), side.L.String(), side.C.String())
		}
		if err := cw.Write(row); err != nil {
			return written, err
		}
		written++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return written, err
	}
	return written, nil
}

// ReadCandlesCSV reads the canonical layout. The single-side layout
// (time,instrument,granularity,complete,volume,o,h,l,c) is also accepted;
// its prices are used for all three sides. Blank rows are skipped.
func ReadCandlesCSV(r io.Reader) ([]Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, need := range []string{"time", "instrument", "granularity"} {
		if _, ok := col[need]; !ok {
			return nil, fmt.Errorf("candle csv: missing %q column", need)
		}
	}
	_, full := col["bid_c"]
	if !full {
		if _, ok := col["c"]; !ok {
			return nil, fmt.Errorf("candle csv: need bid_*/ask_* or o,h,l,c columns")
		}
	}

	var out []Candle
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		c, err := parseCandleRow(row, col, full)
		if err != nil {
			return nil, fmt.Errorf("candle csv line %d: %w", line, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func parseCandleRow(row []string, col map[string]int, full bool) (Candle, error) {
	get := func(name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	t, err := parseTime(get("time"))
	if err != nil {
		return Candle{}, err
	}
	g, err := ParseGranularity(get("granularity"))
	if err != nil {
		return Candle{}, err
	}

	c := Candle{
		Instrument:  get("instrument"),
		Granularity: g,
		Time:        t,
		Complete:    true,
	}
	if s := get("complete"); s != "" {
		if c.Complete, err = strconv.ParseBool(s); err != nil {
			return Candle{}, fmt.Errorf("bad complete %q: %w", s, err)
		}
	}
	if s := get("volume"); s != "" {
		if c.Volume, err = strconv.Atoi(s); err != nil {
			return Candle{}, fmt.Errorf("bad volume %q: %w", s, err)
		}
	}

	side := func(prefix string) (OHLC, error) {
		var o OHLC
		for _, f := range []struct {
			name string
			dst  *decimal.Decimal
		}{{"o", &o.O}, {"h", &o.H}, {"l", &o.L}, {"c", &o.C}} {
			s := get(prefix + f.name)
			if s == "" {
				continue
			}
			v, err := decimal.NewFromString(s)
			if err != nil {
				return OHLC{}, fmt.Errorf("bad %s%s %q: %w", prefix, f.name, s, err)
			}
			*f.dst = v
		}
		return o, nil
	}

	if !full {
		o, err := side("")
		if err != nil {
			return Candle{}, err
		}
		c.Bid, c.Mid, c.Ask = o, o, o
		return c, nil
	}

	if c.Bid, err = side("bid_"); err != nil {
		return Candle{}, err
	}
	if c.Mid, err = side("mid_"); err != nil {
		return Candle{}, err
	}
	if c.Ask, err = side("ask_"); err != nil {
		return Candle{}, err
	}
	return c.WithMid(), nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return t.UTC(), nil
	}
	// OANDA UNIX format: seconds with fraction
	if f, ferr := strconv.ParseFloat(s, 64); ferr == nil {
		sec := int64(f)
		return time.Unix(sec, int64((f-float64(sec))*1e9)).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad time %q: %w", s, err)
}

// TickCSVReader reads tick rows:
//
//	time,instrument,bid,ask
//
// An optional header row is skipped. Rows outside [from, to) are skipped
// when the bounds are set.
type TickCSVReader struct {
	r        *csv.Reader
	from, to time.Time
	sawFirst bool
}

func NewTickCSVReader(r io.Reader, from, to time.Time) *TickCSVReader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	return &TickCSVReader{r: cr, from: from, to: to}
}

// Next returns the next tick, or ok=false at end of input.
func (tr *TickCSVReader) Next() (Tick, bool, error) {
	for {
		row, err := tr.r.Read()
		if err == io.EOF {
			return Tick{}, false, nil
		}
		if err != nil {
			return Tick{}, false, err
		}
		if len(row) == 0 {
			continue
		}
		if !tr.sawFirst {
			tr.sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}
		if len(row) < 4 || strings.TrimSpace(row[0]) == "" || strings.TrimSpace(row[1]) == "" {
			continue
		}

		t, err := parseTime(strings.TrimSpace(row[0]))
		if err != nil {
			return Tick{}, false, err
		}
		if !tr.from.IsZero() && t.Before(tr.from) {
			continue
		}
		if !tr.to.IsZero() && !t.Before(tr.to) {
			continue
		}

		bid, err := decimal.NewFromString(strings.TrimSpace(row[2]))
		if err != nil {
			return Tick{}, false, fmt.Errorf("bad bid %q: %w", row[2], err)
		}
		ask, err := decimal.NewFromString(strings.TrimSpace(row[3]))
		if err != nil {
			return Tick{}, false, fmt.Errorf("bad ask %q: %w", row[3], err)
		}
		return Tick{Instrument: strings.TrimSpace(row[1]), Time: t, Bid: bid, Ask: ask}, true, nil
	}
}
