package market

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandleCSVRoundTrip(t *testing.T) {
	t.Parallel()

	in := []Candle{{
		Instrument:  "EUR_USD",
		Granularity: H1,
		Time:        time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		Volume:      42,
		Complete:    true,
		Bid:         OHLC{O: dec("1.1000"), H: dec("1.1010"), L: dec("1.0990"), C: dec("1.1002")},
		Mid:         OHLC{O: dec("1.1001"), H: dec("1.1011"), L: dec("1.0991"), C: dec("1.1003")},
		Ask:         OHLC{O: dec("1.1002"), H: dec("1.1012"), L: dec("1.0992"), C: dec("1.1004")},
	}}

	var buf bytes.Buffer
	n, err := WriteCandlesCSV(&buf, in)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, strings.HasPrefix(buf.String(), "time,instrument,granularity,complete,volume,bid_o"))

	out, err := ReadCandlesCSV(&buf)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, in[0].Instrument, out[0].Instrument)
	assert.Equal(t, H1, out[0].Granularity)
	assert.Equal(t, 42, out[0].Volume)
	assert.True(t, out[0].Ask.L.Equal(dec("1.0992")))
	assert.True(t, out[0].Time.Equal(in[0].Time))
}

func TestReadCandlesCSVSingleSide(t *testing.T) {
	t.Parallel()

	src := "time,instrument,granularity,complete,volume,o,h,l,c\n" +
		"2024-01-01T00:00:00Z,EUR_USD,M1,true,10,1.1,1.2,1.0,1.15\n" +
		"\n" +
		"2024-01-01T00:01:00Z,EUR_USD,M1,false,5,1.15,1.16,1.14,1.15\n"

	out, err := ReadCandlesCSV(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, out[0].Bid.C.Equal(dec("1.15")))
	assert.True(t, out[0].Ask.C.Equal(dec("1.15")))
	assert.False(t, out[1].Complete)
}

func TestReadCandlesCSVErrors(t *testing.T) {
	t.Parallel()

	_, err := ReadCandlesCSV(strings.NewReader("instrument,granularity\nEUR_USD,H1\n"))
	assert.ErrorContains(t, err, `missing "time"`)

	_, err = ReadCandlesCSV(strings.NewReader("time,instrument,granularity,c\nnot-a-time,EUR_USD,H1,1.1\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestTickCSVReader(t *testing.T) {
	t.Parallel()

	src := "time,instrument,bid,ask\n" +
		"2024-01-01T00:00:00Z,EUR_USD,1.1000,1.1002\n" +
		"2024-01-01T00:00:01Z,EUR_USD,1.1001,1.1003\n" +
		"short,row\n" +
		"2024-01-01T00:00:02Z,EUR_USD,1.1002,1.1004\n"

	from := time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC)
	r := NewTickCSVReader(strings.NewReader(src), from, time.Time{})

	var got []Tick
	for {
		tk, ok, err := r.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, tk)
	}
	require.Len(t, got, 2)
	assert.True(t, got[0].Bid.Equal(dec("1.1001")))
	assert.Equal(t, "EUR_USD", got[1].Instrument)
}
