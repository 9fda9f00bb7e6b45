package indicators

import "github.com/rustyeddy/fxsignal/market"

type RSIValue struct {
	AvgGain float64
	AvgLoss float64
	RSI     float64
}

// RSI uses Wilder smoothing of per-bar gains and losses of the mid close.
func RSI(candles []market.Candle, window int) []RSIValue {
	return RSIOf(market.Closes(candles), window)
}

// RSIOf computes RSI over raw closes. A zero average loss saturates at 100.
func RSIOf(closes []float64, window int) []RSIValue {
	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}

	ag := RMA(gains, window)
	al := RMA(losses, window)

	out := make([]RSIValue, len(closes))
	for i := range out {
		v := RSIValue{AvgGain: ag[i], AvgLoss: al[i], RSI: 100}
		if al[i] != 0 {
			v.RSI = 100 - 100/(1+ag[i]/al[i])
		}
		out[i] = v
	}
	return out
}
