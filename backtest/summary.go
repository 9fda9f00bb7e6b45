package backtest

import "github.com/rustyeddy/fxsignal/strategies"

// Summary aggregates closed trades. Trades == Wins+Losses+Even+Unknown.
type Summary struct {
	Trades  int
	Wins    int
	Losses  int
	Even    int
	Unknown int
	Running int

	BuyTrades  int
	BuyWins    int
	SellTrades int
	SellWins   int

	WinRate     float64
	BuyWinRate  float64
	SellWinRate float64

	// Balance is sum(win score) * risk * riskReward - losses * risk.
	Balance float64
}

type sideCount struct {
	trades, wins, undecided int
}

// Summarize recomputes the summary from scratch. Running trades are
// counted separately and excluded from every rate.
func Summarize(trades []TradeResult, riskPerTrade, riskReward float64) Summary {
	var s Summary
	var buy, sell sideCount
	var winScore float64

	for _, t := range trades {
		if t.Running {
			s.Running++
			continue
		}
		s.Trades++

		sc := &buy
		if t.Signal == strategies.Sell {
			sc = &sell
		}
		sc.trades++

		switch t.Outcome {
		case OutcomeWin:
			s.Wins++
			sc.wins++
			winScore += t.Score
		case OutcomeLoss:
			s.Losses++
		case OutcomeEven:
			s.Even++
			sc.undecided++
		case OutcomeUnknown:
			s.Unknown++
			sc.undecided++
		}
	}

	s.BuyTrades, s.BuyWins = buy.trades, buy.wins
	s.SellTrades, s.SellWins = sell.trades, sell.wins
	s.WinRate = rate(s.Wins, s.Trades-s.Unknown-s.Even)
	s.BuyWinRate = rate(buy.wins, buy.trades-buy.undecided)
	s.SellWinRate = rate(sell.wins, sell.trades-sell.undecided)
	s.Balance = winScore*riskPerTrade*riskReward - float64(s.Losses)*riskPerTrade
	return s
}

func rate(wins, decided int) float64 {
	if decided <= 0 {
		return 0
	}
	return float64(wins) / float64(decided)
}
