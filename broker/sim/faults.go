package sim

import "github.com/rustyeddy/fxsignal/internal/core"

// Op names a broker call for fault injection and call counting.
type Op string

const (
	OpFetchCandles   Op = "FetchCandles"
	OpLastCandleTime Op = "FetchLastCandleTime"
	OpGetAccount     Op = "GetAccount"
	OpGetOpenTrades  Op = "GetOpenTrades"
	OpGetTrade       Op = "GetTrade"
	OpSubmitOrder    Op = "SubmitOrder"
	OpUpdateStopLoss Op = "UpdateStopLoss"
)

// Fail makes the next n calls of op return err. A nil err means a
// transport failure.
func (e *Engine) Fail(op Op, n int, err error) {
	if err == nil {
		err = core.WrapError(core.ErrTransport, nil)
	}
	e.faultMu.Lock()
	defer e.faultMu.Unlock()
	for i := 0; i < n; i++ {
		e.faults[op] = append(e.faults[op], err)
	}
}

// Calls reports how many times op was called, failed or not.
func (e *Engine) Calls(op Op) int {
	e.faultMu.Lock()
	defer e.faultMu.Unlock()
	return e.calls[op]
}

func (e *Engine) fault(op Op) error {
	e.faultMu.Lock()
	defer e.faultMu.Unlock()
	e.calls[op]++
	q := e.faults[op]
	if len(q) == 0 {
		return nil
	}
	e.faults[op] = q[1:]
	return q[0]
}
