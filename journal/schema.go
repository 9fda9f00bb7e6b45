package journal

// Prices are stored as TEXT so decimals survive unchanged.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	instrument TEXT NOT NULL,
	granularity TEXT NOT NULL,
	strategy TEXT NOT NULL,
	params TEXT NOT NULL,
	start_time DATETIME NOT NULL,
	end_time DATETIME NOT NULL,
	duration_ms INTEGER NOT NULL,
	candles INTEGER NOT NULL,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	even INTEGER NOT NULL,
	unknown INTEGER NOT NULL,
	running INTEGER NOT NULL,
	win_rate REAL NOT NULL,
	buy_win_rate REAL NOT NULL,
	sell_win_rate REAL NOT NULL,
	balance REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_instrument ON runs(instrument, created);

CREATE TABLE IF NOT EXISTS trades (
	run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	signal TEXT NOT NULL,
	entry_time DATETIME NOT NULL,
	entry_price TEXT NOT NULL,
	take_profit TEXT NOT NULL,
	stop_loss TEXT NOT NULL,
	close_time DATETIME,
	close_price TEXT NOT NULL,
	outcome TEXT NOT NULL,
	score REAL NOT NULL,
	pl TEXT NOT NULL,
	trailed INTEGER NOT NULL,
	running INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`
