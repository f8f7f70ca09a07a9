package feed

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"intrabt/internal/market"

	_ "modernc.org/sqlite"
)

// Cache 以 symbol+interval 为单位落盘的 K 线缓存（每个组合一个 sqlite 文件）。
// sessions 表记录已拉取过的交易日，空结果也会记录，避免反复请求无数据的日子。
type Cache struct {
	root string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func NewCache(root string) (*Cache, error) {
	if root == "" {
		return nil, fmt.Errorf("cache root 不能为空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Cache{root: root, dbs: make(map[string]*sql.DB)}, nil
}

func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for k, db := range c.dbs {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.dbs, k)
	}
	return firstErr
}

func (c *Cache) db(symbol, interval string) (*sql.DB, error) {
	if symbol == "" || interval == "" {
		return nil, fmt.Errorf("symbol/interval 不能为空")
	}
	key := strings.ToUpper(symbol) + "@" + strings.ToLower(interval)
	c.mu.Lock()
	defer c.mu.Unlock()
	if db, ok := c.dbs[key]; ok && db != nil {
		return db, nil
	}
	path := filepath.Join(c.root, strings.ToUpper(symbol), strings.ToLower(interval)+".db")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	c.dbs[key] = db
	return db, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS candles (
			date     TEXT NOT NULL,
			time_sec INTEGER NOT NULL,
			open     REAL NOT NULL,
			high     REAL NOT NULL,
			low      REAL NOT NULL,
			close    REAL NOT NULL,
			volume   INTEGER NOT NULL,
			PRIMARY KEY (date, time_sec)
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			date       TEXT PRIMARY KEY,
			rows       INTEGER NOT NULL,
			fetched_at INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Get 命中时返回该交易日的完整序列；ok=false 表示这一天还没拉取过。
func (c *Cache) Get(ctx context.Context, symbol, date, interval string) (market.Series, bool, error) {
	db, err := c.db(symbol, interval)
	if err != nil {
		return market.Series{}, false, err
	}
	var sessionRows int64
	err = db.QueryRowContext(ctx, `SELECT rows FROM sessions WHERE date = ?`, date).Scan(&sessionRows)
	if err == sql.ErrNoRows {
		return market.Series{}, false, nil
	}
	if err != nil {
		return market.Series{}, false, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT time_sec, open, high, low, close, volume
		FROM candles WHERE date = ? ORDER BY time_sec ASC`, date)
	if err != nil {
		return market.Series{}, false, err
	}
	defer rows.Close()
	var candles []market.Candle
	for rows.Next() {
		var (
			timeSec int
			c       market.Candle
		)
		if err := rows.Scan(&timeSec, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return market.Series{}, false, err
		}
		c.Time = market.TimeOfDay(timeSec)
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return market.Series{}, false, err
	}
	series, err := market.NewSeries(symbol, date, interval, candles)
	if err != nil {
		return market.Series{}, false, err
	}
	return series, true, nil
}

// Put 写入一个交易日的序列（重复写入覆盖），并登记 session。
func (c *Cache) Put(ctx context.Context, series market.Series) error {
	db, err := c.db(series.Symbol, series.Interval)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (date, time_sec, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date, time_sec) DO UPDATE SET
		    open=excluded.open,
		    high=excluded.high,
		    low=excluded.low,
		    close=excluded.close,
		    volume=excluded.volume`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, cd := range series.Candles {
		if _, err := stmt.ExecContext(ctx, series.Date, int(cd.Time), cd.Open, cd.High, cd.Low, cd.Close, cd.Volume); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (date, rows, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET rows=excluded.rows, fetched_at=excluded.fetched_at`,
		series.Date, len(series.Candles), time.Now().UnixMilli()); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
