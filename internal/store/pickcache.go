// Package store 提供 sqlite 本地持久化，当前只承载当日 AI 选股结果缓存。
package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"time"

	"github.com/run-bigpig/xuangu/internal/logger"

	_ "modernc.org/sqlite"
)

var log = logger.New("Store")

// PickCache 当日选股结果缓存，单槽：按日期覆盖写入，只读取当天
type PickCache struct {
	db *sql.DB
}

// OpenPickCache 打开（必要时建表）选股缓存数据库
func OpenPickCache(dataDir string) (*PickCache, error) {
	dbPath := filepath.Join(dataDir, "xuangu.db")
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS ai_pick_cache (
			date TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Debug("pick cache opened at %s", dbPath)
	return &PickCache{db: db}, nil
}

// today 缓存主键，自然日
func today() string {
	return time.Now().Format("2006-01-02")
}

// Save 写入当日结果，同日覆盖
func (c *PickCache) Save(content string) error {
	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO ai_pick_cache (date, content, created_at) VALUES (?, ?, datetime('now'))",
		today(), content,
	)
	return err
}

// Load 读取当日结果，没有时返回空串
func (c *PickCache) Load() (string, error) {
	var content string
	err := c.db.QueryRow(
		"SELECT content FROM ai_pick_cache WHERE date = ?", today(),
	).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return content, nil
}

// Clear 清空当日缓存
func (c *PickCache) Clear() error {
	_, err := c.db.Exec("DELETE FROM ai_pick_cache WHERE date = ?", today())
	return err
}

// Close 关闭数据库
func (c *PickCache) Close() error {
	return c.db.Close()
}
