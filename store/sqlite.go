// Package store 将扫描结果保存到SQLite,每个端口一行
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"portscan/scan"
)

const schema = `
CREATE TABLE IF NOT EXISTS scans (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	target TEXT NOT NULL,
	port INTEGER NOT NULL,
	status TEXT NOT NULL,
	timestamp TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scans_target ON scans(target);
`

const (
	DefaultHistoryLimit = 500
	DefaultExportLimit  = 2000
	dateLayout          = "2006-01-02"
)

var ErrNotFound = errors.New("scan row not found")

// Row scans表中的一行
type Row struct {
	ID        int64  `db:"id" json:"-"`
	Target    string `db:"target" json:"target"`
	Port      int    `db:"port" json:"port"`
	Status    string `db:"status" json:"status"`
	Timestamp string `db:"timestamp" json:"timestamp"`
}

// Filter 历史记录查询条件,零值表示不过滤
type Filter struct {
	Target string    // 目标子串,不区分大小写
	From   time.Time // 起始日期(含)
	To     time.Time // 结束日期(含当天)
	Limit  int       // <=0 时使用DefaultHistoryLimit
}

// Store SQLite存储
type Store struct {
	db   *sqlx.DB
	path string
}

// Open 打开(必要时创建)数据库文件并初始化表结构
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create db directory")
		}
	}

	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open database %s", path)
	}
	// 单连接写入,避免 database is locked
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "set pragma")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create schema")
	}
	log.Debugf("数据库已就绪:%s", path)
	return &Store{db: db, path: path}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Timestamp ISO-8601 UTC时间,同一次扫描的所有行共用一个
func Timestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// InsertScanResults 在一个事务中写入一次扫描的全部结果,返回写入的行数
func (s *Store) InsertScanResults(ctx context.Context, target string, records []scan.Record, ts time.Time) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	stamp := Timestamp(ts)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, "INSERT INTO scans(target, port, status, timestamp) VALUES (?, ?, ?, ?)")
	if err != nil {
		return 0, errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, target, r.Port, r.Status.String(), stamp); err != nil {
			return 0, errors.Wrapf(err, "insert %s:%d", target, r.Port)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit")
	}
	return len(records), nil
}

// History 按条件查询,最新的记录在前
func (s *Store) History(ctx context.Context, f Filter) ([]Row, error) {
	var (
		where []string
		args  []interface{}
	)
	if t := strings.TrimSpace(f.Target); t != "" {
		where = append(where, `target LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(t)+"%")
	}
	if !f.From.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, f.From.Format(dateLayout))
	}
	if !f.To.IsZero() {
		where = append(where, "timestamp < ?")
		args = append(args, f.To.AddDate(0, 0, 1).Format(dateLayout))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	query := "SELECT id, target, port, status, timestamp FROM scans"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows := []Row{}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "query history")
	}
	return rows, nil
}

// Latest 返回最近一次扫描(同一目标、同一时间戳)的全部行
func (s *Store) Latest(ctx context.Context) ([]Row, error) {
	var last Row
	err := s.db.GetContext(ctx, &last, "SELECT id, target, port, status, timestamp FROM scans ORDER BY id DESC LIMIT 1")
	if err == sql.ErrNoRows {
		return []Row{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query latest")
	}

	rows := []Row{}
	err = s.db.SelectContext(ctx, &rows,
		"SELECT id, target, port, status, timestamp FROM scans WHERE target = ? AND timestamp = ? ORDER BY id DESC",
		last.Target, last.Timestamp)
	if err != nil {
		return nil, errors.Wrap(err, "query latest")
	}
	return rows, nil
}

// Delete 删除一行,不存在时返回ErrNotFound
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM scans WHERE id = ?", id)
	if err != nil {
		return errors.Wrapf(err, "delete %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrNotFound, "id %d", id)
	}
	return nil
}

// DeleteAll 清空历史记录,返回删除的行数
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM scans")
	if err != nil {
		return 0, errors.Wrap(err, "delete all")
	}
	return res.RowsAffected()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
