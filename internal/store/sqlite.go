package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yourorg/sessionmock/pkg/types"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dsn); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.Init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Init() error {
	if _, err := s.db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return err
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS collections (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			description TEXT NOT NULL,
			host TEXT NOT NULL,
			exchange_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS exchanges (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			collection_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			recorded_at DATETIME NOT NULL,
			method TEXT NOT NULL,
			url TEXT NOT NULL,
			host TEXT NOT NULL,
			path TEXT NOT NULL,
			raw_query TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			content TEXT NOT NULL,
			response_content_type TEXT NOT NULL,
			latency_ms INTEGER NOT NULL,
			call_count INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE INDEX IF NOT EXISTS idx_exchanges_collection ON exchanges(collection_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) CreateCollection(source, description, host string) (*types.Collection, error) {
	now := time.Now().UTC()
	id, err := s.nextCollectionID(now)
	if err != nil {
		return nil, err
	}
	c := &types.Collection{ID: id, Source: source, Description: description, Host: host, Status: "imported", CreatedAt: now, UpdatedAt: now}
	_, err = s.db.Exec(`INSERT INTO collections(id,source,description,host,exchange_count,status,created_at,updated_at) VALUES(?,?,?,?,?,?,?,?)`,
		c.ID, c.Source, c.Description, c.Host, c.ExchangeCount, c.Status, c.CreatedAt, c.UpdatedAt)
	return c, err
}

func (s *SQLiteStore) nextCollectionID(now time.Time) (string, error) {
	prefix := fmt.Sprintf("col_%s_", now.Format("20060102"))
	rows, err := s.db.Query(`SELECT id FROM collections WHERE id LIKE ?`, prefix+"%")
	if err != nil {
		return "", err
	}
	defer rows.Close()
	maxN := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		var n int
		_, _ = fmt.Sscanf(id, prefix+"%03d", &n)
		if n > maxN {
			maxN = n
		}
	}
	return fmt.Sprintf("%s%03d", prefix, maxN+1), rows.Err()
}

func (s *SQLiteStore) GetCollection(id string) (*types.Collection, error) {
	row := s.db.QueryRow(`SELECT id,source,description,host,exchange_count,status,created_at,updated_at FROM collections WHERE id=?`, id)
	var out types.Collection
	if err := row.Scan(&out.ID, &out.Source, &out.Description, &out.Host, &out.ExchangeCount, &out.Status, &out.CreatedAt, &out.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (s *SQLiteStore) UpdateCollectionStatus(id, status string) error {
	res, err := s.db.Exec(`UPDATE collections SET status=?, updated_at=? WHERE id=?`, status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) ListCollections() ([]types.Collection, error) {
	rows, err := s.db.Query(`SELECT id,source,description,host,exchange_count,status,created_at,updated_at FROM collections ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.Collection
	for rows.Next() {
		var c types.Collection
		if err := rows.Scan(&c.ID, &c.Source, &c.Description, &c.Host, &c.ExchangeCount, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteCollection(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM exchanges WHERE collection_id=?`, id); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM collections WHERE id=?`, id)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) SaveExchanges(collectionID string, exchanges []types.Exchange) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.Prepare(`INSERT INTO exchanges(collection_id,seq,recorded_at,method,url,host,path,raw_query,status_code,content,response_content_type,latency_ms,call_count) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, ex := range exchanges {
		callCount := ex.CallCount
		if callCount == 0 {
			callCount = 1
		}
		content := string(ex.Content)
		if content == "" {
			content = "null"
		}
		if _, err := stmt.Exec(collectionID, ex.Seq, ex.RecordedAt, ex.Method, ex.URL, ex.Host, ex.Path, ex.RawQuery, ex.StatusCode, content, ex.ResponseContentType, ex.LatencyMs, callCount); err != nil {
			return err
		}
	}
	res, err := tx.Exec(`UPDATE collections SET exchange_count=exchange_count+?, updated_at=? WHERE id=?`, len(exchanges), time.Now().UTC(), collectionID)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

// GetExchanges returns a collection's exchanges in corpus order.
func (s *SQLiteStore) GetExchanges(collectionID string) ([]types.Exchange, error) {
	rows, err := s.db.Query(`SELECT id,collection_id,seq,recorded_at,method,url,host,path,raw_query,status_code,content,response_content_type,latency_ms,call_count FROM exchanges WHERE collection_id=? ORDER BY seq ASC, id ASC`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]types.Exchange, 0)
	for rows.Next() {
		var ex types.Exchange
		var content string
		if err := rows.Scan(&ex.ID, &ex.CollectionID, &ex.Seq, &ex.RecordedAt, &ex.Method, &ex.URL, &ex.Host, &ex.Path, &ex.RawQuery, &ex.StatusCode, &content, &ex.ResponseContentType, &ex.LatencyMs, &ex.CallCount); err != nil {
			return nil, err
		}
		ex.Content = []byte(content)
		out = append(out, ex)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return errors.New("store is nil")
	}
	return s.db.Close()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
