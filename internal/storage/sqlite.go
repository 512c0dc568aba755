package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"dutybot/internal/duty"
	logx "dutybot/pkg/logx"
)

//go:embed migrations.sql
var migrations string

// auditTimeLayout sorts lexically (fixed width, always UTC).
const auditTimeLayout = "2006-01-02T15:04:05.000000Z"

type sqliteStore struct {
	cfg Config
	db  *sql.DB
	log logx.Logger

	// mu serializes Update within the process; BEGIN IMMEDIATE covers
	// other processes (dutyctl next to the bot).
	mu sync.Mutex
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path, busy.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(context.Background(), migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return &sqliteStore{cfg: cfg, db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *sqliteStore) readAll(ctx context.Context, q querier) (map[string][]byte, error) {
	rows, err := q.QueryContext(ctx, `SELECT key, value FROM state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	raw := map[string][]byte{}
	for rows.Next() {
		var (
			k string
			v []byte
		)
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		raw[k] = v
	}
	return raw, rows.Err()
}

func (s *sqliteStore) decode(raw map[string][]byte) (*duty.State, error) {
	return decodeState(func(k string) ([]byte, bool) {
		b, ok := raw[k]
		return b, ok
	}, s.cfg)
}

func (s *sqliteStore) Load(ctx context.Context) (*duty.State, error) {
	raw, err := s.readAll(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return s.decode(raw)
}

func (s *sqliteStore) Update(ctx context.Context, fn func(*duty.State) error) (_ *duty.State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// database/sql's BeginTx cannot ask for IMMEDIATE, so drive the
	// transaction by hand on a pinned connection.
	if _, err := conn.ExecContext(ctx, `BEGIN IMMEDIATE`); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_, _ = conn.ExecContext(context.Background(), `ROLLBACK`)
		}
	}()

	raw, err := s.readAll(ctx, conn)
	if err != nil {
		return nil, err
	}
	st, err := s.decode(raw)
	if err != nil {
		return nil, err
	}
	if err = fn(st); err != nil {
		return nil, err
	}
	enc, err := encodeState(st)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, k := range stateKeys {
		v := enc[k]
		if v == nil {
			if _, err = conn.ExecContext(ctx, `DELETE FROM state WHERE key = ?`, k); err != nil {
				return nil, err
			}
			continue
		}
		if old, ok := raw[k]; ok && string(old) == string(v) {
			continue
		}
		if _, err = conn.ExecContext(ctx,
			`INSERT INTO state(key, value, updated_at) VALUES(?,?,?)
			 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
			k, v, now,
		); err != nil {
			return nil, err
		}
	}
	if _, err = conn.ExecContext(ctx, `COMMIT`); err != nil {
		return nil, err
	}
	return st.Clone(), nil
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	e = fillAudit(e)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(id, at, source, actor_id, actor_username, action, target, err, took_ms)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		e.ID, e.At.Format(auditTimeLayout), e.Source, e.ActorID, nullStr(e.ActorUsername),
		e.Action, nullStr(e.Target), nullStr(e.Error), e.TookMS,
	)
	return err
}

func (s *sqliteStore) RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, at, source, actor_id, actor_username, action, target, err, took_ms
		 FROM audit ORDER BY at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var (
			e                      AuditEntry
			at                     string
			actorID                sql.NullInt64
			username, target, errS sql.NullString
		)
		if err := rows.Scan(&e.ID, &at, &e.Source, &actorID, &username, &e.Action, &target, &errS, &e.TookMS); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(auditTimeLayout, at)
		e.ActorID = actorID.Int64
		e.ActorUsername = username.String
		e.Target = target.String
		e.Error = errS.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
