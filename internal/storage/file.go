package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"dutybot/internal/duty"
	logx "dutybot/pkg/logx"
)

const auditFileName = "audit.jsonl"

// fileStore keeps every state key in its own file under dir.
//
// Files:
//   - students.txt, start_date.txt, exceptions.json, schedule.json,
//     sim_date.txt, debtors.json (see codec.go)
//   - audit.jsonl (append-only JSON Lines)
//
// Writes go through a temp file and a rename so readers never see a
// half-written file.
type fileStore struct {
	cfg Config
	dir string
	log logx.Logger

	mu        sync.Mutex
	auditFile *os.File
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	dir := strings.TrimSpace(cfg.Path)
	if dir == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	af, err := os.OpenFile(filepath.Join(dir, auditFileName), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileStore{cfg: cfg, dir: dir, log: log, auditFile: af}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return nil
	}
	err := s.auditFile.Close()
	s.auditFile = nil
	return err
}

func (s *fileStore) read(key string) ([]byte, bool, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *fileStore) loadLocked() (*duty.State, map[string][]byte, error) {
	if s.auditFile == nil {
		return nil, nil, ErrClosed
	}
	raw := make(map[string][]byte, len(stateKeys))
	for _, k := range stateKeys {
		b, ok, err := s.read(k)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			raw[k] = b
		}
	}
	st, err := decodeState(func(k string) ([]byte, bool) {
		b, ok := raw[k]
		return b, ok
	}, s.cfg)
	return st, raw, err
}

func (s *fileStore) Load(ctx context.Context) (*duty.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, _, err := s.loadLocked()
	return st, err
}

func (s *fileStore) Update(ctx context.Context, fn func(*duty.State) error) (*duty.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, raw, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	if err := fn(st); err != nil {
		return nil, err
	}
	enc, err := encodeState(st)
	if err != nil {
		return nil, err
	}
	for _, k := range stateKeys {
		old, had := raw[k]
		next := enc[k]
		switch {
		case next == nil && had:
			if err := os.Remove(filepath.Join(s.dir, k)); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		case next != nil && (!had || !bytes.Equal(old, next)):
			if err := writeFileAtomic(filepath.Join(s.dir, k), next); err != nil {
				return nil, err
			}
		}
	}
	return st.Clone(), nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer os.Remove(name) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(name, 0o644); err != nil {
		return err
	}
	return os.Rename(name, path)
}

func (s *fileStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e = fillAudit(e)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return ErrClosed
	}
	return json.NewEncoder(s.auditFile).Encode(e)
}

func (s *fileStore) RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return nil, ErrClosed
	}
	f, err := os.Open(filepath.Join(s.dir, auditFileName))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var all []AuditEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			s.log.Debug("skipping bad audit line", logx.Err(err))
			continue
		}
		all = append(all, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return newestFirst(all, limit), nil
}

func newestFirst(all []AuditEntry, limit int) []AuditEntry {
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]AuditEntry, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out
}
