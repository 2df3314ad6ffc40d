package runs

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/cbh4ou/CryptoRebalanceSVC/internal/domain"
)

const (
	defaultRunsDir  = "./wal/runs"
	runSegmentLimit = 1000
	runMaxSegments  = 100
	runKeyPrefix    = "run_"
)

// WALStore journal of rebalancing runs.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore opens the run journal under dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultRunsDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "runs_",
		SegmentThreshold: runSegmentLimit,
		MaxSegments:      runMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init run journal WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends the run record and returns its journal index.
func (s *WALStore) Save(record domain.RunRecord) (uint64, error) {
	if s == nil || s.wal == nil {
		return 0, errors.New("run journal is not initialized")
	}
	if record.Platform == "" {
		return 0, errors.New("run record platform is required")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return 0, errors.Wrap(err, "marshal run record")
	}

	key := fmt.Sprintf("%s%s_%d", runKeyPrefix, record.Platform, record.Timestamp.UnixNano())

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(next, key, payload); err != nil {
		return 0, errors.Wrap(err, "write run record")
	}
	return next, nil
}

// RunsAfter returns run records written after the provided index.
func (s *WALStore) RunsAfter(index uint64) ([]domain.RunRecordEntry, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("run journal is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	entries := make([]domain.RunRecordEntry, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, ok := s.wal.Get(idx)
		if !ok || !strings.HasPrefix(key, runKeyPrefix) {
			continue
		}
		var record domain.RunRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, errors.Wrapf(err, "decode run record %d", idx)
		}
		entries = append(entries, domain.RunRecordEntry{Index: idx, Record: record})
	}

	return entries, nil
}

// Last returns up to n most recent runs, oldest first.
func (s *WALStore) Last(n int) ([]domain.RunRecordEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	current := s.CurrentIndex()
	from := uint64(0)
	if current > uint64(n) {
		from = current - uint64(n)
	}
	return s.RunsAfter(from)
}

// CurrentIndex returns the latest journal index.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("run journal is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
