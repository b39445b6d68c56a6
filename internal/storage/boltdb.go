package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/clipdot/clipd/internal/clipboard"
	"github.com/clipdot/clipd/pkg/compression"
)

const (
	historyBucket = "history"

	snapshotKey  = "snapshot"
	saveCountKey = "save_count"

	// first byte of a stored snapshot
	flagRaw        = 0
	flagCompressed = 1
)

// BoltStore persists history snapshots in a BoltDB database. One
// snapshot holds the full serialized history stream; large snapshots
// are gzip-compressed before the put.
type BoltStore struct {
	db     *bbolt.DB
	logger *zap.Logger
}

// StoreConfig holds configuration for BoltStore initialization.
type StoreConfig struct {
	DBPath string
	Logger *zap.Logger
}

// NewBoltStore opens (creating if needed) the snapshot database.
func NewBoltStore(cfg StoreConfig) (*BoltStore, error) {
	db, err := bbolt.Open(cfg.DBPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(historyBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("BoltStore initialized", zap.String("db_path", cfg.DBPath))

	return &BoltStore{db: db, logger: logger}, nil
}

// SaveHistory replaces the stored snapshot with the current state of h.
func (s *BoltStore) SaveHistory(h *clipboard.History) error {
	var buf bytes.Buffer
	if _, err := h.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to serialize history: %w", err)
	}

	blob, compressed, err := compression.Compress(buf.Bytes())
	if err != nil {
		return fmt.Errorf("failed to compress snapshot: %w", err)
	}
	flag := byte(flagRaw)
	if compressed {
		flag = flagCompressed
	}
	record := append([]byte{flag}, blob...)

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(historyBucket))
		if err := b.Put([]byte(snapshotKey), record); err != nil {
			return err
		}
		count := uint64(0)
		if v := b.Get([]byte(saveCountKey)); len(v) == 8 {
			count = binary.BigEndian.Uint64(v)
		}
		var cv [8]byte
		binary.BigEndian.PutUint64(cv[:], count+1)
		return b.Put([]byte(saveCountKey), cv[:])
	})
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}

	s.logger.Debug("History snapshot saved",
		zap.Int("items", h.Len()),
		zap.Int("bytes", len(record)),
		zap.Bool("compressed", compressed))
	return nil
}

// LoadHistory restores the stored snapshot into h, truncated to h's
// capacity. A missing snapshot is a no-op.
func (s *BoltStore) LoadHistory(h *clipboard.History) error {
	var record []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(historyBucket))
		if v := b.Get([]byte(snapshotKey)); v != nil {
			record = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if len(record) == 0 {
		return nil
	}

	blob := record[1:]
	if record[0] == flagCompressed {
		blob, err = compression.Decompress(blob)
		if err != nil {
			return fmt.Errorf("failed to decompress snapshot: %w", err)
		}
	}

	if _, err := h.ReadFrom(bytes.NewReader(blob)); err != nil {
		return fmt.Errorf("failed to deserialize history: %w", err)
	}

	s.logger.Debug("History snapshot loaded", zap.Int("items", h.Len()))
	return nil
}

// SaveCount returns how many snapshots have been written over the
// database's lifetime.
func (s *BoltStore) SaveCount() (uint64, error) {
	var count uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(historyBucket))
		if v := b.Get([]byte(saveCountKey)); len(v) == 8 {
			count = binary.BigEndian.Uint64(v)
		}
		return nil
	})
	return count, err
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
