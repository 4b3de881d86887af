package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

const bodyBucket = "bodies"

// boltStore spools large bodies into a BoltDB file. Bodies below the spool
// threshold stay in memory. The file is scratch space: its bucket is purged
// on open and on close.
type boltStore struct {
	mu        sync.RWMutex
	db        *bolt.DB
	threshold int64
}

// openBolt initializes a BoltDB-backed spool.
func openBolt(path string, opts Options) (BodyStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second, NoSync: true})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(resetBucket); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	return &boltStore{db: db, threshold: opts.SpoolThreshold}, nil
}

// resetBucket drops anything left behind by a previous process.
func resetBucket(tx *bolt.Tx) error {
	if tx.Bucket([]byte(bodyBucket)) != nil {
		if err := tx.DeleteBucket([]byte(bodyBucket)); err != nil {
			return err
		}
	}
	_, err := tx.CreateBucket([]byte(bodyBucket))
	return err
}

// Put stores data under id. Small bodies are kept in memory.
func (b *boltStore) Put(id string, data []byte) (Body, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.db == nil {
		return nil, ErrClosed
	}
	if int64(len(data)) < b.threshold {
		return newMemoryBody(data), nil
	}
	if len(data) > bolt.MaxValueSize {
		return nil, fmt.Errorf("body of %d bytes exceeds spool limit of %d", len(data), bolt.MaxValueSize)
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bodyBucket))
		if bucket == nil {
			return fmt.Errorf("body bucket missing")
		}
		return bucket.Put([]byte(id), data)
	})
	if err != nil {
		return nil, fmt.Errorf("spool body %s: %w", id, err)
	}
	return &boltBody{store: b, key: []byte(id), length: int64(len(data))}, nil
}

// Close purges the spool and closes the BoltDB file.
func (b *boltStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}
	db := b.db
	b.db = nil

	purgeErr := db.Update(resetBucket)
	if err := db.Close(); err != nil {
		return fmt.Errorf("close bbolt db: %w", err)
	}
	if purgeErr != nil {
		return fmt.Errorf("purge spool: %w", purgeErr)
	}
	return nil
}

type boltBody struct {
	store    *boltStore
	key      []byte
	length   int64
	mu       sync.RWMutex
	released bool
}

func (b *boltBody) Len() int64 { return b.length }

// ReadAt copies from the spooled value. Bolt values are only valid inside
// the transaction, so the copy happens there.
func (b *boltBody) ReadAt(p []byte, off int64) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.released {
		return 0, ErrReleased
	}
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= b.length {
		return 0, io.EOF
	}

	b.store.mu.RLock()
	defer b.store.mu.RUnlock()
	if b.store.db == nil {
		return 0, ErrClosed
	}

	var (
		n       int
		readErr error
	)
	err := b.store.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bodyBucket))
		if bucket == nil {
			return fmt.Errorf("body bucket missing")
		}
		value := bucket.Get(b.key)
		if value == nil {
			return fmt.Errorf("spooled body %s missing", b.key)
		}
		n, readErr = readAt(value, p, off)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, readErr
}

func (b *boltBody) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil
	}
	b.released = true

	b.store.mu.RLock()
	defer b.store.mu.RUnlock()
	if b.store.db == nil {
		// Close already purged the bucket.
		return nil
	}
	return b.store.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bodyBucket))
		if bucket == nil {
			return fmt.Errorf("body bucket missing")
		}
		return bucket.Delete(b.key)
	})
}
