package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names used by marquee.
const (
	BucketSearch = "search"
	BucketResume = "resume"
)

// BoltStore is a durable key/value file shared by every mirror.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the store at path with the given buckets.
func OpenBolt(path string, buckets ...string) (*BoltStore, error) {
	if path == "" {
		return nil, errors.New("bolt store path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Mirror returns a Mirror bound to the named bucket. The bucket is created
// on first write if OpenBolt did not create it.
func (s *BoltStore) Mirror(bucket string) Mirror {
	return &boltMirror{db: s.db, bucket: []byte(bucket)}
}

func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type boltMirror struct {
	db     *bolt.DB
	bucket []byte
}

func (m *boltMirror) Get(key string) ([]byte, bool, error) {
	var data []byte
	err := m.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(m.bucket)
		if b == nil {
			return nil
		}
		// Bolt values are only valid inside the transaction.
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return data, data != nil, nil
}

func (m *boltMirror) Put(key string, value []byte) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(m.bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), value)
	})
}

func (m *boltMirror) Delete(key string) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(m.bucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}
