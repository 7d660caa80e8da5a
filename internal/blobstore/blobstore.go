// Package blobstore keeps uploaded file bytes out of the session struct.
//
// Blobs are stored in an in-memory badger instance, split into fixed-size
// chunks under the keys "blob/<id>/<seq>" where seq is a big-endian uint32,
// so a prefix scan returns the chunks in write order. Nothing is persisted:
// closing the store discards every blob.
package blobstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/dgraph-io/badger/v3"
)

// valueThreshold is the badger value threshold. An in-memory badger has no
// value log, so every stored value must stay below it.
const valueThreshold = 1 << 20

const (
	// MaxChunkSize is the largest chunk [WithChunkSize] accepts.
	MaxChunkSize = valueThreshold / 2

	// DefaultChunkSize is used when no chunk size option is given.
	DefaultChunkSize = MaxChunkSize
)

// ErrNotFound is returned when no blob exists for an id.
var ErrNotFound = errors.New("blobstore: blob not found")

// Option configures a [Store].
type Option func(*Store)

// WithChunkSize sets the maximum size of a single stored chunk in bytes.
// Values <= 0 are ignored and values above [MaxChunkSize] are clamped.
func WithChunkSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.chunkSize = min(n, MaxChunkSize)
		}
	}
}

// Store is an in-memory chunked byte store. It is safe for concurrent use.
type Store struct {
	db        *badger.DB
	chunkSize int
}

// ChunkSize returns the size of the chunks new blobs are split into.
func (s *Store) ChunkSize() int { return s.chunkSize }

// Open creates a new, empty in-memory store.
func Open(opts ...Option) (*Store, error) {
	s := &Store{chunkSize: DefaultChunkSize}
	for _, o := range opts {
		o(s)
	}

	bopts := badger.DefaultOptions("").
		WithInMemory(true).
		WithValueThreshold(valueThreshold).
		WithLogger(nil)
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("blobstore: open: %w", err)
	}
	s.db = db
	return s, nil
}

func metaKey(id string) []byte { return []byte("meta/" + id) }

func chunkPrefix(id string) []byte { return []byte("blob/" + id + "/") }

func chunkKey(id string, seq uint32) []byte {
	p := chunkPrefix(id)
	k := make([]byte, len(p)+4)
	copy(k, p)
	binary.BigEndian.PutUint32(k[len(p):], seq)
	return k
}

// Put reads r to EOF and stores its bytes under id, replacing any previous
// blob with the same id. It returns the number of bytes stored.
func (s *Store) Put(ctx context.Context, id string, r io.Reader) (int64, error) {
	if id == "" {
		return 0, errors.New("blobstore: put: empty id")
	}
	if err := s.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return 0, err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	var (
		total int64
		seq   uint32
	)
	for {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("blobstore: put %s: %w", id, err)
		}
		buf := make([]byte, s.chunkSize)
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if werr := wb.Set(chunkKey(id, seq), buf[:n]); werr != nil {
				return 0, fmt.Errorf("blobstore: put %s: %w", id, werr)
			}
			seq++
			total += int64(n)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("blobstore: put %s: read: %w", id, err)
		}
	}

	meta := make([]byte, 8)
	binary.BigEndian.PutUint64(meta, uint64(total))
	if err := wb.Set(metaKey(id), meta); err != nil {
		return 0, fmt.Errorf("blobstore: put %s: %w", id, err)
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("blobstore: put %s: flush: %w", id, err)
	}
	return total, nil
}

// Size returns the stored length of the blob.
func (s *Store) Size(id string) (int64, error) {
	var size int64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			size = int64(binary.BigEndian.Uint64(val))
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("blobstore: size %s: %w", id, err)
	}
	return size, nil
}

// Get returns the full contents of the blob.
func (s *Store) Get(ctx context.Context, id string) ([]byte, error) {
	size, err := s.Size(id)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, size)
	err = s.db.View(func(txn *badger.Txn) error {
		prefix := chunkPrefix(id)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := it.Item().Value(func(val []byte) error {
				out = append(out, val...)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: get %s: %w", id, err)
	}
	return out, nil
}

// Delete removes the blob. It returns [ErrNotFound] if nothing was stored
// under id.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.Size(id); err != nil {
		return err
	}
	keys := [][]byte{metaKey(id)}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: chunkPrefix(id)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("blobstore: delete %s: %w", id, err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return fmt.Errorf("blobstore: delete %s: %w", id, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("blobstore: delete %s: %w", id, err)
	}
	return nil
}

// Len returns the number of blobs currently stored.
func (s *Store) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte("meta/")})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("blobstore: count: %w", err)
	}
	return n, nil
}

// Ping writes and reads back a probe key. It is used as a readiness check.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := []byte("probe")
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, []byte{1})
	})
	if err != nil {
		return fmt.Errorf("blobstore: ping: %w", err)
	}
	return s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
}

// Close releases the store and discards all blobs.
func (s *Store) Close() error {
	return s.db.Close()
}
