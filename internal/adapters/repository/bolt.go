package repository

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/okian/diarisk/internal/domain/model"
	"github.com/okian/diarisk/pkg/metrics"
)

var (
	bucketAssessments = []byte("assessments")
	bucketUserIndex   = []byte("user_index")
)

var errBucketMissing = errors.New("bolt bucket missing")

// BoltStore persists assessments in a single bbolt file.
//
// assessments: id -> JSON assessment
// user_index:  userID 0x00 createdAt(8 bytes, sortable) 0x00 id -> id
type BoltStore struct {
	db  *bbolt.DB
	now func() time.Time
}

// NewBoltStore opens (or creates) the bolt file at path.
func NewBoltStore(path string, opts ...Option) (*BoltStore, error) {
	c := newConfig(opts)
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: c.boltTimeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketAssessments, bucketUserIndex} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}
	return &BoltStore{db: db, now: c.now}, nil
}

// userPrefix is the index prefix shared by every entry of userID.
func userPrefix(userID string) []byte {
	return append([]byte(userID), 0)
}

// indexKey orders a user's entries by createdAt then id, both ascending.
func indexKey(a model.Assessment) []byte {
	key := userPrefix(a.UserID)
	var ts [8]byte
	// Flipping the sign bit keeps pre-1970 timestamps in order.
	binary.BigEndian.PutUint64(ts[:], uint64(a.CreatedAt.UnixNano())^(1<<63))
	key = append(key, ts[:]...)
	key = append(key, 0)
	return append(key, a.ID...)
}

func (s *BoltStore) Save(_ context.Context, a model.Assessment) error {
	defer observe(opSave, time.Now())
	if err := validate(a); err != nil {
		return err
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal assessment: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		items, index := tx.Bucket(bucketAssessments), tx.Bucket(bucketUserIndex)
		if items == nil || index == nil {
			return errBucketMissing
		}
		if items.Get([]byte(a.ID)) != nil {
			return ErrDuplicateID
		}
		if err := items.Put([]byte(a.ID), data); err != nil {
			return err
		}
		return index.Put(indexKey(a), []byte(a.ID))
	})
	if err != nil {
		return err
	}
	metrics.UpdateStoreRecords(s.Count(context.Background()))
	return nil
}

func (s *BoltStore) Get(_ context.Context, id string) (model.Assessment, error) {
	defer observe(opGet, time.Now())
	var a model.Assessment
	err := s.db.View(func(tx *bbolt.Tx) error {
		items := tx.Bucket(bucketAssessments)
		if items == nil {
			return errBucketMissing
		}
		data := items.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &a)
	})
	return a, err
}

func (s *BoltStore) History(_ context.Context, userID string, limit int) ([]model.Assessment, error) {
	defer observe(opHistory, time.Now())
	if err := validateLimit(limit); err != nil {
		return nil, err
	}

	out := make([]model.Assessment, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		items, index := tx.Bucket(bucketAssessments), tx.Bucket(bucketUserIndex)
		if items == nil || index == nil {
			return errBucketMissing
		}
		prefix := userPrefix(userID)
		// One past the last key carrying prefix.
		upper := append([]byte(userID), 1)

		c := index.Cursor()
		k, v := c.Seek(upper)
		if k == nil {
			k, v = c.Last()
		} else {
			k, v = c.Prev()
		}
		for ; k != nil && bytes.HasPrefix(k, prefix) && len(out) < limit; k, v = c.Prev() {
			data := items.Get(v)
			if data == nil {
				continue
			}
			var a model.Assessment
			if err := json.Unmarshal(data, &a); err != nil {
				return fmt.Errorf("decode %s: %w", v, err)
			}
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) AttachReport(_ context.Context, id, report string) error {
	return s.update(id, model.ReportReady, report, "")
}

func (s *BoltStore) MarkReportFailed(_ context.Context, id, reason string) error {
	return s.update(id, model.ReportFailed, "", reason)
}

func (s *BoltStore) update(id string, status model.ReportStatus, report, reason string) error {
	defer observe(opUpdate, time.Now())
	return s.db.Update(func(tx *bbolt.Tx) error {
		items := tx.Bucket(bucketAssessments)
		if items == nil {
			return errBucketMissing
		}
		data := items.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		var a model.Assessment
		if err := json.Unmarshal(data, &a); err != nil {
			return fmt.Errorf("decode %s: %w", id, err)
		}
		out, err := json.Marshal(withReport(a, status, report, reason, s.now()))
		if err != nil {
			return fmt.Errorf("marshal assessment: %w", err)
		}
		return items.Put([]byte(id), out)
	})
}

func (s *BoltStore) Count(_ context.Context) int {
	var n int
	_ = s.db.View(func(tx *bbolt.Tx) error {
		if items := tx.Bucket(bucketAssessments); items != nil {
			n = items.Stats().KeyN
		}
		return nil
	})
	return n
}

// Close releases the bolt file lock.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
