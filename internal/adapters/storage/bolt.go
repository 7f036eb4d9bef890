package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/melih/lighthouse-notebooks/internal/core/domain"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketContainers     = []byte("containers")
	bucketContainerNames = []byte("container_names")
	bucketUsers          = []byte("users")
	bucketUserEmails     = []byte("user_emails")
)

// BoltStore implements ports.RecordStore and ports.UserStore on a single BoltDB file.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database at path
func NewBoltStore(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketContainers, bucketContainerNames, bucketUsers, bucketUserEmails} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
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

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Container record operations

// Insert stores a new record. Container names are unique across records.
func (s *BoltStore) Insert(ctx context.Context, rec *domain.ContainerRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		names := tx.Bucket(bucketContainerNames)
		if names.Get([]byte(rec.Name)) != nil {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateName, rec.Name)
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketContainers).Put([]byte(rec.ContainerID), data); err != nil {
			return err
		}
		return names.Put([]byte(rec.Name), []byte(rec.ContainerID))
	})
}

func (s *BoltStore) FindByContainerID(ctx context.Context, containerID string) (*domain.ContainerRecord, error) {
	var rec domain.ContainerRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketContainers).Get([]byte(containerID))
		if data == nil {
			return fmt.Errorf("%w: %s", domain.ErrRecordNotFound, containerID)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *BoltStore) FindByName(ctx context.Context, name string) (*domain.ContainerRecord, error) {
	var rec domain.ContainerRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketContainerNames).Get([]byte(name))
		if id == nil {
			return fmt.Errorf("%w: %s", domain.ErrRecordNotFound, name)
		}
		data := tx.Bucket(bucketContainers).Get(id)
		if data == nil {
			return fmt.Errorf("%w: %s", domain.ErrRecordNotFound, name)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *BoltStore) ListByUser(ctx context.Context, userID string) ([]*domain.ContainerRecord, error) {
	return s.listRecords(func(rec *domain.ContainerRecord) bool { return rec.UserID == userID })
}

func (s *BoltStore) ListByStatus(ctx context.Context, status domain.ContainerStatus) ([]*domain.ContainerRecord, error) {
	return s.listRecords(func(rec *domain.ContainerRecord) bool { return rec.Status == status })
}

// listRecords returns matching records, newest first.
func (s *BoltStore) listRecords(match func(*domain.ContainerRecord) bool) ([]*domain.ContainerRecord, error) {
	var recs []*domain.ContainerRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketContainers).ForEach(func(k, v []byte) error {
			var rec domain.ContainerRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if match(&rec) {
				recs = append(recs, &rec)
			}
			return nil
		})
	})
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].CreatedAt.After(recs[j].CreatedAt) })
	return recs, err
}

func (s *BoltStore) UpdateStatus(ctx context.Context, containerID string, status domain.ContainerStatus, detail string) (bool, error) {
	found := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketContainers)
		data := b.Get([]byte(containerID))
		if data == nil {
			return nil
		}
		var rec domain.ContainerRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		rec.Status = status
		rec.Error = detail
		updated, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		found = true
		return b.Put([]byte(containerID), updated)
	})
	return found, err
}

// User operations

func (s *BoltStore) CreateUser(ctx context.Context, user *domain.User) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		emails := tx.Bucket(bucketUserEmails)
		if emails.Get([]byte(user.Email)) != nil {
			return domain.ErrEmailTaken
		}
		if err := putUser(tx, user); err != nil {
			return err
		}
		return emails.Put([]byte(user.Email), []byte(user.ID))
	})
}

func (s *BoltStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var user *domain.User
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		user, err = getUser(tx, []byte(id))
		return err
	})
	return user, err
}

func (s *BoltStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user *domain.User
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketUserEmails).Get([]byte(email))
		if id == nil {
			return domain.ErrUserNotFound
		}
		var err error
		user, err = getUser(tx, id)
		return err
	})
	return user, err
}

// UpdateUser replaces an existing user. The email index is not rewritten.
func (s *BoltStore) UpdateUser(ctx context.Context, user *domain.User) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketUsers).Get([]byte(user.ID)) == nil {
			return domain.ErrUserNotFound
		}
		return putUser(tx, user)
	})
}

func putUser(tx *bolt.Tx, user *domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketUsers).Put([]byte(user.ID), data)
}

func getUser(tx *bolt.Tx, id []byte) (*domain.User, error) {
	data := tx.Bucket(bucketUsers).Get(id)
	if data == nil {
		return nil, domain.ErrUserNotFound
	}
	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
