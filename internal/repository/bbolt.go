package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"go.etcd.io/bbolt"
)

const (
	storagesBucket = "storages"
	metadataBucket = "metadata"
	schemaVersion  = 1
)

// ErrStorageNotFound is returned when a storage record cannot be found.
var ErrStorageNotFound = errors.New("storage not found")

// Record is the persisted storage state for one torrent: where its file set
// currently lives and whether the data needs a full re-check (files were
// left untouched during a dont-replace move).
type Record struct {
	ID          uuid.UUID `json:"ID"`
	Name        string    `json:"Name"`
	SavePath    string    `json:"SavePath"`
	NeedsRescan bool      `json:"NeedsRescan"`
	UpdatedAt   time.Time `json:"UpdatedAt"`
}

// BboltRepository persists storage records in a bbolt database.
type BboltRepository struct {
	db *bbolt.DB
}

// NewBboltRepository creates a new bbolt repository.
func NewBboltRepository(dbPath string) (*BboltRepository, error) {
	options := &bbolt.Options{
		Timeout: 1 * time.Second,
	}

	db, err := bbolt.Open(dbPath, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	repo := &BboltRepository{
		db: db,
	}

	if err := repo.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

// initialize sets up buckets and schema.
func (r *BboltRepository) initialize() error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(storagesBucket))
		if err != nil {
			return fmt.Errorf("failed to create storages bucket: %w", err)
		}

		meta, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return fmt.Errorf("failed to create metadata bucket: %w", err)
		}

		versionBytes := []byte(fmt.Sprintf("%d", schemaVersion))

		err = meta.Put([]byte("schema_version"), versionBytes)
		if err != nil {
			return fmt.Errorf("failed to store schema version: %w", err)
		}

		return nil
	})
}

// Save persists a storage record.
func (r *BboltRepository) Save(record *Record) error {
	if record == nil {
		return errors.New("cannot save nil record")
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(storagesBucket))
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", storagesBucket)
		}

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}

		err = bucket.Put([]byte(record.ID.String()), data)
		if err != nil {
			return fmt.Errorf("failed to save record: %w", err)
		}

		return nil
	})
}

// Find retrieves a storage record by ID.
func (r *BboltRepository) Find(id uuid.UUID) (*Record, error) {
	if id == uuid.Nil {
		return nil, errors.New("record ID cannot be empty")
	}

	var data []byte

	err := r.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(storagesBucket))
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", storagesBucket)
		}

		data = bucket.Get([]byte(id.String()))
		if data == nil {
			return ErrStorageNotFound
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	record := &Record{}

	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	return record, nil
}

// FindAll retrieves all storage records.
func (r *BboltRepository) FindAll() ([]*Record, error) {
	var records []*Record

	err := r.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(storagesBucket))
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", storagesBucket)
		}

		return bucket.ForEach(func(_, v []byte) error {
			record := &Record{}
			if err := json.Unmarshal(v, record); err != nil {
				return fmt.Errorf("failed to unmarshal record: %w", err)
			}

			records = append(records, record)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Delete removes a storage record by ID.
func (r *BboltRepository) Delete(id uuid.UUID) error {
	if id == uuid.Nil {
		return errors.New("record ID cannot be empty")
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(storagesBucket))
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", storagesBucket)
		}

		if bucket.Get([]byte(id.String())) == nil {
			return ErrStorageNotFound
		}

		return bucket.Delete([]byte(id.String()))
	})
}

// Close closes the underlying database.
func (r *BboltRepository) Close() error {
	return r.db.Close()
}
