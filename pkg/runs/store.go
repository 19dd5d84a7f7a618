package runs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/stimtools/stimopt/pkg/config"
	"github.com/stimtools/stimopt/pkg/models"
	"github.com/stimtools/stimopt/pkg/opt"
)

var (
	runsBucket  = []byte("runs")
	ErrNotFound = errors.New("run not found")
)

// Status is the lifecycle state of a recorded run
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record is one dispatched optimization: the spec snapshot, where it went
// and what came back
type Record struct {
	ID          string                    `json:"id"`
	Name        string                    `json:"name"`
	Protocol    string                    `json:"protocol,omitempty"`
	Engine      string                    `json:"engine"`
	Status      Status                    `json:"status"`
	Spec        *opt.Optimization         `json:"spec"`
	JobID       string                    `json:"job_id,omitempty"`
	OutputDir   string                    `json:"output_dir,omitempty"`
	Currents    []models.ElectrodeCurrent `json:"currents,omitempty"`
	Targets     []models.TargetField      `json:"targets,omitempty"`
	Objective   float64                   `json:"objective,omitempty"`
	Error       string                    `json:"error,omitempty"`
	SubmittedAt time.Time                 `json:"submitted_at"`
	CompletedAt *time.Time                `json:"completed_at,omitempty"`
}

// Store is the local run history backed by a bolt database
type Store struct {
	db *bolt.DB
}

// DefaultPath returns the run database location, honoring STIMOPT_DATA_DIR
func DefaultPath() (string, error) {
	if dir := os.Getenv("STIMOPT_DATA_DIR"); dir != "" {
		return filepath.Join(dir, "runs.db"), nil
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "runs.db"), nil
}

// Open opens the run store at path, creating it as needed
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the store
func (s *Store) Close() error {
	return s.db.Close()
}

// Put writes a record, replacing any previous version
func (s *Store) Put(rec *Record) error {
	if rec.ID == "" {
		return errors.New("run ID cannot be empty")
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(runsBucket)
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(rec.ID), data)
	})
}

// Get retrieves a record by ID. A unique ID prefix is accepted.
func (s *Store) Get(id string) (*Record, error) {
	var rec Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(runsBucket)

		if data := b.Get([]byte(id)); data != nil {
			return json.Unmarshal(data, &rec)
		}

		// Fall back to prefix matching so short IDs work on the CLI
		prefix := []byte(id)
		c := b.Cursor()
		k, v := c.Seek(prefix)
		if k == nil || !bytes.HasPrefix(k, prefix) {
			return ErrNotFound
		}
		if next, _ := c.Next(); next != nil && bytes.HasPrefix(next, prefix) {
			return fmt.Errorf("run ID prefix %q is ambiguous", id)
		}
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns all records, newest first
func (s *Store) List() ([]Record, error) {
	var records []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(runsBucket)
		return b.ForEach(func(_, value []byte) error {
			var rec Record
			if err := json.Unmarshal(value, &rec); err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].SubmittedAt.After(records[j].SubmittedAt)
	})

	return records, nil
}

// Delete removes a record. A unique ID prefix is accepted.
func (s *Store) Delete(id string) error {
	rec, err := s.Get(id)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(runsBucket)
		return b.Delete([]byte(rec.ID))
	})
}

// Count returns the number of recorded runs
func (s *Store) Count() (int, error) {
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(runsBucket).Stats().KeyN
		return nil
	})
	return count, err
}
