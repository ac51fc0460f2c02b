// Package nvram persists board state across runs, standing in for the
// device's flash pages. Records are JSON documents addressed by a string
// key inside a single bbolt bucket; field access goes through gjson/sjson
// paths so callers read and write individual fields without unmarshalling
// whole records.
package nvram

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	bolt "go.etcd.io/bbolt"
)

// bucketName is the single bucket holding every record.
const bucketName = "nvram"

// openTimeout bounds how long Open waits on the file lock.
const openTimeout = time.Second

var (
	// ErrNotFound indicates no record exists under the requested key.
	ErrNotFound = errors.New("nvram: record not found")

	// ErrFieldMissing indicates the record exists but the path does not.
	ErrFieldMissing = errors.New("nvram: field missing")
)

// Store is a bbolt-backed record store. Safe for concurrent use; bbolt
// serializes writers internally.
type Store struct {
	db   *bolt.DB
	path string
}

// Open opens or creates the store file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("nvram: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("nvram: init %s: %w", path, err)
	}

	return &Store{db: db, path: path}, nil
}

// Close releases the store file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the store file path.
func (s *Store) Path() string {
	return s.path
}

// Put marshals record to JSON and writes it under key, replacing any
// previous record.
func (s *Store) Put(key string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("nvram: encode %s: %w", key, err)
	}
	return s.putRaw(key, data)
}

// Get unmarshals the record under key into target.
func (s *Store) Get(key string, target any) error {
	data, err := s.GetRaw(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("nvram: decode %s: %w", key, err)
	}
	return nil
}

// GetRaw returns a copy of the raw JSON stored under key.
func (s *Store) GetRaw(key string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// v is only valid inside the transaction.
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Delete removes the record under key. Deleting a missing key is a no-op.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(key))
	})
}

// Exists reports whether a record is stored under key.
func (s *Store) Exists(key string) bool {
	_, err := s.GetRaw(key)
	return err == nil
}

// Keys returns every record key in bucket order.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Dump returns every record keyed by name, for diagnostics.
func (s *Store) Dump() (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			out[string(k)] = append(json.RawMessage(nil), v...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetField sets one field of the record under key using a gjson path,
// creating the record as an empty object first if it does not exist.
func (s *Store) SetField(key, path string, value any) error {
	data, err := s.GetRaw(key)
	if errors.Is(err, ErrNotFound) {
		data = []byte("{}")
	} else if err != nil {
		return err
	}

	updated, err := sjson.SetBytes(data, path, value)
	if err != nil {
		return fmt.Errorf("nvram: set %s.%s: %w", key, path, err)
	}
	return s.putRaw(key, updated)
}

// DeleteField removes one field of the record under key. Missing records
// and missing fields are no-ops.
func (s *Store) DeleteField(key, path string) error {
	data, err := s.GetRaw(key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	updated, err := sjson.DeleteBytes(data, path)
	if err != nil {
		return fmt.Errorf("nvram: delete %s.%s: %w", key, path, err)
	}
	return s.putRaw(key, updated)
}

// GetString returns the string field at path in the record under key.
func (s *Store) GetString(key, path string) (string, error) {
	res, err := s.field(key, path)
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

// GetInt returns the integer field at path in the record under key.
func (s *Store) GetInt(key, path string) (int64, error) {
	res, err := s.field(key, path)
	if err != nil {
		return 0, err
	}
	return res.Int(), nil
}

// GetBool returns the boolean field at path in the record under key.
func (s *Store) GetBool(key, path string) (bool, error) {
	res, err := s.field(key, path)
	if err != nil {
		return false, err
	}
	return res.Bool(), nil
}

func (s *Store) field(key, path string) (gjson.Result, error) {
	data, err := s.GetRaw(key)
	if err != nil {
		return gjson.Result{}, err
	}
	res := gjson.GetBytes(data, path)
	if !res.Exists() {
		return gjson.Result{}, fmt.Errorf("%w: %s.%s", ErrFieldMissing, key, path)
	}
	return res, nil
}

func (s *Store) putRaw(key string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), data)
	})
}
