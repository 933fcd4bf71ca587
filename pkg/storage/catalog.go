// pkg/storage/catalog.go
package storage

import (
	"encoding/json"
	"io"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

const objectsBucket = "objects"

// Object describes one committed destination.
type Object struct {
	Key         string    `json:"key"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	Seed        uint64    `json:"seed"`
	Fingerprint uint64    `json:"fingerprint"`
	Committed   time.Time `json:"committed"`
}

// Catalog remembers what was last committed under each key. It is metadata
// only; the files themselves are the source of truth.
type Catalog struct {
	db    *bolt.DB
	batch *Batcher
}

func OpenCatalog(path string) (*Catalog, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open catalog %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(objectsBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create catalog bucket")
	}
	return &Catalog{db: db, batch: NewBatcher(db, objectsBucket)}, nil
}

// Record queues obj; it becomes visible to Lookup after the next flush.
func (c *Catalog) Record(obj Object) error {
	raw, err := json.Marshal(obj)
	if err != nil {
		return errors.Wrap(err, "encode catalog record")
	}
	return c.batch.Put([]byte(obj.Key), raw)
}

// Forget queues removal of key.
func (c *Catalog) Forget(key string) error {
	return c.batch.Delete([]byte(key))
}

// Lookup returns the record for key, or ErrNotFound.
func (c *Catalog) Lookup(key string) (Object, error) {
	if err := c.batch.Flush(); err != nil {
		return Object{}, errors.Wrap(err, "flush catalog")
	}
	var obj Object
	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(objectsBucket)).Get([]byte(key))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &obj)
	})
	if err != nil {
		return Object{}, errors.Wrapf(err, "lookup %s", key)
	}
	return obj, nil
}

// Keys returns every recorded key in byte order.
func (c *Catalog) Keys() ([]string, error) {
	if err := c.batch.Flush(); err != nil {
		return nil, errors.Wrap(err, "flush catalog")
	}
	var keys []string
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(objectsBucket)).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// WriteTo streams a consistent copy of the catalog database to w.
func (c *Catalog) WriteTo(w io.Writer) (int64, error) {
	if err := c.batch.Flush(); err != nil {
		return 0, errors.Wrap(err, "flush catalog")
	}
	var n int64
	err := c.db.View(func(tx *bolt.Tx) error {
		var err error
		n, err = tx.WriteTo(w)
		return err
	})
	return n, err
}

func (c *Catalog) Close() error {
	berr := c.batch.Close()
	if err := c.db.Close(); err != nil {
		return errors.Wrap(err, "close catalog")
	}
	return berr
}
