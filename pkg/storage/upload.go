// pkg/storage/upload.go
package storage

import (
	"time"

	"github.com/dattu/atomicwriter/pkg/atomicfile"
	"github.com/dattu/atomicwriter/pkg/fingerprint"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Upload is a staged write bound to a key. Like atomicfile.Writer it is
// single-use and not safe for concurrent use.
type Upload struct {
	s     *Store
	key   string
	w     *atomicfile.Writer
	fp    *fingerprint.Fingerprint
	start time.Time
}

// Begin opens a staged write for key.
func (s *Store) Begin(key string, overwrite bool) (*Upload, error) {
	k, path, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	fp, err := fingerprint.NewRandom()
	if err != nil {
		return nil, err
	}
	w, err := atomicfile.New(path, s.writerOptions(overwrite)...)
	if err != nil {
		return nil, errors.Wrapf(err, "begin %s", k)
	}
	return &Upload{s: s, key: k, w: w, fp: fp, start: time.Now()}, nil
}

// Key returns the cleaned key.
func (u *Upload) Key() string { return u.key }

func (u *Upload) Write(p []byte) (int, error) {
	n, err := u.w.Write(p)
	u.fp.Write(p[:n])
	return n, err
}

// Commit makes the upload visible and records it in the catalog.
func (u *Upload) Commit() (Object, error) {
	path, err := u.w.Commit()
	u.s.metrics.Observe(u.start, u.fp.Size(), err)
	if err != nil {
		entry := logrus.WithFields(logrus.Fields{"key": u.key, "kind": atomicfile.KindOf(err)})
		if atomicfile.KindOf(err) == atomicfile.KindRollback {
			entry.WithError(err).Error("rollback failed, destination needs inspection")
		} else {
			entry.WithError(err).Debug("commit failed")
		}
		return Object{}, errors.Wrapf(err, "commit %s", u.key)
	}

	obj := Object{
		Key:         u.key,
		Path:        path,
		Size:        u.fp.Size(),
		Seed:        u.fp.Seed(),
		Fingerprint: u.fp.Sum64(),
		Committed:   time.Now().UTC(),
	}
	if err := u.s.catalog.Record(obj); err != nil {
		return obj, errors.Wrapf(err, "record %s", u.key)
	}
	logrus.WithFields(logrus.Fields{"key": u.key, "bytes": obj.Size}).Debug("committed")
	return obj, nil
}

// Abort discards the upload if it has not been committed.
func (u *Upload) Abort() error { return u.w.Close() }
