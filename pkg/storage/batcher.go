// pkg/storage/batcher.go
package storage

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/multierr"
)

const (
	batchSize     = 100
	batchInterval = 250 * time.Millisecond
)

// ErrBatcherClosed is returned by Put and Flush after Close.
var ErrBatcherClosed = errors.New("storage: batcher closed")

// op is either a record (ack == nil) or a flush barrier. Both travel on the
// same channel so a flush always covers every Put issued before it.
type op struct {
	k, v  []byte
	del   bool
	ack   chan error
	close bool
}

// Batcher coalesces catalog writes into one bolt transaction per batch.
type Batcher struct {
	db     *bolt.DB
	bucket string
	ch     chan op
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewBatcher(db *bolt.DB, bucket string) *Batcher {
	b := &Batcher{db: db, bucket: bucket, ch: make(chan op, 1024), done: make(chan struct{})}
	go b.loop()
	return b
}

// Put queues k=v for the next batch.
func (b *Batcher) Put(k, v []byte) error {
	return b.send(op{k: k, v: v})
}

// Delete queues removal of k for the next batch.
func (b *Batcher) Delete(k []byte) error {
	return b.send(op{k: k, del: true})
}

// Flush writes everything queued so far. It returns the transaction error,
// combined with any background batch failure since the previous Flush.
func (b *Batcher) Flush() error {
	ack := make(chan error, 1)
	if err := b.send(op{ack: ack}); err != nil {
		return err
	}
	return <-ack
}

// Close flushes pending writes and stops the loop.
func (b *Batcher) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	ack := make(chan error, 1)
	b.ch <- op{ack: ack, close: true}
	b.mu.Unlock()

	err := <-ack
	<-b.done
	return err
}

func (b *Batcher) send(o op) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBatcherClosed
	}
	b.ch <- o
	return nil
}

func (b *Batcher) loop() {
	defer close(b.done)
	buf := make([]op, 0, batchSize)
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		err := b.db.Update(func(tx *bolt.Tx) error {
			bk := tx.Bucket([]byte(b.bucket))
			if bk == nil {
				return bolt.ErrBucketNotFound
			}
			for _, p := range buf {
				var err error
				if p.del {
					err = bk.Delete(p.k)
				} else {
					err = bk.Put(p.k, p.v)
				}
				if err != nil {
					return err
				}
			}
			return nil
		})
		buf = buf[:0]
		return err
	}
	// failed holds background batch errors until the next barrier.
	var failed error
	background := func() {
		if err := flush(); err != nil {
			logrus.WithError(err).WithField("bucket", b.bucket).Error("catalog batch failed")
			failed = multierr.Append(failed, err)
		}
	}
	ticker := time.NewTicker(batchInterval)
	defer ticker.Stop()
	for {
		select {
		case p := <-b.ch:
			if p.ack != nil {
				p.ack <- multierr.Append(failed, flush())
				failed = nil
				if p.close {
					return
				}
				continue
			}
			buf = append(buf, p)
			if len(buf) >= batchSize {
				background()
			}
		case <-ticker.C:
			background()
		}
	}
}
