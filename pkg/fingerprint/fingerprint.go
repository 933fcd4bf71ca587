// pkg/fingerprint/fingerprint.go
package fingerprint

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// Fingerprint is a running polynomial hash over a secret evaluation point r.
// It implements io.Writer so content can be fingerprinted while it is
// streamed into an atomic writer.
type Fingerprint struct {
	r   uint64
	sum uint64
	n   int64
}

// NewWithSeed returns a Fingerprint using the provided seed r.
func NewWithSeed(r uint64) *Fingerprint {
	return &Fingerprint{r: r}
}

// NewRandom generates a secure random non-zero seed for the Fingerprint.
func NewRandom() (*Fingerprint, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, fmt.Errorf("failed to read random seed: %w", err)
	}
	r := binary.LittleEndian.Uint64(buf[:])
	if r == 0 {
		r = 1
	}
	return &Fingerprint{r: r}, nil
}

// Seed returns the evaluation point used by this Fingerprint.
func (f *Fingerprint) Seed() uint64 {
	return f.r
}

// Write folds p into the running sum. It never fails.
func (f *Fingerprint) Write(p []byte) (int, error) {
	s := f.sum
	for _, b := range p {
		s = s*f.r + uint64(b)
	}
	f.sum = s
	f.n += int64(len(p))
	return len(p), nil
}

// Sum64 returns the fingerprint of everything written so far.
func (f *Fingerprint) Sum64() uint64 { return f.sum }

// Size returns the number of bytes written so far.
func (f *Fingerprint) Size() int64 { return f.n }

// Reset clears the running sum, keeping the seed.
func (f *Fingerprint) Reset() {
	f.sum, f.n = 0, 0
}

// Eval computes the fingerprint of data by Horner's rule:
//
//	result = data[0]*r^(n-1) + data[1]*r^(n-2) + ... + data[n-1]
//
// using native uint64 overflow as modulo 2^64 arithmetic. It does not touch
// the running sum.
func (f *Fingerprint) Eval(data []byte) uint64 {
	var res uint64
	for _, b := range data {
		res = res*f.r + uint64(b)
	}
	return res
}
