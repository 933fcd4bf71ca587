// pkg/atomicfile/write.go

// Package atomicfile writes files so that the destination holds either its
// complete previous content or the complete new content, never a mix.
//
// Bytes are staged in a uniquely named temporary file in the destination's
// own directory, renamed over the destination on commit and then synced. A
// failed sync removes the destination again rather than leave content that was
// never confirmed durable.
package atomicfile

import "go.uber.org/multierr"

// WriteBytes atomically writes data to dest and returns the canonical
// destination path. Without WithOverwrite(true) an existing dest is left
// untouched and an error of KindAlreadyExists is returned.
func WriteBytes(data []byte, dest string, opts ...Option) (path string, err error) {
	w, err := New(dest, opts...)
	if err != nil {
		return "", err
	}
	defer func() {
		err = multierr.Append(err, w.Close())
	}()

	if _, err := w.Write(data); err != nil {
		return "", err
	}
	return w.Commit()
}

// WriteText is WriteBytes for a string payload.
func WriteText(data string, dest string, opts ...Option) (string, error) {
	return WriteBytes([]byte(data), dest, opts...)
}
