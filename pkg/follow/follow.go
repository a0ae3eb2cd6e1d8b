// Package follow reads a file that is still being written. At end of file
// the reader waits for the writer instead of reporting io.EOF.
package follow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ErrRemoved is returned once the followed file is removed or renamed.
var ErrRemoved = errors.New("followed file was removed")

// Reader follows one file. It is not safe for concurrent use.
type Reader struct {
	ctx     context.Context
	path    string
	file    *os.File
	watcher *fsnotify.Watcher
}

// Open opens path for following from its beginning. Reads block at end of
// file until more data is written, ctx is done, or the file is removed.
func Open(ctx context.Context, path string) (*Reader, error) {
	path = filepath.Clean(path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	// Watch the directory so removal and rename are reported for the name.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		_ = file.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	return &Reader{
		ctx:     ctx,
		path:    path,
		file:    file,
		watcher: watcher,
	}, nil
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for {
		n, err := r.file.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}

		if err := r.wait(); err != nil {
			return 0, err
		}
	}
}

// wait blocks until the file may have grown.
func (r *Reader) wait() error {
	for {
		select {
		case <-r.ctx.Done():
			return r.ctx.Err()

		case event, ok := <-r.watcher.Events:
			if !ok {
				return io.EOF
			}
			if event.Name != r.path {
				continue
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				return ErrRemoved
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				return nil
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return io.EOF
			}
			return fmt.Errorf("file watcher error: %w", err)
		}
	}
}

// Close stops watching and closes the file.
func (r *Reader) Close() error {
	return errors.Join(r.watcher.Close(), r.file.Close())
}
