package transfer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
)

var ErrInvalidName = errors.New("invalid file name")

// Sink materialises received files.
type Sink interface {
	// Create opens name for writing. A completed transfer replaces any
	// existing content.
	Create(name string) (io.WriteCloser, error)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(name string) (io.WriteCloser, error)

func (f SinkFunc) Create(name string) (io.WriteCloser, error) { return f(name) }

// Aborter is implemented by destinations that can discard a partly
// written file. The Reader calls Abort instead of Close when a transfer
// fails.
type Aborter interface {
	Abort() error
}

// DirSink writes every file into Dir under its base name. Directory
// components sent by the peer are discarded. Data is staged in a hidden
// temporary file that replaces the destination only once the transfer
// completes.
type DirSink struct {
	Dir string
}

func (s DirSink) Create(name string) (io.WriteCloser, error) {
	base, err := BaseName(name)
	if err != nil {
		return nil, err
	}

	dst := filepath.Join(s.Dir, base)
	f, err := os.CreateTemp(s.Dir, "."+base+".part-*")
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", dst, err)
	}
	return &stagedFile{File: f, final: dst}, nil
}

type stagedFile struct {
	*os.File
	final string
}

// Name reports the final destination, not the staging path.
func (f *stagedFile) Name() string { return f.final }

// Close commits the file to its final name.
func (f *stagedFile) Close() error {
	tmp := f.File.Name()
	err := multierr.Combine(f.File.Chmod(0o644), f.File.Close())
	if err == nil {
		err = os.Rename(tmp, f.final)
	}
	if err != nil {
		return multierr.Append(fmt.Errorf("commit %s: %w", f.final, err), os.Remove(tmp))
	}
	return nil
}

// Abort drops the staged data, leaving any previous file untouched.
func (f *stagedFile) Abort() error {
	return multierr.Append(f.File.Close(), os.Remove(f.File.Name()))
}

// BaseName strips any directory part from a peer-supplied name, treating
// both '/' and '\' as separators.
func BaseName(name string) (string, error) {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	switch base {
	case "", ".", "..", "/":
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return base, nil
}
