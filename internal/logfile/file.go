package logfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// File is a Source over a real log file on disk. It keeps a byte
// cursor and an in-memory fragment of any half-written trailing line,
// so a record split across two reads is delivered exactly once, whole.
type File struct {
	path    string
	f       *os.File
	offset  int64
	partial []byte
}

// OpenFromStart opens path positioned at the beginning, so the first
// ReadNewLines returns the file's full history.
func OpenFromStart(path string) (*File, error) {
	return open(path, false)
}

// OpenAtEnd opens path positioned at the current end, so only lines
// appended after the open are returned.
func OpenAtEnd(path string) (*File, error) {
	return open(path, true)
}

func open(path string, atEnd bool) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	lf := &File{path: path, f: f}
	if atEnd {
		off, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("seek log end: %w", err)
		}
		lf.offset = off
	}
	return lf, nil
}

// ReadNewLines reads everything appended since the last call and
// returns the complete lines. A trailing fragment without a newline is
// buffered and prepended to the next read.
func (l *File) ReadNewLines() ([]string, error) {
	if _, err := l.f.Seek(l.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek log: %w", err)
	}
	data, err := io.ReadAll(l.f)
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	l.offset += int64(len(data))

	buf := append(l.partial, data...)
	l.partial = nil

	var lines []string
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(buf[:i]))
		buf = buf[i+1:]
	}
	if len(buf) > 0 {
		l.partial = append([]byte(nil), buf...)
	}
	return lines, nil
}

// Path returns the path the file was opened with.
func (l *File) Path() string {
	return l.path
}

// Close releases the underlying file.
func (l *File) Close() error {
	return l.f.Close()
}
