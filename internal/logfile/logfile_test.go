package logfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open %s for append: %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append to %s: %v", path, err)
	}
}

func TestOpenFromStartReturnsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cn616a_log_1.jsonl")
	writeFile(t, path, "one\ntwo\nthree\n")

	src, err := OpenFromStart(path)
	if err != nil {
		t.Fatalf("OpenFromStart: %v", err)
	}
	defer src.Close()

	lines, err := src.ReadNewLines()
	if err != nil {
		t.Fatalf("ReadNewLines: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %v", len(lines), lines)
	}
	if lines[0] != "one" || lines[2] != "three" {
		t.Errorf("unexpected lines: %v", lines)
	}

	// Nothing new on the second read.
	lines, err = src.ReadNewLines()
	if err != nil {
		t.Fatalf("ReadNewLines: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("expected no new lines, got %v", lines)
	}
}

func TestOpenAtEndSkipsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cn616a_log_1.jsonl")
	writeFile(t, path, "old one\nold two\n")

	src, err := OpenAtEnd(path)
	if err != nil {
		t.Fatalf("OpenAtEnd: %v", err)
	}
	defer src.Close()

	lines, err := src.ReadNewLines()
	if err != nil {
		t.Fatalf("ReadNewLines: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("expected history skipped, got %v", lines)
	}

	appendFile(t, path, "new\n")
	lines, err = src.ReadNewLines()
	if err != nil {
		t.Fatalf("ReadNewLines: %v", err)
	}
	if len(lines) != 1 || lines[0] != "new" {
		t.Errorf("expected [new], got %v", lines)
	}
}

func TestPartialTrailingLineIsBuffered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cn616a_log_1.jsonl")
	writeFile(t, path, "complete\npart")

	src, err := OpenFromStart(path)
	if err != nil {
		t.Fatalf("OpenFromStart: %v", err)
	}
	defer src.Close()

	lines, err := src.ReadNewLines()
	if err != nil {
		t.Fatalf("ReadNewLines: %v", err)
	}
	if len(lines) != 1 || lines[0] != "complete" {
		t.Fatalf("expected only the complete line, got %v", lines)
	}

	appendFile(t, path, "ial\n")
	lines, err = src.ReadNewLines()
	if err != nil {
		t.Fatalf("ReadNewLines: %v", err)
	}
	if len(lines) != 1 || lines[0] != "partial" {
		t.Errorf("expected the joined line [partial], got %v", lines)
	}
}

func TestFragmentAccumulatesAcrossReads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cn616a_log_1.jsonl")
	writeFile(t, path, "a")

	src, err := OpenFromStart(path)
	if err != nil {
		t.Fatalf("OpenFromStart: %v", err)
	}
	defer src.Close()

	for i, chunk := range []string{"b", "c"} {
		lines, err := src.ReadNewLines()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if len(lines) != 0 {
			t.Fatalf("read %d: expected nothing yet, got %v", i, lines)
		}
		appendFile(t, path, chunk)
	}

	appendFile(t, path, "\nnext")
	lines, err := src.ReadNewLines()
	if err != nil {
		t.Fatalf("ReadNewLines: %v", err)
	}
	if len(lines) != 1 || lines[0] != "abc" {
		t.Errorf("expected [abc], got %v", lines)
	}
}

func TestEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cn616a_log_1.jsonl")
	writeFile(t, path, "")

	src, err := OpenFromStart(path)
	if err != nil {
		t.Fatalf("OpenFromStart: %v", err)
	}
	defer src.Close()

	lines, err := src.ReadNewLines()
	if err != nil {
		t.Fatalf("ReadNewLines: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("expected nothing from an empty file, got %v", lines)
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := OpenFromStart(filepath.Join(t.TempDir(), "absent.jsonl"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestFindMostRecent(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "cn616a_log_20260101.jsonl")
	newer := filepath.Join(dir, "cn616a_log_20260102.jsonl")
	other := filepath.Join(dir, "notes.txt")
	writeFile(t, older, "x\n")
	writeFile(t, newer, "y\n")
	writeFile(t, other, "z\n")

	base := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(older, base, base.Add(-time.Hour)); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(newer, base, base); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(other, base, base.Add(time.Hour)); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	got, err := FindMostRecent(dir)
	if err != nil {
		t.Fatalf("FindMostRecent: %v", err)
	}
	if got != newer {
		t.Errorf("expected %s, got %s", newer, got)
	}
}

func TestFindMostRecentEmptyDir(t *testing.T) {
	_, err := FindMostRecent(t.TempDir())
	if !errors.Is(err, ErrNoLogFiles) {
		t.Errorf("expected ErrNoLogFiles, got %v", err)
	}
}

func TestFakeScriptedBatches(t *testing.T) {
	f := NewFake([]string{"a", "b"}, []string{"c"})

	lines, err := f.ReadNewLines()
	if err != nil || len(lines) != 2 {
		t.Fatalf("expected first batch of 2, got %v, %v", lines, err)
	}
	lines, _ = f.ReadNewLines()
	if len(lines) != 1 || lines[0] != "c" {
		t.Fatalf("expected second batch [c], got %v", lines)
	}

	// Exhausted: a quiet log.
	lines, err = f.ReadNewLines()
	if err != nil || lines != nil {
		t.Errorf("expected nothing after exhaustion, got %v, %v", lines, err)
	}

	f.Append("d")
	lines, _ = f.ReadNewLines()
	if len(lines) != 1 || lines[0] != "d" {
		t.Errorf("expected appended batch [d], got %v", lines)
	}

	f.ReadError = errors.New("disk gone")
	if _, err := f.ReadNewLines(); err == nil {
		t.Error("expected injected read error")
	}

	if err := f.Close(); err != nil || !f.Closed {
		t.Errorf("expected clean close, got err=%v closed=%v", err, f.Closed)
	}
}
