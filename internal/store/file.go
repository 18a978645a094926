package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// JSONFile persists a single JSON document on disk. Writes are atomic
// (tmp file + rename) and serialized per JSONFile.
type JSONFile struct {
	path string
	mu   sync.Mutex
}

func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Read returns the stored document, or nil when the file is missing.
// Content that is not valid JSON is reported as an error.
func (f *JSONFile) Read() (json.RawMessage, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if !json.Valid(b) {
		return nil, fmt.Errorf("%s: invalid JSON", filepath.Base(f.path))
	}
	return json.RawMessage(b), nil
}

// Decode reads the document into v. It reports false when the file is
// missing.
func (f *JSONFile) Decode(v any) (bool, error) {
	b, err := f.Read()
	if err != nil || b == nil {
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, err
	}
	return true, nil
}

// Write replaces the document with v, indented.
func (f *JSONFile) Write(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// LineLog appends one JSON object per line to a file.
type LineLog struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewLineLog(path string) *LineLog {
	return &LineLog{path: path, now: time.Now}
}

type logLine struct {
	TS      string `json:"ts"`
	Payload any    `json:"payload"`
}

// Append writes {ts, payload} as a single line.
func (l *LineLog) Append(payload any) error {
	b, err := json.Marshal(logLine{TS: l.now().UTC().Format(time.RFC3339Nano), Payload: payload})
	if err != nil {
		return err
	}
	b = append(b, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	fh, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := fh.Write(b); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}
