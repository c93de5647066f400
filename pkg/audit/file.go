package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

const maxRecordSize = 1024 * 1024

// FileBackend appends one JSON event per line and fsyncs after every write.
type FileBackend struct {
	path string
	mu   sync.Mutex
	f    *os.File
	last *Event
	// damaged is set when an existing record could not be decoded
	damaged error
}

// NewFileBackend opens or creates the JSONL ledger at path.
func NewFileBackend(path string) (*FileBackend, error) {
	if path == "" {
		return nil, os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	b := &FileBackend{path: path, f: f}
	err = b.Scan(context.Background(), 1, func(e Event) error {
		ev := e
		b.last = &ev
		return nil
	})
	if err != nil {
		var corrupt *CorruptRecordError
		if !errors.As(err, &corrupt) {
			f.Close()
			return nil, err
		}
		// reads stay open so Verify can report the damage; appends are refused
		b.damaged = err
	}
	return b, nil
}

func (b *FileBackend) Append(ctx context.Context, e Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.f == nil {
		return ErrLedgerClosed
	}
	if b.damaged != nil {
		return b.damaged
	}
	expect := uint64(1)
	if b.last != nil {
		expect = b.last.Sequence + 1
	}
	if e.Sequence != expect {
		return ErrSequenceConflict
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := b.f.Write(data); err != nil {
		return err
	}
	if err := b.f.Sync(); err != nil {
		return err
	}
	ev := e
	b.last = &ev
	return nil
}

func (b *FileBackend) Last(ctx context.Context) (*Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last == nil {
		return nil, nil
	}
	ev := *b.last
	return &ev, nil
}

// Scan reads the file from the start; it never holds the write lock.
func (b *FileBackend) Scan(ctx context.Context, from uint64, fn func(Event) error) error {
	f, err := os.Open(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)
	var pos uint64
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		pos++
		if err := ctx.Err(); err != nil {
			return err
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			return &CorruptRecordError{Position: pos, Err: err}
		}
		if pos < from {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (b *FileBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.f == nil {
		return nil
	}
	err := b.f.Close()
	b.f = nil
	return err
}

var _ Backend = (*FileBackend)(nil)
