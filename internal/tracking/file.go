package tracking

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileRecorder appends one JSON object per scalar to a file.
type FileRecorder struct {
	analysisID string

	mu  sync.Mutex
	f   *os.File
	w   *bufio.Writer
	enc *json.Encoder
}

// NewFileRecorder creates or truncates path.
func NewFileRecorder(path, analysisID string) (*FileRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics file: %w", err)
	}
	w := bufio.NewWriter(f)
	return &FileRecorder{analysisID: analysisID, f: f, w: w, enc: json.NewEncoder(w)}, nil
}

func (r *FileRecorder) LogScalar(_ context.Context, key string, value float64, step int64) error {
	m, err := newMetric(r.analysisID, key, value, step)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return fmt.Errorf("metrics file closed")
	}
	return r.enc.Encode(m)
}

// Close flushes buffered lines and closes the file.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	flushErr := r.w.Flush()
	closeErr := r.f.Close()
	r.f = nil
	if flushErr != nil {
		return fmt.Errorf("failed to flush metrics file: %w", flushErr)
	}
	return closeErr
}
