package seqmodel

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// ArtifactVersion is bumped whenever the on-disk layout changes.
const ArtifactVersion = 1

type artifact struct {
	Version    int                         `json:"version"`
	Order      int                         `json:"order"`
	Prior      float64                     `json:"prior"`
	Unknown    UnknownHandling             `json:"unknown"`
	Vocabulary []string                    `json:"vocabulary"`
	Layers     []map[string]map[string]int `json:"layers"`
}

// Save writes the model as zstd-compressed JSON.
func Save(w io.Writer, m *MultiOrderModel) error {
	a := artifact{
		Version:    ArtifactVersion,
		Order:      m.order,
		Prior:      m.prior,
		Unknown:    m.unknown,
		Vocabulary: m.Vocabulary(),
		Layers:     make([]map[string]map[string]int, len(m.layers)),
	}
	for k, l := range m.layers {
		a.Layers[k] = make(map[string]map[string]int, len(l))
		for ctx, cc := range l {
			a.Layers[k][ctx] = cc.next
		}
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	if err := json.NewEncoder(zw).Encode(a); err != nil {
		zw.Close()
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush zstd writer: %w", err)
	}
	return nil
}

// Load reads a model written by Save.
func Load(r io.Reader) (*MultiOrderModel, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()

	var a artifact
	if err := json.NewDecoder(zr).Decode(&a); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if a.Version != ArtifactVersion {
		return nil, fmt.Errorf("unsupported model version %d", a.Version)
	}
	if a.Order < 0 || len(a.Layers) != a.Order+1 {
		return nil, fmt.Errorf("model has %d layers for order %d", len(a.Layers), a.Order)
	}
	if a.Unknown != UnknownReject && a.Unknown != UnknownReserve {
		return nil, fmt.Errorf("model has unknown handling %q", a.Unknown)
	}

	m := &MultiOrderModel{
		order:      a.Order,
		prior:      a.Prior,
		unknown:    a.Unknown,
		vocabulary: make(map[string]struct{}, len(a.Vocabulary)),
		layers:     make([]layer, len(a.Layers)),
	}
	for _, s := range a.Vocabulary {
		m.vocabulary[s] = struct{}{}
	}
	for k, contexts := range a.Layers {
		m.layers[k] = make(layer, len(contexts))
		for ctx, next := range contexts {
			cc := &contextCounts{next: next}
			for _, n := range next {
				cc.total += n
			}
			m.layers[k][ctx] = cc
		}
	}
	return m, nil
}

// SaveFile writes the model to path, replacing any existing file.
func SaveFile(path string, m *MultiOrderModel) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create model file: %w", err)
	}
	if err := Save(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFile reads a model from path.
func LoadFile(path string) (*MultiOrderModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model file: %w", err)
	}
	defer f.Close()
	return Load(f)
}
