package net

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
)

type savedModel struct {
	Spec   Spec
	Params []float64
}

// Encode writes the Spec and weights with gob. Optimizer state is not
// saved; a loaded model starts with a fresh optimizer.
func (m *Model) Encode(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(savedModel{Spec: m.spec, Params: m.params}); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return nil
}

// Decode reads a model written by Encode.
func Decode(r io.Reader) (*Model, error) {
	var saved savedModel
	if err := gob.NewDecoder(r).Decode(&saved); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	m, err := Build(saved.Spec)
	if err != nil {
		return nil, err
	}
	if len(saved.Params) != len(m.params) {
		return nil, fmt.Errorf("%w: saved %d params, spec needs %d", ErrSpec, len(saved.Params), len(m.params))
	}
	copy(m.params, saved.Params)
	return m, nil
}

// Save writes the model to a file.
func (m *Model) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := m.Encode(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Load reads a model from a file written by Save.
func Load(filename string) (*Model, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Decode(file)
}
