package agent

import (
	"fmt"
	"os"

	"rlframework/game"

	"github.com/patrikeh/go-deep"
)

// Model holds the weights of a value network. Networks keep activations
// internally, so every game gets its own instance through Evaluator.
type Model struct {
	dump *deep.Dump
}

// NewModel builds an untrained regression network with a single output.
func NewModel(inputs int, hidden ...int) *Model {
	layout := append(append([]int{}, hidden...), 1)
	network := deep.NewNeural(&deep.Config{
		Inputs:     inputs,
		Layout:     layout,
		Activation: deep.ActivationReLU,
		Mode:       deep.ModeRegression,
		Weight:     deep.NewNormal(0.1, 0.0),
		Bias:       true,
	})
	return &Model{dump: network.Dump()}
}

// LoadModel reads a network previously written with Save.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	network, err := deep.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode model %s: %w", path, err)
	}
	return &Model{dump: network.Dump()}, nil
}

func (m *Model) Save(path string) error {
	data, err := m.network().Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	return nil
}

// Inputs is the vector length the network expects.
func (m *Model) Inputs() int {
	return m.dump.Config.Inputs
}

// Evaluator returns an evaluation function backed by a fresh copy of the network.
func (m *Model) Evaluator() game.Evaluate {
	return NeuralEvaluator(m.network())
}

// network builds an instance from the dump. The config is copied since
// construction fills in its defaults.
func (m *Model) network() *deep.Neural {
	config := *m.dump.Config
	return deep.FromDump(&deep.Dump{Config: &config, Weights: m.dump.Weights})
}

// NeuralEvaluator predicts the value of a snapshot from its vector encoding.
// A vector of the wrong length is a configuration error and panics.
func NeuralEvaluator(network *deep.Neural) game.Evaluate {
	return func(s *game.Snapshot, perspective int) float64 {
		input := s.Vector(perspective)
		if len(input) != network.Config.Inputs {
			panic(fmt.Sprintf("%v: network expects %d inputs, snapshot encodes %d", game.ErrInvariantViolation, network.Config.Inputs, len(input)))
		}
		return network.Predict(input)[0]
	}
}
