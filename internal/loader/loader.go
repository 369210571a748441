// Package loader builds nn models from JSON weight files exported by the
// training side.
//
// The format is a flat description of a feed-forward classifier:
//
//	{
//	  "layers": [
//	    {"kind": "normalize", "means": [0.1307], "sds": [0.3081]},
//	    {"kind": "flatten"},
//	    {"kind": "linear", "weight": [[...], ...], "bias": [...]},
//	    {"kind": "relu"},
//	    {"kind": "conv2d", "in_channels": 1, "out_channels": 4,
//	     "kernel": 3, "stride": 1, "padding": 1,
//	     "weight_flat": [...], "bias": [...]},
//	    ...
//	  ]
//	}
//
// Layer order in the file is model order; a normalize layer, when present,
// must come first.
package loader

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/certgo-ml/certgo/internal/nn"
)

// LayerSpec is one layer entry of a model file.
type LayerSpec struct {
	Kind string `json:"kind"`

	// normalize
	Means []float64 `json:"means,omitempty"`
	SDs   []float64 `json:"sds,omitempty"`

	// linear
	Weight [][]float64 `json:"weight,omitempty"`
	Bias   []float64   `json:"bias,omitempty"`

	// conv2d
	InChannels  int       `json:"in_channels,omitempty"`
	OutChannels int       `json:"out_channels,omitempty"`
	Kernel      int       `json:"kernel,omitempty"`
	Stride      int       `json:"stride,omitempty"`
	Padding     int       `json:"padding,omitempty"`
	WeightFlat  []float64 `json:"weight_flat,omitempty"`
}

// ModelFile is the on-disk model description.
type ModelFile struct {
	Layers []LayerSpec `json:"layers"`
}

// Load reads and builds a model from a JSON file.
func Load(path string) (*nn.Sequential, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	var mf ModelFile
	if err := json.Unmarshal(raw, &mf); err != nil {
		return nil, fmt.Errorf("loader: parse %s: %w", path, err)
	}
	model, err := Build(&mf)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", path, err)
	}
	return model, nil
}

// Build constructs the model from a parsed description.
func Build(mf *ModelFile) (*nn.Sequential, error) {
	if len(mf.Layers) == 0 {
		return nil, fmt.Errorf("model file has no layers")
	}
	model := nn.NewSequential()
	for i, spec := range mf.Layers {
		layer, err := buildLayer(spec)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		if _, ok := layer.(*nn.Normalize); ok && i != 0 {
			return nil, fmt.Errorf("layer %d: normalize must be the first layer", i)
		}
		model.Append(layer)
	}
	return model, nil
}

func buildLayer(spec LayerSpec) (nn.Module, error) {
	switch spec.Kind {
	case "normalize":
		return nn.NewNormalize(spec.Means, spec.SDs)
	case "flatten":
		return nn.NewFlatten(), nil
	case "relu":
		return nn.NewReLU(), nil
	case "linear":
		return nn.NewLinearFromParams(spec.Weight, spec.Bias)
	case "conv2d":
		conv := nn.NewConv2d(spec.InChannels, spec.OutChannels, spec.Kernel, spec.Stride, spec.Padding)
		if err := conv.SetWeight(spec.WeightFlat); err != nil {
			return nil, err
		}
		if spec.Bias != nil {
			if err := conv.SetBias(spec.Bias); err != nil {
				return nil, err
			}
		}
		return conv, nil
	default:
		return nil, fmt.Errorf("unknown layer kind %q", spec.Kind)
	}
}
