// Package dataset provides metadata and loading for the image benchmarks
// CertGo verifies against.
package dataset

import (
	"fmt"
	"sync"

	"github.com/certgo-ml/certgo/internal/tensor"
)

var mu sync.RWMutex

// classCounts maps the supported dataset identifiers to their label counts.
var classCounts = map[string]int{
	"mnist":         10,
	"fashion-mnist": 10,
	"cifar10":       10,
	"svhn":          10,
	"imagenet":      1000,
}

// shapes maps dataset identifiers to their single-example input shape.
var shapes = map[string]tensor.Shape{
	"mnist":         {1, 28, 28},
	"fashion-mnist": {1, 28, 28},
	"cifar10":       {3, 32, 32},
	"svhn":          {3, 32, 32},
	"imagenet":      {3, 224, 224},
}

// Register adds a custom dataset identifier so that models trained on
// benchmarks outside the built-in set can still be verified. Registering
// an existing name overwrites its metadata.
func Register(name string, numClasses int, shape tensor.Shape) error {
	if name == "" {
		return fmt.Errorf("dataset: empty dataset name")
	}
	if numClasses < 2 {
		return fmt.Errorf("dataset: dataset %q needs at least 2 classes, got %d", name, numClasses)
	}
	if err := shape.Validate(); err != nil {
		return fmt.Errorf("dataset: invalid shape for %q: %w", name, err)
	}
	mu.Lock()
	defer mu.Unlock()
	classCounts[name] = numClasses
	shapes[name] = shape.Clone()
	return nil
}

// NumClasses returns the number of classes of the named dataset.
func NumClasses(name string) (int, error) {
	mu.RLock()
	defer mu.RUnlock()
	n, ok := classCounts[name]
	if !ok {
		return 0, fmt.Errorf("dataset: unknown dataset %q", name)
	}
	return n, nil
}

// InputShape returns the single-example input shape of the named dataset.
func InputShape(name string) (tensor.Shape, error) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := shapes[name]
	if !ok {
		return nil, fmt.Errorf("dataset: unknown dataset %q", name)
	}
	return s.Clone(), nil
}
