package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/certgo-ml/certgo/internal/tensor"
)

// Example is one labeled image with pixel intensities in [0, 1].
type Example struct {
	Input *tensor.Tensor
	Label int
}

// LoadCSV loads labeled images from a Kaggle-style CSV file:
//
//	label,pixel0,pixel1,...,pixelN
//	5,0,0,12,...,0
//
// Pixel values 0–255 are scaled to [0, 1] and reshaped to the given
// single-example shape. maxExamples limits how many rows are read
// (0 = all).
func LoadCSV(filename string, shape tensor.Shape, maxExamples int) ([]Example, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("dataset: failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("dataset: failed to read CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("dataset: CSV file is empty or missing header")
	}

	// Skip header row.
	records = records[1:]
	if maxExamples > 0 && len(records) > maxExamples {
		records = records[:maxExamples]
	}

	pixels := shape.NumElements()
	examples := make([]Example, 0, len(records))
	for row, record := range records {
		if len(record) != pixels+1 {
			return nil, fmt.Errorf("dataset: row %d has %d columns, want %d", row+2, len(record), pixels+1)
		}
		label, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("dataset: row %d: bad label %q: %w", row+2, record[0], err)
		}
		t := tensor.New(shape)
		data := t.Data()
		for i, field := range record[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("dataset: row %d, pixel %d: %w", row+2, i, err)
			}
			data[i] = v / 255.0
		}
		examples = append(examples, Example{Input: t, Label: label})
	}
	return examples, nil
}
