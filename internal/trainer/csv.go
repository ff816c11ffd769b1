package trainer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// CSVOptions selects target and feature columns. Columns may be picked by
// name (requires HasHeader) or by index. Without an explicit choice the last
// column is the target and every other column a feature.
type CSVOptions struct {
	HasHeader            bool
	TargetColumnNames    []string
	TargetColumnIndexes  []int
	FeatureColumnNames   []string
	FeatureColumnIndexes []int
}

func LoadCSVFile(path string, opts CSVOptions) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return LoadCSV(f, opts)
}

// LoadCSV reads a numeric table into a Dataset. Blank rows are skipped and
// every row must have as many fields as the first one.
func LoadCSV(in io.Reader, opts CSVOptions) (Dataset, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = 0

	targetIdx := slices.Clone(opts.TargetColumnIndexes)
	featureIdx := slices.Clone(opts.FeatureColumnIndexes)
	row := 0
	if opts.HasHeader {
		header, err := reader.Read()
		if err == io.EOF {
			return Dataset{}, fmt.Errorf("dataset is empty")
		}
		if err != nil {
			return Dataset{}, fmt.Errorf("read dataset header: %w", err)
		}
		row++
		if len(opts.TargetColumnNames) > 0 {
			if targetIdx, err = columnIndexesByName(header, opts.TargetColumnNames); err != nil {
				return Dataset{}, err
			}
		}
		if len(opts.FeatureColumnNames) > 0 {
			if featureIdx, err = columnIndexesByName(header, opts.FeatureColumnNames); err != nil {
				return Dataset{}, err
			}
		}
	} else if len(opts.TargetColumnNames) > 0 || len(opts.FeatureColumnNames) > 0 {
		return Dataset{}, fmt.Errorf("column names require a header row")
	}

	var xs, ys []float64
	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Dataset{}, fmt.Errorf("read dataset row %d: %w", row+1, err)
		}
		row++
		if blankRecord(record) {
			continue
		}
		if len(targetIdx) == 0 {
			targetIdx = []int{len(record) - 1}
		}
		if len(featureIdx) == 0 {
			featureIdx = remainingIndexes(len(record), targetIdx)
		}
		if len(featureIdx) == 0 {
			return Dataset{}, fmt.Errorf("dataset row %d has no feature columns", row)
		}
		for _, idx := range featureIdx {
			v, err := parseFloatField(record, idx, row)
			if err != nil {
				return Dataset{}, err
			}
			xs = append(xs, v)
		}
		for _, idx := range targetIdx {
			v, err := parseFloatField(record, idx, row)
			if err != nil {
				return Dataset{}, err
			}
			ys = append(ys, v)
		}
		rows++
	}
	if rows == 0 {
		return Dataset{}, fmt.Errorf("dataset has no rows")
	}
	data := Dataset{
		X: mat.NewDense(rows, len(featureIdx), xs),
		Y: mat.NewDense(rows, len(targetIdx), ys),
	}
	return data, data.Validate()
}

func parseFloatField(record []string, idx, row int) (float64, error) {
	if idx < 0 || idx >= len(record) {
		return 0, fmt.Errorf("dataset row %d missing column index %d", row, idx)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(record[idx]), 64)
	if err != nil {
		return 0, fmt.Errorf("parse dataset row %d column %d: %w", row, idx, err)
	}
	return v, nil
}

func columnIndexesByName(header, names []string) ([]int, error) {
	out := make([]int, 0, len(names))
	for _, name := range names {
		want := strings.ToLower(strings.TrimSpace(name))
		idx := slices.IndexFunc(header, func(field string) bool {
			return strings.ToLower(strings.TrimSpace(field)) == want
		})
		if idx < 0 {
			return nil, fmt.Errorf("csv column not found: %s", name)
		}
		out = append(out, idx)
	}
	return out, nil
}

func remainingIndexes(recordLen int, exclude []int) []int {
	out := make([]int, 0, recordLen)
	for idx := 0; idx < recordLen; idx++ {
		if !slices.Contains(exclude, idx) {
			out = append(out, idx)
		}
	}
	return out
}

func blankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
