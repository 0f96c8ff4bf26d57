// Package dataset loads tabular training data and draws shuffled mini-batches.
//
// CSV Format (Kaggle-style):
//
//	label,feature0,feature1,...,featureN
//	5,0,0,12,...,0
//	0,0,0,0,...,0
//
// The first column is the label, every other column a feature. Rows are kept
// in memory as float64 and copied into pooled tensors by SampleBatch.
package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/born-ml/gograd/internal/tensor"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// Common errors.
var (
	ErrEmpty       = errors.New("dataset has no rows")
	ErrRecordWidth = errors.New("inconsistent record length")
	ErrParse       = errors.New("invalid number")
)

// Options controls CSV parsing.
type Options struct {
	Header     bool // Skip the first record.
	Comma      rune // Field delimiter (default: ',').
	MaxSamples int  // Maximum number of rows to load (0 = load all).
}

// CSV is an in-memory labelled dataset.
type CSV struct {
	Rows     int
	Features int

	labels []float64 // [Rows]
	values []float64 // [Rows, Features] row-major
}

// OpenCSV loads a dataset from the file at path.
func OpenCSV(path string, opts Options) (*CSV, error) {
	//nolint:gosec // G304: dataset path comes from the command line
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open dataset")
	}
	defer f.Close()

	d, err := LoadCSV(f, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return d, nil
}

// LoadCSV parses a dataset from r.
func LoadCSV(r io.Reader, opts Options) (*CSV, error) {
	reader := csv.NewReader(r)
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}
	reader.ReuseRecord = true

	d := &CSV{}
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read row %d", line)
		}
		if line == 1 && opts.Header {
			continue
		}
		if opts.MaxSamples > 0 && d.Rows == opts.MaxSamples {
			break
		}
		if err := d.appendRecord(record, line); err != nil {
			return nil, err
		}
	}

	if d.Rows == 0 {
		return nil, ErrEmpty
	}
	return d, nil
}

func (d *CSV) appendRecord(record []string, line int) error {
	if len(record) < 2 {
		return errors.Wrapf(ErrRecordWidth, "row %d: need a label and at least one feature, got %d fields", line, len(record))
	}
	if d.Rows == 0 {
		d.Features = len(record) - 1
	} else if len(record)-1 != d.Features {
		return errors.Wrapf(ErrRecordWidth, "row %d: got %d fields, want %d", line, len(record), d.Features+1)
	}

	for col, field := range record {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return errors.Wrapf(ErrParse, "row %d, column %d: %q", line, col+1, field)
		}
		if col == 0 {
			d.labels = append(d.labels, v)
		} else {
			d.values = append(d.values, v)
		}
	}
	d.Rows++
	return nil
}

// Label returns the label of row i.
func (d *CSV) Label(i int) float64 {
	return d.labels[i]
}

// Row returns the features of row i. The slice aliases the dataset.
func (d *CSV) Row(i int) []float64 {
	return d.values[i*d.Features : (i+1)*d.Features]
}

// Classes returns one more than the largest label, the class count for
// datasets whose labels are class ids.
func (d *CSV) Classes() int {
	top := 0.0
	for _, l := range d.labels {
		top = math.Max(top, l)
	}
	return int(top) + 1
}

// StandardScale rescales every feature column to zero mean and unit
// variance. Columns with zero variance are only centred.
func (d *CSV) StandardScale() {
	column := make([]float64, d.Rows)
	for j := 0; j < d.Features; j++ {
		for i := 0; i < d.Rows; i++ {
			column[i] = d.values[i*d.Features+j]
		}
		mean, std := stat.PopMeanStdDev(column, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		for i := 0; i < d.Rows; i++ {
			k := i*d.Features + j
			d.values[k] = (d.values[k] - mean) / std
		}
	}
}

// SampleBatch copies the rows listed in idx into x [len(idx), Features] and
// their labels into y [len(idx), 1].
func (d *CSV) SampleBatch(x, y *tensor.Tensor, idx []int) error {
	if err := tensor.CheckNil(x); err != nil {
		return errors.Wrap(err, "sample batch x")
	}
	if err := tensor.CheckNil(y); err != nil {
		return errors.Wrap(err, "sample batch y")
	}
	n := len(idx)
	if !x.Shape().Equal(tensor.Shape{n, d.Features}) {
		return errors.Wrapf(tensor.ErrShapeMismatch, "sample batch: x is %v, want [%d %d]", x.Shape(), n, d.Features)
	}
	if !y.Shape().Equal(tensor.Shape{n, 1}) {
		return errors.Wrapf(tensor.ErrShapeMismatch, "sample batch: y is %v, want [%d 1]", y.Shape(), n)
	}
	for _, i := range idx {
		if i < 0 || i >= d.Rows {
			return errors.Wrapf(tensor.ErrIndexOutOfBounds, "sample batch: row %d of %d", i, d.Rows)
		}
	}

	xd, yd := x.Data(), y.Data()
	for b, i := range idx {
		copy(xd[b*d.Features:(b+1)*d.Features], d.Row(i))
		yd[b] = d.labels[i]
	}
	return nil
}
