package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"os"

	"github.com/born-ml/gograd/internal/tensor"
	"github.com/pkg/errors"
)

// ReaderOptions configures Read.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Skip checksum validation (faster but less safe)
	ValidationLevel        ValidationLevel // Validation strictness level
}

// Checkpoint is a decoded .ggrd file.
type Checkpoint struct {
	Header Header
	Flags  uint32

	data  []byte
	index map[string]TensorMeta
}

// Read decodes a checkpoint from r.
func Read(r io.Reader, opts ReaderOptions) (*Checkpoint, error) {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, errors.Wrap(err, "read fixed header")
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(fixed[4:8]); v != FormatVersion {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "got %d, expected %d", v, FormatVersion)
	}
	flags := binary.LittleEndian.Uint32(fixed[8:12])
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	var stored [ChecksumSize]byte
	copy(stored[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	ckpt := &Checkpoint{Flags: flags}
	if err := json.Unmarshal(headerJSON, &ckpt.Header); err != nil {
		return nil, errors.Wrap(err, "parse header")
	}

	if _, err := io.CopyN(io.Discard, r, int64(padding(int(headerSize)))); err != nil {
		return nil, errors.Wrap(err, "skip padding")
	}
	var buf bytes.Buffer
	n, err := io.CopyN(&buf, r, int64(dataSize))
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "read tensor data")
	}
	if uint64(n) != dataSize {
		return nil, errors.Wrapf(ErrTruncated, "got %d of %d bytes", n, dataSize)
	}
	ckpt.data = buf.Bytes()

	if !opts.SkipChecksumValidation {
		if err := ValidateChecksum(ComputeChecksum(ckpt.data), stored); err != nil {
			return nil, err
		}
	}
	if err := ValidateHeader(&ckpt.Header, int64(dataSize), opts.ValidationLevel); err != nil {
		return nil, errors.Wrap(err, "validate header")
	}

	ckpt.index = make(map[string]TensorMeta, len(ckpt.Header.Tensors))
	for _, t := range ckpt.Header.Tensors {
		ckpt.index[t.Name] = t
	}
	return ckpt, nil
}

// LoadFile reads a checkpoint from path with strict validation.
func LoadFile(path string) (*Checkpoint, error) {
	//nolint:gosec // G304: checkpoint path comes from the command line
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open checkpoint")
	}
	defer f.Close()

	ckpt, err := Read(f, ReaderOptions{ValidationLevel: ValidationStrict})
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return ckpt, nil
}

// Names returns the tensor names in file order.
func (c *Checkpoint) Names() []string {
	names := make([]string, len(c.Header.Tensors))
	for i, t := range c.Header.Tensors {
		names[i] = t.Name
	}
	return names
}

// Tensor decodes the named tensor into a new slice.
func (c *Checkpoint) Tensor(name string) ([]float64, tensor.Shape, error) {
	meta, ok := c.index[name]
	if !ok {
		return nil, nil, errors.Wrapf(ErrMissingTensor, "%q", name)
	}
	out := make([]float64, meta.Size/bytesPerElement)
	c.decode(meta, out)
	return out, tensor.Shape(meta.Shape), nil
}

// LoadInto copies checkpoint values into the named tensors. Every name and
// shape is checked before any tensor is written.
func (c *Checkpoint) LoadInto(named []Named) error {
	for _, n := range named {
		if err := tensor.CheckNil(n.Tensor); err != nil {
			return errors.Wrapf(err, "load %q", n.Name)
		}
		meta, ok := c.index[n.Name]
		if !ok {
			return errors.Wrapf(ErrMissingTensor, "%q", n.Name)
		}
		if !n.Tensor.Shape().Equal(meta.Shape) {
			return errors.Wrapf(tensor.ErrShapeMismatch, "load %q: checkpoint %v, tensor %v",
				n.Name, meta.Shape, n.Tensor.Shape())
		}
	}
	for _, n := range named {
		c.decode(c.index[n.Name], n.Tensor.Data())
	}
	return nil
}

func (c *Checkpoint) decode(meta TensorMeta, dst []float64) {
	src := c.data[meta.Offset : meta.Offset+meta.Size]
	for i := range dst {
		dst[i] = math.Float64frombits(binary.LittleEndian.Uint64(src[i*bytesPerElement:]))
	}
}
