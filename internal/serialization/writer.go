package serialization

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"os"
	"time"

	"github.com/born-ml/gograd/internal/tensor"
	"github.com/pkg/errors"
)

// Write encodes named tensors, in order, with the given header.
//
// Header.Tensors, FormatVersion and CreatedAt are filled in by Write.
func Write(w io.Writer, named []Named, header Header) error {
	seen := make(map[string]struct{}, len(named))
	header.FormatVersion = FormatVersion
	header.CreatedAt = time.Now().UTC()
	header.Tensors = make([]TensorMeta, 0, len(named))

	var data []byte
	for _, n := range named {
		if err := ValidateTensorName(n.Name); err != nil {
			return err
		}
		if _, dup := seen[n.Name]; dup {
			return errors.Wrapf(ErrDuplicateName, "write %q", n.Name)
		}
		seen[n.Name] = struct{}{}
		if err := tensor.CheckNil(n.Tensor); err != nil {
			return errors.Wrapf(err, "write %q", n.Name)
		}

		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   n.Name,
			Shape:  n.Tensor.Shape().Clone(),
			Offset: int64(len(data)),
			Size:   int64(n.Tensor.Size() * bytesPerElement),
		})
		for _, v := range n.Tensor.Data() {
			data = binary.LittleEndian.AppendUint64(data, math.Float64bits(v))
		}
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "marshal header")
	}

	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if header.CheckpointMeta != nil {
		flags |= FlagHasCheckpoint
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	// 0x0C-0x0F reserved
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	checksum := ComputeChecksum(data)
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := w.Write(fixed); err != nil {
		return errors.Wrap(err, "write fixed header")
	}
	if _, err := w.Write(headerJSON); err != nil {
		return errors.Wrap(err, "write header")
	}
	if pad := padding(len(headerJSON)); pad > 0 {
		if _, err := w.Write(make([]byte, pad)); err != nil {
			return errors.Wrap(err, "write padding")
		}
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(err, "write tensor data")
	}
	return nil
}

// SaveFile writes a checkpoint to path, replacing any existing file.
func SaveFile(path string, named []Named, header Header) (err error) {
	//nolint:gosec // G304: checkpoint path comes from the command line
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create checkpoint")
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close checkpoint")
		}
	}()
	return Write(f, named, header)
}

// padding returns the bytes needed after a header of headerSize bytes to
// align the data section.
func padding(headerSize int) int {
	pos := FixedHeaderSize + headerSize
	return (HeaderAlignment - pos%HeaderAlignment) % HeaderAlignment
}
