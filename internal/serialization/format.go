package serialization

import (
	"time"

	"github.com/born-ml/gograd/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "GGRD"
	FormatVersion   = 1
	HeaderAlignment = 64   // Tensor data starts on a 64-byte boundary.
	FixedHeaderSize = 64   // Fixed header size (0x40 bytes).
	ChecksumSize    = 32   // SHA-256 checksum size.
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header.

	bytesPerElement = 8
)

// Flags stored in the fixed header.
const (
	FlagHasCheckpoint uint32 = 1 << 0 // bit 0: training state included
	FlagHasMetadata   uint32 = 1 << 1 // bit 1: custom metadata included
)

// Header is the JSON header of a .ggrd file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	ModelType      string            `json:"model_type"`
	CreatedAt      time.Time         `json:"created_at"`
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta records where in training a checkpoint was taken.
type CheckpointMeta struct {
	Epoch           int                `json:"epoch"`
	Step            int64              `json:"step"`
	Loss            float64            `json:"loss"`
	OptimizerType   string             `json:"optimizer_type"`
	OptimizerConfig map[string]float64 `json:"optimizer_config,omitempty"`
}

// TensorMeta describes one tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`   // e.g. "fc1.weight"
	Shape  []int  `json:"shape"`  // tensor shape
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`   // bytes
}

// Named pairs a tensor with its checkpoint name.
type Named struct {
	Name   string
	Tensor *tensor.Tensor
}
