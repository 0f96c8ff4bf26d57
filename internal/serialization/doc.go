// Package serialization saves and restores model parameters in the .ggrd
// checkpoint format.
//
//	Format Structure:
//	  0x00 [4 bytes: Magic "GGRD"]
//	  0x04 [4 bytes: Version (uint32 LE)]
//	  0x08 [4 bytes: Flags (uint32 LE)]
//	  0x0C [4 bytes: Reserved]
//	  0x10 [8 bytes: Header Size (uint64 LE)]
//	  0x18 [8 bytes: Data Size (uint64 LE)]
//	  0x20 [32 bytes: SHA-256 of the data section]
//	  0x40 [Header: JSON metadata]
//	       [Padding to a 64-byte boundary]
//	       [Tensor data: float64 LE, in header order]
//
// Example usage:
//
//	named := []serialization.Named{
//	    {Name: "fc1.weight", Tensor: fc1.Weights},
//	    {Name: "fc1.bias", Tensor: fc1.Biases},
//	}
//	if err := serialization.SaveFile("model.ggrd", named, serialization.Header{ModelType: "mlp"}); err != nil {
//	    return err
//	}
//
//	ckpt, err := serialization.LoadFile("model.ggrd")
//	if err != nil {
//	    return err
//	}
//	if err := ckpt.LoadInto(named); err != nil {
//	    return err
//	}
package serialization
