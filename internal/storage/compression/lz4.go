package compression

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4"
)

// NoCompressor is a pass-through.
type NoCompressor struct{}

func (c *NoCompressor) Name() string { return "none" }

func (c *NoCompressor) Compress(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (c *NoCompressor) Decompress(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// LZ4Compressor frames each blob with its uncompressed length so
// decompression can allocate exactly once.
type LZ4Compressor struct{}

// headerSize is the length prefix in bytes.
const headerSize = 4

func (c *LZ4Compressor) Name() string { return "lz4" }

func (c *LZ4Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}

	buf := make([]byte, headerSize+lz4.CompressBlockBound(len(data)))
	binary.BigEndian.PutUint32(buf[:headerSize], uint32(len(data)))

	n, err := lz4.CompressBlock(data, buf[headerSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compression failed: %w", err)
	}
	if n == 0 {
		// Incompressible input; CompressBlock signals this with n == 0.
		// Store it raw with a zero header.
		binary.BigEndian.PutUint32(buf[:headerSize], 0)
		return append(buf[:headerSize], data...), nil
	}
	return buf[:headerSize+n], nil
}

func (c *LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}
	if len(data) < headerSize {
		return nil, fmt.Errorf("lz4 blob too short: %d bytes", len(data))
	}

	size := binary.BigEndian.Uint32(data[:headerSize])
	if size == 0 {
		// Stored raw.
		out := make([]byte, len(data)-headerSize)
		copy(out, data[headerSize:])
		return out, nil
	}

	out := make([]byte, size)
	n, err := lz4.UncompressBlock(data[headerSize:], out)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompression failed: %w", err)
	}
	return out[:n], nil
}
