package report_repo

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// DefaultCompressThreshold is the form payload size above which it is stored compressed.
const DefaultCompressThreshold = 8 * 1024

// FormCodec moves large form payloads between the jsonb column and a
// zstd-compressed bytea column. Exactly one of the two is non-NULL per row.
type FormCodec struct {
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

// NewFormCodec creates a codec. threshold <= 0 uses DefaultCompressThreshold.
func NewFormCodec(threshold int) (*FormCodec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}
	return &FormCodec{encoder: encoder, decoder: decoder, threshold: threshold}, nil
}

// Pack returns the values for (form_data, form_data_zstd).
func (c *FormCodec) Pack(data json.RawMessage) (inline any, compressed any) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) <= c.threshold {
		return data, nil
	}
	return nil, c.encoder.EncodeAll(data, make([]byte, 0, len(data)/4))
}

// Unpack restores the payload from whichever column holds it.
func (c *FormCodec) Unpack(inline json.RawMessage, compressed []byte) (json.RawMessage, error) {
	if len(compressed) == 0 {
		return inline, nil
	}
	out, err := c.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress form data: %w", err)
	}
	return out, nil
}
