package protocol

import (
	"encoding/base64"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/codefionn/devtap/internal/console"
)

// Segment payloads travel as base64 text inside a JSON string. The binary
// blob under the base64 starts with a one-byte format marker so the codec
// can evolve without breaking older servers:
//
//	0x01  CBOR-encoded []console.Segment
//	0x02  zstd-compressed CBOR-encoded []console.Segment
//
// The encoder compresses only when it pays off; the decoder accepts both.
const (
	codecCBOR           byte = 0x01
	codecCBORZstd       byte = 0x02
	compressThreshold        = 4096
)

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
}

// EncodeSegments serializes captured segments into a transport-safe string.
// DecodeSegments(EncodeSegments(s)) reconstructs s exactly, including the
// empty sequence.
func EncodeSegments(segments []console.Segment) (string, error) {
	if segments == nil {
		segments = []console.Segment{}
	}

	body, err := cbor.Marshal(segments)
	if err != nil {
		return "", fmt.Errorf("failed to serialize segments: %w", err)
	}

	marker := codecCBOR
	if len(body) > compressThreshold {
		body = zstdEncoder.EncodeAll(body, nil)
		marker = codecCBORZstd
	}

	blob := make([]byte, 0, len(body)+1)
	blob = append(blob, marker)
	blob = append(blob, body...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// DecodeSegments reverses EncodeSegments.
func DecodeSegments(encoded string) ([]console.Segment, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode segment payload: %w", err)
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("empty segment payload")
	}

	body := blob[1:]
	switch blob[0] {
	case codecCBOR:
	case codecCBORZstd:
		body, err = zstdDecoder.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress segment payload: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown segment encoding 0x%02x", blob[0])
	}

	var segments []console.Segment
	if err := cbor.Unmarshal(body, &segments); err != nil {
		return nil, fmt.Errorf("failed to deserialize segments: %w", err)
	}
	return segments, nil
}
