package document

import (
	"errors"
	"fmt"

	"github.com/golang/snappy"
)

// Codec tags prefixed to stored payloads
const (
	CodecJSON   byte = 'j'
	CodecSnappy byte = 's'
)

// EncodePayload tags a serialized graph for storage, compressing it with
// snappy when compress is true.
func EncodePayload(serializedGraph string, compress bool) []byte {
	if !compress {
		out := make([]byte, 0, len(serializedGraph)+1)
		out = append(out, CodecJSON)
		return append(out, serializedGraph...)
	}
	body := snappy.Encode(nil, []byte(serializedGraph))
	return append([]byte{CodecSnappy}, body...)
}

// DecodePayload reverses EncodePayload. Untagged payloads that look like a
// JSON object are accepted verbatim so hand-written rows still load.
func DecodePayload(payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", errors.New("empty payload")
	}

	switch payload[0] {
	case '{':
		return string(payload), nil
	case CodecJSON:
		return string(payload[1:]), nil
	case CodecSnappy:
		data, err := snappy.Decode(nil, payload[1:])
		if err != nil {
			return "", fmt.Errorf("%w: snappy: %v", ErrMalformedGraph, err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: unknown payload codec %q", ErrMalformedGraph, payload[0])
	}
}
