package blobnet

import (
	"bytes"
	"io"

	"github.com/ulikunitz/xz"
)

// xzMagic is the xz container header, used to sniff compressed payloads when
// the metadata tag is missing.
var xzMagic = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}

// Compress compresses data under the given scheme tag.
func Compress(data []byte, scheme string) ([]byte, error) {
	switch scheme {
	case "", CompressNone:
		return data, nil
	case CompressXZ:
		return compressXZ(data)
	default:
		return nil, ErrUnsupportedCompression
	}
}

// Decompress reverses Compress. An empty scheme falls back to sniffing the
// xz magic so older records without a compression tag still decode.
func Decompress(data []byte, scheme string) ([]byte, error) {
	switch scheme {
	case CompressNone:
		return data, nil
	case CompressXZ:
		return decompressXZ(data)
	case "":
		if bytes.HasPrefix(data, xzMagic) {
			return decompressXZ(data)
		}
		return data, nil
	default:
		return nil, ErrUnsupportedCompression
	}
}

func compressXZ(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressXZ(data []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
