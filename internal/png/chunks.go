package png

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// maxTextSize bounds decompressed text chunk bodies.
const maxTextSize = 8 << 20

var errMalformed = fmt.Errorf("malformed chunk")

// decodeChunk stores the attributes of one chunk in md. Unknown chunk types are ignored.
func decodeChunk(kind string, data []byte, md *orderedMetadata) error {
	switch kind {
	case "IHDR":
		return decodeIHDR(data, md)
	case "tEXt":
		return decodeText(data, md)
	case "iTXt":
		return decodeInternationalText(data, md)
	case "zTXt":
		return decodeCompressedText(data, md)
	case "pHYs":
		return decodePhysical(data, md)
	case "tIME":
		return decodeTime(data, md)
	default:
		return nil
	}
}

func decodeIHDR(data []byte, md *orderedMetadata) error {
	if len(data) != 13 {
		return fmt.Errorf("%w: IHDR length %d", errMalformed, len(data))
	}
	md.set("width", binary.BigEndian.Uint32(data[0:4]))
	md.set("height", binary.BigEndian.Uint32(data[4:8]))
	md.set("bit_depth", data[8])
	md.set("color_type", data[9])
	md.set("compression_method", data[10])
	md.set("filter_method", data[11])
	md.set("interlace_method", data[12])
	return nil
}

// decodeText handles tEXt: keyword NUL text.
func decodeText(data []byte, md *orderedMetadata) error {
	keyword, rest, ok := bytes.Cut(data, []byte{0})
	if !ok || len(keyword) == 0 {
		return fmt.Errorf("%w: tEXt missing keyword separator", errMalformed)
	}
	md.set("tEXt:"+latin1(keyword), latin1(rest))
	return nil
}

// decodeInternationalText handles iTXt:
// keyword NUL flag method language NUL translated-keyword NUL text.
func decodeInternationalText(data []byte, md *orderedMetadata) error {
	keyword, rest, ok := bytes.Cut(data, []byte{0})
	if !ok || len(keyword) == 0 {
		return fmt.Errorf("%w: iTXt missing keyword terminator", errMalformed)
	}
	if len(rest) < 2 {
		return fmt.Errorf("%w: iTXt missing compression fields", errMalformed)
	}
	compressed := rest[0] == 1
	method := rest[1]
	rest = rest[2:]

	_, rest, ok = bytes.Cut(rest, []byte{0}) // language tag
	if !ok {
		return fmt.Errorf("%w: iTXt missing language terminator", errMalformed)
	}
	_, text, ok := bytes.Cut(rest, []byte{0}) // translated keyword
	if !ok {
		return fmt.Errorf("%w: iTXt missing translated keyword terminator", errMalformed)
	}

	if compressed {
		if method != 0 {
			return fmt.Errorf("%w: iTXt compression method %d", errMalformed, method)
		}
		inflated, err := inflate(text)
		if err != nil {
			return err
		}
		text = inflated
	}

	md.set("iTXt:"+string(keyword), string(text))
	return nil
}

// decodeCompressedText handles zTXt: keyword NUL method zlib-data.
func decodeCompressedText(data []byte, md *orderedMetadata) error {
	keyword, rest, ok := bytes.Cut(data, []byte{0})
	if !ok || len(keyword) == 0 {
		return fmt.Errorf("%w: zTXt missing keyword terminator", errMalformed)
	}
	if len(rest) < 1 || rest[0] != 0 {
		return fmt.Errorf("%w: zTXt unsupported compression method", errMalformed)
	}
	text, err := inflate(rest[1:])
	if err != nil {
		return err
	}
	md.set("zTXt:"+latin1(keyword), latin1(text))
	return nil
}

func decodePhysical(data []byte, md *orderedMetadata) error {
	if len(data) != 9 {
		return fmt.Errorf("%w: pHYs length %d", errMalformed, len(data))
	}
	md.set("pHYs:pixels_per_unit_x", binary.BigEndian.Uint32(data[0:4]))
	md.set("pHYs:pixels_per_unit_y", binary.BigEndian.Uint32(data[4:8]))
	md.set("pHYs:unit", data[8])
	return nil
}

func decodeTime(data []byte, md *orderedMetadata) error {
	if len(data) != 7 {
		return fmt.Errorf("%w: tIME length %d", errMalformed, len(data))
	}
	t := time.Date(
		int(binary.BigEndian.Uint16(data[0:2])),
		time.Month(data[2]),
		int(data[3]), int(data[4]), int(data[5]), int(data[6]),
		0, time.UTC,
	)
	md.set("last_modified", t.Format(time.RFC3339))
	return nil
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, maxTextSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	return out, nil
}

// latin1 decodes tEXt/zTXt bytes. Many writers put UTF-8 in these chunks,
// so valid UTF-8 is kept as is.
func latin1(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}
