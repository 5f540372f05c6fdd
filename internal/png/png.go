package png

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
)

var (
	ErrNotPNG        = fmt.Errorf("not a PNG file")
	ErrChunkTooLarge = fmt.Errorf("chunk too large")
)

var signature = []byte{137, 80, 78, 71, 13, 10, 26, 10}

// maxChunkSize bounds the chunk bodies that are read into memory. Larger
// chunks (in practice only IDAT) are skipped without buffering.
const maxChunkSize = 16 << 20

// textPrefixes are stripped from keys when formatting.
var textPrefixes = []string{"tEXt:", "iTXt:", "zTXt:", "pHYs:"}

// Metadata maps attribute names to decoded values.
//
// IHDR fields use bare names (width, height, ...). Text and pHYs entries
// are prefixed with their chunk type ("tEXt:parameters") unless the
// metadata was read in formatted mode.
type Metadata map[string]any

// Strings flattens every value to its string form.
func (m Metadata) Strings() map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprint(v)
	}
	return out
}

// Keys returns the keys in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the first value found for any of the names, trying each
// name bare and then with every chunk prefix.
func (m Metadata) Lookup(names ...string) (string, bool) {
	for _, name := range names {
		if v, ok := m[name]; ok {
			return fmt.Sprint(v), true
		}
		for _, p := range textPrefixes {
			if v, ok := m[p+name]; ok {
				return fmt.Sprint(v), true
			}
		}
	}
	return "", false
}

// DescriptionKeys are the text keys tried, in order, by [Metadata.Description].
var DescriptionKeys = []string{"Description", "parameters", "Comment", "Title"}

// Description returns the first of [DescriptionKeys] present, or "".
func (m Metadata) Description() string {
	d, _ := m.Lookup(DescriptionKeys...)
	return d
}

// Extractor reads chunk-level metadata from PNG files without decoding pixel data.
type Extractor struct {
	logger *log.Logger
}

// NewExtractor creates an [Extractor]. A nil logger falls back to [log.Default].
func NewExtractor(logger *log.Logger) *Extractor {
	if logger == nil {
		logger = log.Default()
	}
	return &Extractor{logger: logger}
}

// ReadMetadata reads the metadata of the PNG file at path using the default logger.
func ReadMetadata(path string, formatted bool) (Metadata, error) {
	return NewExtractor(nil).ReadFile(path, formatted)
}

// ReadFile opens path and reads its metadata. See [Extractor.Read].
func (x *Extractor) ReadFile(path string, formatted bool) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	md, err := x.read(bufio.NewReader(f), formatted, x.logger.With("path", path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return md, nil
}

// Read parses a PNG stream and returns its metadata.
//
// A bad signature returns [ErrNotPNG]. A stream that ends early, a chunk
// with a bad CRC, or a malformed chunk body is logged and the metadata
// gathered so far is kept.
func (x *Extractor) Read(r io.Reader, formatted bool) (Metadata, error) {
	return x.read(r, formatted, x.logger)
}

func (x *Extractor) read(r io.Reader, formatted bool, logger *log.Logger) (Metadata, error) {
	sig := make([]byte, len(signature))
	if _, err := io.ReadFull(r, sig); err != nil || !bytes.Equal(sig, signature) {
		return nil, ErrNotPNG
	}

	md := &orderedMetadata{values: make(Metadata)}
	header := make([]byte, 8)

	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn("truncated chunk header", "error", err)
			}
			break
		}

		length := binary.BigEndian.Uint32(header[:4])
		kind := string(header[4:8])

		if length > maxChunkSize {
			if kind == "IDAT" || !isCritical(kind) {
				if _, err := io.CopyN(io.Discard, r, int64(length)+4); err != nil {
					logger.Warn("truncated chunk", "chunk", kind, "error", err)
					break
				}
				continue
			}
			logger.Warn("chunk exceeds size limit", "chunk", kind, "length", length, "error", ErrChunkTooLarge)
			break
		}

		if kind == "IDAT" {
			if _, err := io.CopyN(io.Discard, r, int64(length)+4); err != nil {
				logger.Warn("truncated chunk", "chunk", kind, "error", err)
				break
			}
			continue
		}

		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			logger.Warn("truncated chunk", "chunk", kind, "error", err)
			break
		}
		crc := make([]byte, 4)
		if _, err := io.ReadFull(r, crc); err != nil {
			logger.Warn("truncated chunk CRC", "chunk", kind, "error", err)
			break
		}

		h := crc32.NewIEEE()
		h.Write(header[4:8])
		h.Write(data)
		if h.Sum32() != binary.BigEndian.Uint32(crc) {
			logger.Warn("chunk CRC mismatch, skipping", "chunk", kind)
			continue
		}

		if kind == "IEND" {
			break
		}

		if err := decodeChunk(kind, data, md); err != nil {
			logger.Warn("skipping malformed chunk", "chunk", kind, "error", err)
		}
	}

	if formatted {
		return md.formatted(), nil
	}
	return md.values, nil
}

// isCritical reports whether the chunk type names a critical chunk (uppercase first letter).
func isCritical(kind string) bool {
	return len(kind) == 4 && kind[0] >= 'A' && kind[0] <= 'Z'
}

// orderedMetadata remembers insertion order so that formatting keeps the
// first value seen for keys that collide once prefixes are removed.
type orderedMetadata struct {
	values Metadata
	keys   []string
}

func (o *orderedMetadata) set(key string, value any) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

func (o *orderedMetadata) formatted() Metadata {
	out := make(Metadata, len(o.keys))
	for _, key := range o.keys {
		name := key
		for _, p := range textPrefixes {
			if strings.HasPrefix(name, p) {
				name = name[len(p):]
				break
			}
		}
		if _, exists := out[name]; !exists {
			out[name] = o.values[key]
		}
	}
	return out
}
