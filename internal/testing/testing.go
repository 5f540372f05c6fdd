// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// Signature is the 8-byte PNG file signature.
var Signature = []byte{137, 80, 78, 71, 13, 10, 26, 10}

// Chunk is a raw PNG chunk used to assemble test images.
type Chunk struct {
	Type string
	Data []byte
}

// EncodeChunk serializes a chunk with its length prefix and CRC.
func EncodeChunk(c Chunk) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(len(c.Data)))
	buf.WriteString(c.Type)
	buf.Write(c.Data)

	h := crc32.NewIEEE()
	h.Write([]byte(c.Type))
	h.Write(c.Data)
	binary.Write(&buf, binary.BigEndian, h.Sum32())
	return buf.Bytes()
}

// IHDR builds an IHDR chunk for an 8-bit RGBA image.
func IHDR(width, height uint32) Chunk {
	data := make([]byte, 13)
	binary.BigEndian.PutUint32(data[0:4], width)
	binary.BigEndian.PutUint32(data[4:8], height)
	data[8] = 8 // bit depth
	data[9] = 6 // RGBA
	return Chunk{Type: "IHDR", Data: data}
}

// Text builds a tEXt chunk.
func Text(keyword, text string) Chunk {
	return Chunk{Type: "tEXt", Data: []byte(keyword + "\x00" + text)}
}

// CompressedText builds a zTXt chunk.
func CompressedText(keyword, text string) Chunk {
	var buf bytes.Buffer
	buf.WriteString(keyword)
	buf.Write([]byte{0, 0})
	buf.Write(Deflate([]byte(text)))
	return Chunk{Type: "zTXt", Data: buf.Bytes()}
}

// InternationalText builds an iTXt chunk, optionally compressed.
func InternationalText(keyword, lang, translated, text string, compressed bool) Chunk {
	var buf bytes.Buffer
	buf.WriteString(keyword)
	buf.WriteByte(0)
	if compressed {
		buf.Write([]byte{1, 0})
	} else {
		buf.Write([]byte{0, 0})
	}
	buf.WriteString(lang)
	buf.WriteByte(0)
	buf.WriteString(translated)
	buf.WriteByte(0)
	if compressed {
		buf.Write(Deflate([]byte(text)))
	} else {
		buf.WriteString(text)
	}
	return Chunk{Type: "iTXt", Data: buf.Bytes()}
}

// Physical builds a pHYs chunk.
func Physical(x, y uint32, unit byte) Chunk {
	data := make([]byte, 9)
	binary.BigEndian.PutUint32(data[0:4], x)
	binary.BigEndian.PutUint32(data[4:8], y)
	data[8] = unit
	return Chunk{Type: "pHYs", Data: data}
}

// Deflate zlib-compresses data.
func Deflate(data []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write(data)
	zw.Close()
	return buf.Bytes()
}

// BuildPNG assembles signature, the given chunks, a one-byte IDAT and IEND.
func BuildPNG(chunks ...Chunk) []byte {
	var buf bytes.Buffer
	buf.Write(Signature)
	for _, c := range chunks {
		buf.Write(EncodeChunk(c))
	}
	buf.Write(EncodeChunk(Chunk{Type: "IDAT", Data: []byte{0}}))
	buf.Write(EncodeChunk(Chunk{Type: "IEND"}))
	return buf.Bytes()
}

// WritePNG writes a small valid PNG carrying a tEXt "Description" chunk to dir/name and returns its path.
func WritePNG(t *testing.T, dir, name, description string) string {
	t.Helper()
	return WriteFile(t, dir, name, BuildPNG(IHDR(16, 16), Text("Description", description)))
}

// WriteFile writes data to dir/name, creating parent directories, and returns the path.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites int, target io.Writer) *LimitedWriter {
	return &LimitedWriter{maxWrites: maxWrites, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
