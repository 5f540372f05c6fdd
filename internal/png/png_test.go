package png

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	tu "github.com/desertthunder/pngx/internal/testing"
)

func newTestExtractor() *Extractor {
	return NewExtractor(log.New(io.Discard))
}

func TestExtractor_Read(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		formatted bool
		want      map[string]string
		absent    []string
		wantErr   error
	}{
		{
			name: "IHDR fields",
			data: tu.BuildPNG(tu.IHDR(640, 480)),
			want: map[string]string{
				"width":      "640",
				"height":     "480",
				"bit_depth":  "8",
				"color_type": "6",
			},
		},
		{
			name: "text chunks keep prefixes",
			data: tu.BuildPNG(
				tu.IHDR(1, 1),
				tu.Text("parameters", "a cat, best quality"),
				tu.CompressedText("Comment", "compressed comment"),
				tu.InternationalText("Title", "en", "Title", "hello", false),
				tu.InternationalText("Author", "", "", "zipped author", true),
				tu.Physical(2835, 2835, 1),
			),
			want: map[string]string{
				"tEXt:parameters":        "a cat, best quality",
				"zTXt:Comment":           "compressed comment",
				"iTXt:Title":             "hello",
				"iTXt:Author":            "zipped author",
				"pHYs:pixels_per_unit_x": "2835",
				"pHYs:unit":              "1",
			},
			absent: []string{"parameters", "Comment"},
		},
		{
			name:      "formatted strips prefixes and keeps first duplicate",
			formatted: true,
			data: tu.BuildPNG(
				tu.Text("Comment", "first"),
				tu.InternationalText("Comment", "", "", "second", false),
				tu.Physical(10, 20, 0),
			),
			want: map[string]string{
				"Comment":           "first",
				"pixels_per_unit_x": "10",
				"pixels_per_unit_y": "20",
			},
			absent: []string{"tEXt:Comment", "iTXt:Comment"},
		},
		{
			name: "latin-1 text is decoded",
			data: tu.BuildPNG(tu.Chunk{Type: "tEXt", Data: []byte("Author\x00Jos\xe9")}),
			want: map[string]string{"tEXt:Author": "José"},
		},
		{
			name: "malformed chunk is skipped",
			data: tu.BuildPNG(
				tu.Chunk{Type: "tEXt", Data: []byte("no separator")},
				tu.Chunk{Type: "IHDR", Data: []byte{1, 2, 3}},
				tu.Text("ok", "yes"),
			),
			want:   map[string]string{"tEXt:ok": "yes"},
			absent: []string{"width"},
		},
		{
			name:    "bad signature",
			data:    []byte("GIF89a not a png"),
			wantErr: ErrNotPNG,
		},
		{
			name:    "empty file",
			data:    nil,
			wantErr: ErrNotPNG,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md, err := newTestExtractor().Read(bytes.NewReader(tt.data), tt.formatted)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Read() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}

			got := md.Strings()
			for k, want := range tt.want {
				if got[k] != want {
					t.Errorf("metadata[%q] = %q, want %q", k, got[k], want)
				}
			}
			for _, k := range tt.absent {
				if _, ok := md[k]; ok {
					t.Errorf("metadata should not contain %q", k)
				}
			}
		})
	}
}

func TestExtractor_ReadCorruption(t *testing.T) {
	t.Run("CRC mismatch skips the chunk", func(t *testing.T) {
		good := tu.EncodeChunk(tu.Text("good", "1"))
		bad := tu.EncodeChunk(tu.Text("bad", "2"))
		bad[len(bad)-1] ^= 0xff

		var data []byte
		data = append(data, tu.Signature...)
		data = append(data, bad...)
		data = append(data, good...)

		md, err := newTestExtractor().Read(bytes.NewReader(data), false)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if _, ok := md["tEXt:bad"]; ok {
			t.Error("chunk with bad CRC should be skipped")
		}
		if md["tEXt:good"] != "1" {
			t.Errorf("expected good chunk to be read, got %v", md)
		}
	})

	t.Run("truncated stream keeps earlier chunks", func(t *testing.T) {
		data := tu.BuildPNG(tu.IHDR(3, 4), tu.Text("k", "v"))
		truncated := data[:len(tu.Signature)+25+5]

		md, err := newTestExtractor().Read(bytes.NewReader(truncated), false)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if md["width"] != uint32(3) {
			t.Errorf("expected width 3, got %v", md["width"])
		}
	})

	t.Run("chunks after IEND are ignored", func(t *testing.T) {
		data := tu.BuildPNG(tu.IHDR(1, 1))
		data = append(data, tu.EncodeChunk(tu.Text("late", "x"))...)

		md, err := newTestExtractor().Read(bytes.NewReader(data), false)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if _, ok := md["tEXt:late"]; ok {
			t.Error("chunk after IEND should be ignored")
		}
	})
}

func TestExtractor_ReadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid file", func(t *testing.T) {
		path := tu.WritePNG(t, dir, "a.png", "sunset")
		md, err := newTestExtractor().ReadFile(path, true)
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if md["Description"] != "sunset" {
			t.Errorf("expected Description sunset, got %v", md["Description"])
		}
	})

	t.Run("package-level reader", func(t *testing.T) {
		path := tu.WritePNG(t, dir, "b.png", "dusk")
		md, err := ReadMetadata(path, false)
		if err != nil {
			t.Fatalf("ReadMetadata() error = %v", err)
		}
		if md["tEXt:Description"] != "dusk" {
			t.Errorf("expected tEXt:Description dusk, got %v", md["tEXt:Description"])
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := newTestExtractor().ReadFile(filepath.Join(dir, "missing.png"), false)
		if err == nil {
			t.Error("ReadFile() expected error for missing file")
		}
	})

	t.Run("not a png", func(t *testing.T) {
		path := tu.WriteFile(t, dir, "fake.png", []byte("hello"))
		_, err := newTestExtractor().ReadFile(path, false)
		if !errors.Is(err, ErrNotPNG) {
			t.Errorf("ReadFile() error = %v, want ErrNotPNG", err)
		}
	})
}

func TestMetadata(t *testing.T) {
	md := Metadata{
		"width":           uint32(10),
		"tEXt:parameters": "prompt",
		"Description":     "desc",
	}

	if keys := md.Keys(); len(keys) != 3 || keys[0] != "Description" {
		t.Errorf("Keys() = %v, want sorted keys", keys)
	}

	if v, ok := md.Lookup("parameters"); !ok || v != "prompt" {
		t.Errorf("Lookup(parameters) = %q, %v", v, ok)
	}
	if v, ok := md.Lookup("missing", "Description"); !ok || v != "desc" {
		t.Errorf("Lookup(missing, Description) = %q, %v", v, ok)
	}
	if _, ok := md.Lookup("nope"); ok {
		t.Error("Lookup(nope) should not be found")
	}
	if md.Strings()["width"] != "10" {
		t.Errorf("Strings()[width] = %q", md.Strings()["width"])
	}
	if d := md.Description(); d != "desc" {
		t.Errorf("Description() = %q, want desc", d)
	}
	if d := (Metadata{"iTXt:Title": "t", "zTXt:Comment": "c"}).Description(); d != "c" {
		t.Errorf("Description() = %q, want the comment before the title", d)
	}
	if d := (Metadata{"width": uint32(1)}).Description(); d != "" {
		t.Errorf("Description() = %q, want empty", d)
	}
}
