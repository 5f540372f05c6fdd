package pipeline

import (
	"path/filepath"
	"testing"

	tu "github.com/desertthunder/pngx/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"b.png", "A.PNG", "notes.txt", "sub/c.png", "sub/deeper/d.png", "sub/e.jpg"} {
		tu.WriteFile(t, root, name, []byte("x"))
	}

	rel := func(paths []string) []string {
		out := make([]string, len(paths))
		for i, p := range paths {
			r, err := filepath.Rel(root, p)
			require.NoError(t, err)
			out[i] = filepath.ToSlash(r)
		}
		return out
	}

	tests := []struct {
		name      string
		recursive bool
		exts      []string
		want      []string
	}{
		{
			name: "immediate children only",
			want: []string{"A.PNG", "b.png"},
		},
		{
			name:      "full subtree in lexical order",
			recursive: true,
			want:      []string{"A.PNG", "b.png", "sub/c.png", "sub/deeper/d.png"},
		},
		{
			name:      "custom extensions without dot",
			recursive: true,
			exts:      []string{"jpg", ".TXT"},
			want:      []string{"notes.txt", "sub/e.jpg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Discover(root, tt.recursive, tt.exts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rel(got))

			again, err := Discover(root, tt.recursive, tt.exts)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}

	t.Run("missing root", func(t *testing.T) {
		_, err := Discover(filepath.Join(root, "nope"), false, nil)
		assert.Error(t, err)
		_, err = Discover(filepath.Join(root, "nope"), true, nil)
		assert.Error(t, err)
	})
}
