package storagegate_test

import (
	"testing"
	"unicode/utf8"

	"github.com/agdev/storagegate"
)

func TestIsValidRelativeKey(t *testing.T) {
	// Create a key with invalid UTF-8 (without embedding raw invalid bytes in source)
	invalidUTF8 := string([]byte{'a', 0xff, 'b'})

	tt := []struct {
		Name string
		Key  string
		Want bool
	}{
		// Basics
		{Name: "root", Key: "/", Want: false},
		{Name: "empty", Key: "", Want: false},
		{Name: "absolute", Key: "/some/path", Want: false},
		{Name: "ends with slash", Key: "some/path/", Want: false},

		// Double dots anywhere are invalid
		{Name: "double dots segment", Key: "../", Want: false},
		{Name: "double dots in middle segment", Key: "a/../b", Want: false},
		{Name: "double dots at end", Key: "a/..", Want: false},
		{Name: "double dots in filename", Key: "a/b..c", Want: false},
		{Name: "escape group prefix", Key: "../../id=other/file.bin", Want: false},

		// Single dot segments are invalid
		{Name: "single dot segment", Key: "a/./b", Want: false},
		{Name: "leading single dot segment", Key: "./a", Want: false},
		{Name: "trailing single dot segment", Key: "a/.", Want: false},
		{Name: "single dot only", Key: ".", Want: false},

		// Double slashes invalid
		{Name: "double slash", Key: "a//b", Want: false},

		// Forbidden characters
		{Name: "contains space", Key: "some path/file.ext", Want: false},
		{Name: "contains tab", Key: "some\tpath/file.ext", Want: false},
		{Name: "contains newline", Key: "some\npath/file.ext", Want: false},
		{Name: "contains backslash", Key: `some\path/file.ext`, Want: false},
		{Name: "contains hash", Key: "some/path#frag", Want: false},
		{Name: "contains question mark", Key: "some/path?x=1", Want: false},
		{Name: "contains tilde", Key: "some/~path/file.ext", Want: false},

		// Control chars / NUL
		{Name: "contains NUL", Key: "some\x00path/file.ext", Want: false},
		{Name: "contains DEL", Key: "some\x7fpath/file.ext", Want: false},
		{Name: "contains control char", Key: "some\x1fpath/file.ext", Want: false},

		{Name: "invalid utf8", Key: invalidUTF8, Want: false},

		// Valid examples
		{Name: "single file", Key: "avatar.png", Want: true},
		{Name: "nested", Key: "frames/0001.jpg", Want: true},
		{Name: "hidden file", Key: ".hidden/file", Want: true},
		{Name: "underscores and dashes", Key: "some_path/with-dash/file_name.ext", Want: true},
		{Name: "percent as literal", Key: "a/%2e/b", Want: true},
		{Name: "unicode", Key: "привет/世界/file.ext", Want: true},
	}

	if utf8.ValidString(invalidUTF8) {
		t.Fatalf("test setup error: invalidUTF8 is unexpectedly valid")
	}

	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			got := storagegate.IsValidRelativeKey(tc.Key)
			if got != tc.Want {
				expected := "valid"
				if !tc.Want {
					expected = "invalid"
				}
				t.Errorf("expected key %q to be %s, got %v", tc.Key, expected, got)
			}
		})
	}
}
