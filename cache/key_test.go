package cache

import (
	"strings"
	"testing"
)

func TestEncodeKeyDistinguishesLossyNames(t *testing.T) {
	// Keys that collapse together under naive character replacement.
	pairs := [][2]string{
		{"verse:John 3:16", "verse_John 3_16"},
		{"a/b", "a_b"},
		{"search:love", "search:Love"},
	}
	for _, p := range pairs {
		if EncodeKey(p[0]) == EncodeKey(p[1]) {
			t.Fatalf("EncodeKey(%q) == EncodeKey(%q)", p[0], p[1])
		}
	}
}

func TestEncodeKeyIsStable(t *testing.T) {
	a := EncodeKey("verse:John 3:16")
	if a != EncodeKey("verse:John 3:16") {
		t.Fatalf("EncodeKey not stable for %q", "verse:John 3:16")
	}
	if len(a) != 64 {
		t.Fatalf("len(EncodeKey) = %d, want 64", len(a))
	}
}

func FuzzEncodeKey(f *testing.F) {
	f.Add("verse:John 3:16")
	f.Add("")
	f.Add("../../etc/passwd")
	f.Add("search:\x00\xff")
	f.Add(strings.Repeat("x", 4096))

	f.Fuzz(func(t *testing.T, key string) {
		got := EncodeKey(key)
		if len(got) != 64 {
			t.Fatalf("EncodeKey(%q) length = %d, want 64", key, len(got))
		}
		if strings.Trim(got, "0123456789abcdef") != "" {
			t.Fatalf("EncodeKey(%q) = %q, not lowercase hex", key, got)
		}
		if EncodeKey(key) != got {
			t.Fatalf("EncodeKey(%q) not deterministic", key)
		}
		if EncodeKey(key+"\x00") == got {
			t.Fatalf("EncodeKey(%q) collides with its NUL-extended form", key)
		}
	})
}
