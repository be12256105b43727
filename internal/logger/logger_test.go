package logger

import "testing"

func TestMaskKey(t *testing.T) {
	cases := map[string]string{
		"":                    "",
		"short":               "****",
		"sk-test-key-1234567": "sk-t...4567",
	}
	for in, want := range cases {
		if got := MaskKey(in); got != want {
			t.Errorf("MaskKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNew_Modes(t *testing.T) {
	for _, mode := range []string{"dev", "production"} {
		l, err := New(mode)
		if err != nil {
			t.Fatalf("New(%q): %v", mode, err)
		}
		if l == nil {
			t.Fatalf("New(%q) returned nil logger", mode)
		}
	}
	if OrNop(nil) == nil {
		t.Error("OrNop(nil) returned nil")
	}
}
