package utils

import (
	"bytes"
	"testing"
)

func TestNewSockPair(t *testing.T) {
	parent, child, err := NewSockPair("test")
	if err != nil {
		t.Fatal(err)
	}
	defer parent.Close()
	defer child.Close()

	msg := []byte("hello")
	if _, err := parent.Write(msg); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, len(msg))
	if _, err := child.Read(buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, msg) {
		t.Errorf("read %q, want %q", buf, msg)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	v := struct {
		Name string `json:"name"`
	}{Name: "test"}
	if err := WriteJSON(&buf, v); err != nil {
		t.Fatal(err)
	}
	if buf.String() != `{"name":"test"}` {
		t.Errorf("got %q", buf.String())
	}
}

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"", ""},
		{"/", "/"},
		{"/a/b/c", "/a/b/c"},
		{"/a/b/../c", "/a/c"},
		{"../../a", "a"},
		{"../../../../b", "b"},
		{"a/../b", "b"},
		{"./a//b", "a/b"},
	}
	for _, tc := range tests {
		if got := CleanPath(tc.in); got != tc.out {
			t.Errorf("CleanPath(%q) = %q, want %q", tc.in, got, tc.out)
		}
	}
}
