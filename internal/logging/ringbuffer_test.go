package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRingBuffer(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		writes []string
		want   string
	}{
		{"partial", 64, []string{"hello"}, "hello"},
		{"exact fill", 5, []string{"hello"}, "hello"},
		{"wraps", 10, []string{"abcdefghij", "12345"}, "fghij12345"},
		{"split write", 8, []string{"abcdef", "1234"}, "cdef1234"},
		{"oversized write", 5, []string{"0123456789"}, "56789"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := NewRingBuffer(tt.size)
			for _, w := range tt.writes {
				n, err := rb.Write([]byte(w))
				if err != nil || n != len(w) {
					t.Fatalf("Write(%q) = %d, %v", w, n, err)
				}
			}
			if got := string(rb.Bytes()); got != tt.want {
				t.Errorf("Bytes() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRingBufferDump(t *testing.T) {
	rb := NewRingBuffer(16)
	_, _ = rb.Write([]byte("line one\n"))

	path := filepath.Join(t.TempDir(), "dump")
	if err := rb.DumpToFile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "line one\n" {
		t.Errorf("dump = %q", data)
	}
}
