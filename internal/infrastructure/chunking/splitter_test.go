package chunking

import (
	"strings"
	"testing"
)

func TestSplitShortText(t *testing.T) {
	s := NewSplitter(100, 20)
	chunks := s.Split("short text")
	if len(chunks) != 1 || chunks[0] != "short text" {
		t.Fatalf("unexpected chunks %v", chunks)
	}
}

func TestSplitOverlap(t *testing.T) {
	s := NewSplitter(10, 4)
	chunks := s.Split(strings.Repeat("abcdef", 5))
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	// Consecutive chunks share the overlap region.
	first := []rune(chunks[0])
	second := []rune(chunks[1])
	if string(first[len(first)-4:]) != string(second[:4]) {
		t.Fatalf("expected 4-rune overlap between %q and %q", chunks[0], chunks[1])
	}
}

func TestSplitEmpty(t *testing.T) {
	s := NewSplitter(0, -1)
	if got := s.Split(""); got != nil {
		t.Fatalf("expected nil for empty text, got %v", got)
	}
	if s.ChunkSize != 1200 {
		t.Fatalf("expected default chunk size, got %d", s.ChunkSize)
	}
}

func TestSplitOverlapClamped(t *testing.T) {
	s := NewSplitter(8, 100)
	if s.Overlap >= s.ChunkSize {
		t.Fatalf("overlap %d not clamped below chunk size %d", s.Overlap, s.ChunkSize)
	}
}
