package speech

import (
	"reflect"
	"strings"
	"testing"
)

func TestSentenceBufferRoundTrip(t *testing.T) {
	b := NewSentenceBuffer("$null$", 10)

	var got []string
	got = append(got, b.Write("Hello there. $null$General Kenobi!")...)
	got = append(got, b.Flush()...)

	want := []string{"Hello there.", "General Kenobi!"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestSentenceBufferSentinelSplitAcrossFragments(t *testing.T) {
	b := NewSentenceBuffer("$null$", 10)

	var got []string
	for _, frag := range []string{"Hi the", "re. $nu", "ll$How are ", "you?"} {
		got = append(got, b.Write(frag)...)
	}
	got = append(got, b.Flush()...)

	want := []string{"Hi there.", "How are you?"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	for _, u := range got {
		if strings.Contains(u, "$null$") {
			t.Errorf("Sentinel leaked into emitted text: %q", u)
		}
	}
}

func TestSentenceBufferWordLimit(t *testing.T) {
	b := NewSentenceBuffer("$null$", 3)

	got := b.Write("one two three four")
	if len(got) != 1 || got[0] != "one two three" {
		t.Errorf("Expected word-limit cut [one two three], got %v", got)
	}

	rest := b.Flush()
	if len(rest) != 1 || rest[0] != "four" {
		t.Errorf("Expected flushed tail [four], got %v", rest)
	}
}

func TestSentenceBufferFlushUnterminatedTail(t *testing.T) {
	b := NewSentenceBuffer("$null$", 10)

	if got := b.Write("and that was the end"); len(got) != 0 {
		t.Errorf("Expected no utterances before flush, got %v", got)
	}
	got := b.Flush()
	if len(got) != 1 || got[0] != "and that was the end" {
		t.Errorf("Expected flushed tail, got %v", got)
	}
}

func TestSentenceBufferSentinelOnly(t *testing.T) {
	b := NewSentenceBuffer("$null$", 10)

	if got := b.Write("$null$"); len(got) != 0 {
		t.Errorf("Expected nothing from sentinel-only input, got %v", got)
	}
	if got := b.Flush(); len(got) != 0 {
		t.Errorf("Expected nothing from flush after sentinel-only input, got %v", got)
	}
}

func TestSentenceBufferPartialSentinelAtStreamEnd(t *testing.T) {
	b := NewSentenceBuffer("$null$", 10)

	if got := b.Write("wait $nu"); len(got) != 0 {
		t.Errorf("Expected held-back tail, got %v", got)
	}
	got := b.Flush()
	if len(got) != 1 || got[0] != "wait $nu" {
		t.Errorf("Expected held tail restored at flush, got %v", got)
	}
}

func TestCleanText(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"hello\nworld", "hello world"},
		{"too    many   spaces", "too many spaces"},
		{"emoji 🎉 stripped!", "emoji stripped!"},
		{"  trimmed  ", "trimmed"},
		{"keep $#?!.,;:\"' these", "keep $#?!.,;:\"' these"},
	}
	for _, c := range cases {
		if got := CleanText(c.in); got != c.want {
			t.Errorf("CleanText(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
