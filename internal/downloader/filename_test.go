package downloader

import (
	"strings"
	"testing"
	"time"
)

func TestSanitizeTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Plain Title", "Plain_Title"},
		{"Test Video: Part 1", "Test_Video_Part_1"},
		{"a/b\\c?d*e", "abcde"},
		{"  spaced  ", "spaced"},
		{"___", "video"},
		{"", "video"},
		{"émigré café", "émigré_café"},
	}
	for _, c := range cases {
		if got := SanitizeTitle(c.in); got != c.want {
			t.Errorf("SanitizeTitle(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSanitizeTitle_caps_length(t *testing.T) {
	got := SanitizeTitle(strings.Repeat("a", 200))
	if len(got) != maxTitleLength {
		t.Errorf("expected %d chars, got %d", maxTitleLength, len(got))
	}
}

func TestUniqueFileName(t *testing.T) {
	now := time.Now()
	name := UniqueFileName("My Clip", "mp4", now)
	if !strings.HasPrefix(name, "My_Clip-") || !strings.HasSuffix(name, ".mp4") {
		t.Errorf("unexpected name: %q", name)
	}
}

func TestUniqueFileName_same_second_distinct(t *testing.T) {
	now := time.Now()
	a := UniqueFileName("Same Title", "mp4", now)
	b := UniqueFileName("Same Title", "mp4", now.Add(time.Nanosecond))
	if a == b {
		t.Errorf("names must differ within the same second: %q", a)
	}
}
