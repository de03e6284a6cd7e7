package slides

import (
	"testing"
	"time"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
		file string
	}{
		{0, "0:00", "0-00-00"},
		{1500 * time.Millisecond, "0:01", "0-00-01"},
		{65 * time.Second, "1:05", "0-01-05"},
		{59*time.Minute + 59*time.Second, "59:59", "0-59-59"},
		{time.Hour, "1:00:00", "1-00-00"},
		{3725*time.Second + 900*time.Millisecond, "1:02:05", "1-02-05"},
		{-time.Second, "0:00", "0-00-00"},
	}
	for _, tt := range tests {
		if got := FormatTimestamp(tt.in); got != tt.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tt.in, got, tt.want)
		}
		if got := FormatFileTimestamp(tt.in); got != tt.file {
			t.Errorf("FormatFileTimestamp(%v) = %q, want %q", tt.in, got, tt.file)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"45", 45 * time.Second},
		{"2:05", 125 * time.Second},
		{"1:02:05", 3725 * time.Second},
		{"1-02-05", 3725 * time.Second},
		{" 0:00 ", 0},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	for _, bad := range []string{"", "a:b", "1:2:3:4", "-5", "1::2"} {
		if _, err := ParseTimestamp(bad); err == nil {
			t.Errorf("ParseTimestamp(%q) should fail", bad)
		}
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, secs := range []int{0, 7, 61, 3599, 3600, 86399} {
		d := time.Duration(secs) * time.Second
		got, err := ParseTimestamp(FormatTimestamp(d))
		if err != nil || got != d {
			t.Fatalf("round trip %v = %v, %v", d, got, err)
		}
	}
}
