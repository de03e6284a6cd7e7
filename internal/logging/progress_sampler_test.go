package logging

import "testing"

func TestProgressSamplerDefaults(t *testing.T) {
	s := NewProgressSampler(0)
	if s.bucketSize != 10 {
		t.Fatalf("bucketSize = %v, want 10", s.bucketSize)
	}
	var nilSampler *ProgressSampler
	if !nilSampler.ShouldLog("dedup", 1, 2) {
		t.Fatal("nil sampler should always log")
	}
	nilSampler.Reset()
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(25)
	steps := []struct {
		done, total int
		want        bool
	}{
		{0, 100, true},
		{10, 100, false},
		{24, 100, false},
		{25, 100, true},
		{30, 100, false},
		{99, 100, true},
		{100, 100, true},
		{120, 100, false},
	}
	for _, step := range steps {
		if got := s.ShouldLog("dedup", step.done, step.total); got != step.want {
			t.Fatalf("ShouldLog(%d/%d) = %v, want %v", step.done, step.total, got, step.want)
		}
	}
}

func TestProgressSamplerStageChangeResetsBucket(t *testing.T) {
	s := NewProgressSampler(50)
	if !s.ShouldLog("extract", 60, 100) {
		t.Fatal("first event should log")
	}
	if !s.ShouldLog("dedup", 0, 100) {
		t.Fatal("stage change should log")
	}
	if s.ShouldLog("dedup", 10, 100) {
		t.Fatal("same bucket should not log")
	}
	if s.ShouldLog("dedup", 10, 0) {
		t.Fatal("unknown total without stage change should not log")
	}
	s.Reset()
	if !s.ShouldLog("dedup", 10, 100) {
		t.Fatal("reset should allow logging again")
	}
}
