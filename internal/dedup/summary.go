package dedup

import "time"

// Span is a run of consecutive rejected frames that duplicate the accepted
// frame at Anchor.
type Span struct {
	Anchor time.Duration
	First  time.Duration
	Last   time.Duration
	Count  int
}

// Summary aggregates the decisions of one run.
type Summary struct {
	Frames    int
	Accepted  int
	Rejected  int
	Threshold int
	Spans     []Span

	anchor time.Duration
	inSpan bool
}

// Add folds a decision into the summary. Decisions must arrive in order.
func (s *Summary) Add(d Decision) {
	s.Frames++
	ts := d.Frame.Timestamp
	if d.Accepted {
		s.Accepted++
		s.anchor = ts
		s.inSpan = false
		return
	}
	s.Rejected++
	if s.inSpan {
		last := &s.Spans[len(s.Spans)-1]
		last.Last = ts
		last.Count++
		return
	}
	s.Spans = append(s.Spans, Span{Anchor: s.anchor, First: ts, Last: ts, Count: 1})
	s.inSpan = true
}
