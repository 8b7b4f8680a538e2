package tokens

import (
	"testing"

	"FrameTimeline/pkg/timing"
)

func TestIssueReturnsMonotonicTokens(t *testing.T) {
	l := NewLedger()
	prev := l.Issue(timing.TimelineItem{})
	for i := 0; i < 10; i++ {
		token := l.Issue(timing.TimelineItem{})
		if token <= prev {
			t.Fatalf("token %d not greater than previous %d", token, prev)
		}
		prev = token
	}
}

func TestLookupWithinRetention(t *testing.T) {
	now := timing.Nanos(0)
	l := NewLedgerWithClock(func() timing.Nanos { return now })

	predictions := timing.TimelineItem{Start: 10, End: 20, Present: 30}
	token := l.Issue(predictions)

	got, ok := l.Lookup(token)
	if !ok {
		t.Fatal("expected lookup to succeed immediately after issue")
	}
	if got != predictions {
		t.Errorf("got %+v; want %+v", got, predictions)
	}

	now = MaxRetention - 1
	if _, ok := l.Lookup(token); !ok {
		t.Error("expected lookup to succeed just inside the retention window")
	}

	now = MaxRetention
	if _, ok := l.Lookup(token); ok {
		t.Error("expected lookup to fail once the entry aged out")
	}
}

func TestLookupUnknownToken(t *testing.T) {
	l := NewLedger()
	if _, ok := l.Lookup(12345); ok {
		t.Error("expected lookup of unissued token to fail")
	}
	if _, ok := l.Lookup(InvalidToken); ok {
		t.Error("expected lookup of invalid token to fail")
	}
}

func TestIssueEvictsOnlyAgedEntries(t *testing.T) {
	now := timing.Nanos(0)
	l := NewLedgerWithClock(func() timing.Nanos { return now })

	old1 := l.Issue(timing.TimelineItem{Start: 1})
	old2 := l.Issue(timing.TimelineItem{Start: 2})

	now = MaxRetention / 2
	young := l.Issue(timing.TimelineItem{Start: 3})

	now = MaxRetention
	fresh := l.Issue(timing.TimelineItem{Start: 4})

	if _, ok := l.Lookup(old1); ok {
		t.Error("expected first aged entry to be evicted")
	}
	if _, ok := l.Lookup(old2); ok {
		t.Error("expected second aged entry to be evicted")
	}
	if _, ok := l.Lookup(young); !ok {
		t.Error("expected entry inside the window to survive eviction")
	}
	if _, ok := l.Lookup(fresh); !ok {
		t.Error("expected freshly issued entry to be retained")
	}
	if len(l.entries) != 2 {
		t.Errorf("expected 2 retained entries, got %d", len(l.entries))
	}
}
