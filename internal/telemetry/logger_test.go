package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(start time.Time, step time.Duration) func() time.Time {
	t := start
	return func() time.Time {
		now := t
		t = t.Add(step)
		return now
	}
}

func TestLogger_AppendOrderAndTimestamps(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	l := NewLogger(fixedClock(start, time.Second))

	l.Log(EventMount, Payload{})
	l.Log(EventOptionSelect, Payload{StageID: "ST1", OptionID: "A"})
	l.Log(EventSubmitStage, Payload{StageID: "ST1", OptionID: "A"})

	got := l.All()
	require.Len(t, got, 3)
	assert.Equal(t, EventMount, got[0].Type)
	assert.Equal(t, EventOptionSelect, got[1].Type)
	assert.Equal(t, "A", got[1].Payload.OptionID)
	assert.Equal(t, start.Add(2*time.Second), got[2].Timestamp)
}

func TestLogger_AllReturnsCopy(t *testing.T) {
	l := NewLogger(nil)
	l.Log(EventMount, Payload{})

	snap := l.All()
	snap[0].Type = EventBlur

	if l.All()[0].Type != EventMount {
		t.Error("mutating the returned slice must not change the log")
	}
}

func TestLogger_WatchCapturesFocusAndReleases(t *testing.T) {
	l := NewLogger(nil)
	src := NewChannelSource()

	release := l.Watch(context.Background(), src)
	require.Equal(t, 1, src.Subscribers())

	src.Blur()
	src.Focus()
	require.Eventually(t, func() bool { return l.Len() == 2 }, time.Second, 5*time.Millisecond)

	release()
	release() // idempotent
	assert.Equal(t, 0, src.Subscribers())

	src.Blur()
	time.Sleep(10 * time.Millisecond)
	entries := l.All()
	assert.Len(t, entries, 2)
	assert.Equal(t, EventBlur, entries[0].Type)
	assert.Equal(t, EventFocus, entries[1].Type)
}

func TestLogger_ReleaseKeepsBufferedEvents(t *testing.T) {
	for i := 0; i < 500; i++ {
		l := NewLogger(nil)
		src := NewChannelSource()

		release := l.Watch(context.Background(), src)
		src.Blur()
		release()

		if n := Count(l.All(), EventBlur); n != 1 {
			t.Fatalf("run %d: logged %d blurs, want 1", i, n)
		}
	}
}

func TestLogger_WatchStopsOnContextCancel(t *testing.T) {
	l := NewLogger(nil)
	src := NewChannelSource()
	ctx, cancel := context.WithCancel(context.Background())

	release := l.Watch(ctx, src)
	cancel()
	release()
	assert.Equal(t, 0, src.Subscribers())
}

func TestLogger_WatchNilSource(t *testing.T) {
	l := NewLogger(nil)
	release := l.Watch(context.Background(), nil)
	release()
	assert.Zero(t, l.Len())
}

func TestCount(t *testing.T) {
	entries := []Entry{{Type: EventBlur}, {Type: EventFocus}, {Type: EventBlur}}
	if got := Count(entries, EventBlur); got != 2 {
		t.Errorf("Count(blur) = %d, want 2", got)
	}
}
