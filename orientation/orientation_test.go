package orientation

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestLevel(t *testing.T) {
	cases := []struct {
		e    Event
		want float64
	}{
		{Event{}, 0},
		{Event{Alpha: 90}, 0.5},
		{Event{Alpha: -30, Beta: 30, Gamma: -30}, 0.5},
		{Event{Alpha: 360, Beta: 180, Gamma: 90}, 1},
		{Event{Alpha: math.NaN()}, 0},
	}
	for _, c := range cases {
		if got := Level(c.e); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("Level(%+v) = %v, want %v", c.e, got, c.want)
		}
	}
}

func TestParseEvent(t *testing.T) {
	e, err := ParseEvent("10 -20.5 30")
	if err != nil {
		t.Fatal(err)
	}
	if e != (Event{10, -20.5, 30}) {
		t.Errorf("got %+v", e)
	}

	e, err = ParseEvent("1,2,3")
	if err != nil {
		t.Fatal(err)
	}
	if e != (Event{1, 2, 3}) {
		t.Errorf("got %+v", e)
	}

	e, err = ParseEvent(`{"alpha": 5, "beta": 6, "gamma": 7}`)
	if err != nil {
		t.Fatal(err)
	}
	if e != (Event{5, 6, 7}) {
		t.Errorf("got %+v", e)
	}

	for _, bad := range []string{"", "1 2", "a b c", "{nope"} {
		if _, err := ParseEvent(bad); err == nil {
			t.Errorf("ParseEvent(%q) accepted", bad)
		}
	}
}

type collector struct {
	mu     sync.Mutex
	levels []float64
}

func (c *collector) add(e Event) {
	c.mu.Lock()
	c.levels = append(c.levels, Level(e))
	c.mu.Unlock()
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.levels)
}

func TestFeedSourceFollowsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed")
	if err := os.WriteFile(path, []byte("# header\n90 0 0\n\njunk\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var c collector
	sub, err := FeedSource{Path: path}.Subscribe(context.Background(), c.add)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	waitFor(t, func() bool { return c.count() == 1 })

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString(`{"alpha": 180}` + "\n")
	f.Close()

	waitFor(t, func() bool { return c.count() == 2 })
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.levels[0] != 0.5 || c.levels[1] != 1 {
		t.Errorf("levels = %v", c.levels)
	}
}

func TestFeedSourceCloseStopsDelivery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	var c collector
	sub, err := FeedSource{Path: path}.Subscribe(context.Background(), c.add)
	if err != nil {
		t.Fatal(err)
	}
	sub.Close()
	sub.Close()

	os.WriteFile(path, []byte("1 2 3\n"), 0o644)
	time.Sleep(3 * feedPollInterval)
	if c.count() != 0 {
		t.Errorf("received %d events after Close", c.count())
	}
}

func TestFeedSourceMissing(t *testing.T) {
	_, err := FeedSource{Path: filepath.Join(t.TempDir(), "none")}.Subscribe(context.Background(), func(Event) {})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
	_, err = FeedSource{}.Subscribe(context.Background(), func(Event) {})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("empty path err = %v, want ErrUnavailable", err)
	}
}

func TestFeedSourcePermission(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file modes")
	}
	path := filepath.Join(t.TempDir(), "feed")
	if err := os.WriteFile(path, nil, 0o000); err != nil {
		t.Fatal(err)
	}
	_, err := FeedSource{Path: path}.Subscribe(context.Background(), func(Event) {})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestFakeSource(t *testing.T) {
	src := NewFakeSource()
	var c collector
	sub, err := src.Subscribe(context.Background(), c.add)
	if err != nil {
		t.Fatal(err)
	}
	src.Emit(Event{Beta: 45})
	if c.count() != 1 || src.Active() != 1 {
		t.Fatalf("count=%d active=%d", c.count(), src.Active())
	}
	sub.Close()
	src.Emit(Event{Beta: 45})
	if c.count() != 1 || src.Active() != 0 {
		t.Errorf("count=%d active=%d after Close", c.count(), src.Active())
	}

	src.Err = ErrPermissionDenied
	if _, err := src.Subscribe(context.Background(), c.add); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("err = %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
