// Package orientation maps three-axis device orientation onto a motion level.
package orientation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrPermissionDenied means the host refused access to the orientation feed.
	ErrPermissionDenied = errors.New("orientation permission denied")
	// ErrUnavailable means no orientation feed exists.
	ErrUnavailable = errors.New("orientation sensor unavailable")
)

// Event is one orientation reading in degrees.
type Event struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
}

// Level is (|alpha|+|beta|+|gamma|)/180 clamped to [0,1].
func Level(e Event) float64 {
	sum := math.Abs(e.Alpha) + math.Abs(e.Beta) + math.Abs(e.Gamma)
	if math.IsNaN(sum) {
		return 0
	}
	return min(1, max(0, sum/180))
}

type Subscription interface {
	Close()
}

// Source delivers events to fn until the subscription is closed. Subscribe may
// block while the platform asks for permission; cancelling ctx abandons the wait.
type Source interface {
	Subscribe(ctx context.Context, fn func(Event)) (Subscription, error)
}

// ParseEvent accepts "alpha beta gamma" (space or comma separated) or a JSON object.
func ParseEvent(line string) (Event, error) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "{") {
		var e Event
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return Event{}, err
		}
		return e, nil
	}
	fields := strings.FieldsFunc(line, func(r rune) bool { return r == ' ' || r == '\t' || r == ',' })
	if len(fields) != 3 {
		return Event{}, fmt.Errorf("want 3 axes, got %d", len(fields))
	}
	var axes [3]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Event{}, fmt.Errorf("axis %d: %w", i, err)
		}
		axes[i] = v
	}
	return Event{Alpha: axes[0], Beta: axes[1], Gamma: axes[2]}, nil
}
