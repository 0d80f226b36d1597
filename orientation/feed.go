package orientation

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"
)

const feedPollInterval = 50 * time.Millisecond

// FeedSource follows a file or FIFO of orientation lines, one event per line.
// Blank lines and lines starting with '#' are ignored, as are lines that fail to parse.
type FeedSource struct {
	Path string
}

func (f FeedSource) Subscribe(ctx context.Context, fn func(Event)) (Subscription, error) {
	if f.Path == "" {
		return nil, ErrUnavailable
	}
	if _, err := os.Stat(f.Path); err != nil {
		return nil, classify(err)
	}

	// Opening a FIFO blocks until a writer appears.
	type opened struct {
		file *os.File
		err  error
	}
	ch := make(chan opened, 1)
	go func() {
		file, err := os.Open(f.Path)
		ch <- opened{file, err}
	}()

	var file *os.File
	select {
	case o := <-ch:
		if o.err != nil {
			return nil, classify(o.err)
		}
		file = o.file
	case <-ctx.Done():
		go func() {
			if o := <-ch; o.file != nil {
				o.file.Close()
			}
		}()
		return nil, ctx.Err()
	}

	sub := &feedSubscription{
		file: file,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go sub.run(fn)
	return sub, nil
}

type feedSubscription struct {
	file *os.File
	once sync.Once
	stop chan struct{}
	done chan struct{}
}

func (s *feedSubscription) run(fn func(Event)) {
	defer close(s.done)
	r := bufio.NewReader(s.file)
	var partial strings.Builder
	for {
		chunk, err := r.ReadString('\n')
		partial.WriteString(chunk)
		if err == nil {
			s.emit(partial.String(), fn)
			partial.Reset()
			continue
		}
		if !errors.Is(err, io.EOF) {
			return
		}
		select {
		case <-s.stop:
			return
		case <-time.After(feedPollInterval):
		}
	}
}

func (s *feedSubscription) emit(line string, fn func(Event)) {
	select {
	case <-s.stop:
		return
	default:
	}
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	e, err := ParseEvent(line)
	if err != nil {
		return
	}
	fn(e)
}

func (s *feedSubscription) Close() {
	s.once.Do(func() {
		close(s.stop)
		s.file.Close()
	})
	<-s.done
}

func classify(err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	default:
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}
