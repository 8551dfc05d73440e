package engine

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/picklr-io/infraviz/internal/logging"
)

// tailPollInterval is how often the tailer checks an event log for new data.
var tailPollInterval = 100 * time.Millisecond

// tailEvents follows the event log at path while the engine writes it,
// calling fn for each complete event. It returns after done is closed and the
// file has been drained, or when ctx ends.
func tailEvents(ctx context.Context, path string, done <-chan struct{}, fn func(EngineEvent)) error {
	var f *os.File
	for f == nil {
		opened, err := os.Open(path)
		switch {
		case err == nil:
			f = opened
		case !errors.Is(err, os.ErrNotExist):
			return err
		default:
			select {
			case <-done:
				// The engine exited without creating a log.
				return nil
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(tailPollInterval):
			}
		}
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	var partial []byte
	finished := false
	for {
		chunk, err := reader.ReadBytes('\n')
		partial = append(partial, chunk...)
		if err == nil {
			emitLine(partial, fn)
			partial = partial[:0]
			continue
		}
		if !errors.Is(err, io.EOF) {
			return err
		}
		if finished {
			// Writer is gone; a trailing line without newline is still an event.
			emitLine(partial, fn)
			return nil
		}
		select {
		case <-done:
			finished = true
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(tailPollInterval):
		}
	}
}

func emitLine(line []byte, fn func(EngineEvent)) {
	if len(line) == 0 || (len(line) == 1 && line[0] == '\n') {
		return
	}
	ev, err := DecodeEvent(line)
	if err != nil {
		logging.Debug("skipping malformed engine event", "error", err)
		return
	}
	fn(ev)
}
