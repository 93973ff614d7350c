package input

import (
	"bufio"
	"context"
	"errors"
	"io"
)

// ReadLine reads one line from rd, giving up when ctx is done. The trailing
// newline is kept. Pass the same *bufio.Reader on every call to read
// successive lines of one stream.
func ReadLine(ctx context.Context, rd io.Reader) (string, error) {
	reader, ok := rd.(*bufio.Reader)
	if !ok {
		reader = bufio.NewReader(rd)
	}

	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) && line != "" {
			err = nil
		}
		done <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.line, r.err
	}
}
