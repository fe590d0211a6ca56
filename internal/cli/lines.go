package cli

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// Lines pumps r line by line into a channel that is closed on EOF or read
// error. A single pump can serve several consoles in turn, so a reload never
// leaves a second reader blocked on the same input.
func Lines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			ch <- strings.TrimRight(scanner.Text(), "\r")
		}
	}()
	return ch
}

// readLine waits for the next line. io.EOF means the input is exhausted.
func readLine(ctx context.Context, lines <-chan string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	}
}
