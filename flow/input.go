package flow

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrInputClosed signals that an InputSource has no more input.
var ErrInputClosed = errors.New("input closed")

// InputSource supplies human input while the loop awaits it. prompt is the
// text to display to the human.
type InputSource interface {
	Next(ctx context.Context, prompt string) (string, error)
}

// InputFunc adapts a function to InputSource.
type InputFunc func(ctx context.Context, prompt string) (string, error)

// Next implements InputSource.
func (f InputFunc) Next(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }

// ChannelInput reads input from ch. A closed channel yields ErrInputClosed.
func ChannelInput(ch <-chan string) InputSource {
	return InputFunc(func(ctx context.Context, _ string) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case s, ok := <-ch:
			if !ok {
				return "", ErrInputClosed
			}
			return s, nil
		}
	})
}

// ReaderInput prints each prompt to w and reads one line from r. End of
// input yields ErrInputClosed.
func ReaderInput(r io.Reader, w io.Writer) InputSource {
	sc := bufio.NewScanner(r)
	return InputFunc(func(ctx context.Context, prompt string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if w != nil {
			if _, err := fmt.Fprintf(w, "%s\n> ", prompt); err != nil {
				return "", err
			}
		}
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", ErrInputClosed
		}
		return sc.Text(), nil
	})
}
