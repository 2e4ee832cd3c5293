package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
)

func main() {
	a := &app{
		stdin:  os.Stdin,
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		errOut: os.Stderr,
	}
	err := NewRootCmd(a).Execute()
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

const (
	exitError = 1
	// exitAuth means no authenticated Teams session could be established.
	exitAuth = 2
)

type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string  { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	return exitError
}
