package app

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Context carries the caller's cancellation and output preferences into a
// feature handler
type Context struct {
	context.Context

	// Output preferences
	OutputFormat string
	Verbose      bool
	Quiet        bool

	// Progress reporting
	ProgressCallback func(message string, percent int)

	// Confirm asks the user a yes/no question. Nil means no one can answer.
	Confirm func(prompt string) (bool, error)

	// Stderr receives log and error messages
	Stderr io.Writer
}

// NewContext creates a new application context
func NewContext() *Context {
	return &Context{
		Context:      context.Background(),
		OutputFormat: "table",
		Stderr:       os.Stderr,
	}
}

// SetProgress sets the progress callback function
func (c *Context) SetProgress(callback func(string, int)) {
	c.ProgressCallback = callback
}

// Progress reports progress if callback is set
func (c *Context) Progress(message string, percent int) {
	if c.ProgressCallback != nil {
		c.ProgressCallback(message, percent)
	}
}

func (c *Context) stderr() io.Writer {
	if c.Stderr == nil {
		return os.Stderr
	}
	return c.Stderr
}

// Log writes a message when verbose and not quiet
func (c *Context) Log(message string) {
	if !c.Quiet && c.Verbose {
		fmt.Fprintln(c.stderr(), message)
	}
}

// Error writes an error message unless quiet
func (c *Context) Error(message string) {
	if !c.Quiet {
		fmt.Fprintln(c.stderr(), "Error:", message)
	}
}
