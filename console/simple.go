package console

import (
	"io"
	"sync"
)

// Simple console writing to a stream, stdout in the CLI
type Simple struct {
	consoleOut  chan string // string channel, to which the console data is sent to
	w           io.Writer
	done        sync.WaitGroup
	currentLine int // lines written so far
}

// NewSimple returns a pointer to the new console and starts its writer
func NewSimple(w io.Writer) *Simple {
	c := new(Simple)
	c.consoleOut = make(chan string)
	c.w = w
	c.initSimple()
	return c
}

// initSimple starts the goroutine owning the output stream
func (c *Simple) initSimple() {
	c.done.Add(1)
	go func() {
		defer c.done.Done()
		for s := range c.consoleOut {
			_, _ = io.WriteString(c.w, s)
		}
	}()
}

// WriteConsole displays a string on the console
func (c *Simple) WriteConsole(msg string) error {
	c.currentLine += splitLines(msg, func(line string) {
		c.consoleOut <- line
	})
	return nil
}

// Lines returns the number of lines written
func (c *Simple) Lines() int {
	return c.currentLine
}

// Close flushes the pending lines and stops the writer
func (c *Simple) Close() {
	close(c.consoleOut)
	c.done.Wait()
}
