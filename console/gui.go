package console

import (
	"fmt"

	"github.com/jroimartin/gocui"
)

// Gui console appending to a gocui view
type Gui struct {
	consoleOut  chan string // string channel, to which the console data is sent to
	g           *gocui.Gui  // main gocui GUI object
	view        string      // name of the view receiving the lines
	currentLine int         // counter to keep the position of the cursor
}

// NewGui returns a pointer to the new console and starts its writer.
// The view must exist once the gui main loop runs.
func NewGui(g *gocui.Gui, view string) *Gui {
	c := new(Gui)
	c.consoleOut = make(chan string)
	c.g = g
	c.view = view
	c.initGui()
	return c
}

// initGui forwards the lines to the gui thread. gocui only allows view
// updates through Update.
func (c *Gui) initGui() {
	go func() {
		for s := range c.consoleOut {
			line := s
			c.g.Update(func(g *gocui.Gui) error {
				v, err := g.View(c.view)
				if err != nil {
					return err
				}
				v.Autoscroll = true
				fmt.Fprint(v, line)
				return nil
			})
		}
	}()
}

// WriteConsole displays a string on the console
func (c *Gui) WriteConsole(msg string) error {
	c.currentLine += splitLines(msg, func(line string) {
		c.consoleOut <- line
	})
	return nil
}

// Close stops the writer
func (c *Gui) Close() {
	close(c.consoleOut)
}
