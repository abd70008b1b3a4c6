package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/jroimartin/gocui"

	"qmgr/dispatcher"
	"qmgr/system"
)

/*
group all monitor output here: the gocui views refreshed while the
simulator runs, and the same tables printed once in non gui mode.
*/

const refreshEvery = 250 * time.Millisecond

// consoleWriter feeds log lines to the log view
type consoleWriter struct {
	write func(msg string) error
}

func (w consoleWriter) Write(p []byte) (int, error) {
	if err := w.write(string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// writeQueues prints one line per configured queue
func writeQueues(w io.Writer, sys *system.System) {
	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	fmt.Fprintln(tw, "queue\tgroup\tprio\tsource\tclass\tentries\tstatus")
	for _, q := range sys.Queues() {
		id := q.QueueID()
		st := sys.Sim.QueueStatus(id)
		class := q.Class
		if class == "" {
			class = "other"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%d\t%s\n",
			id, id.Group(), q.Priority, q.Source, class, sys.Sim.Entries(id), st.GetFlags())
	}
	tw.Flush()
}

// writeStats prints the dispatcher counters of the configured queues
func writeStats(w io.Writer, sys *system.System) {
	st := sys.Dispatcher.Stats()
	tot := sys.Totals()
	fmt.Fprintf(w, "loop runs %d, table walks %d, pushed %d, popped %d, overflows %d\n",
		st.LoopRuns, st.TableWalks, tot.Pushed, tot.Popped, tot.Overflows)

	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	fmt.Fprintln(tw, "queue\tcallbacks\tlost\tunclaimed\tprio changes\tenabled")
	for _, q := range sys.Queues() {
		s := st.Queues[q.ID]
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%v\n",
			q.ID, s.Callbacks, s.LostInterrupts, s.Unclaimed, s.PriorityChanges, s.NotificationEnabled)
	}
	tw.Flush()
}

// writeLivelock prints the livelock report
func writeLivelock(w io.Writer, rows []dispatcher.LivelockRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "no periodic or sporadic queues")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	fmt.Fprintln(tw, "queue\tclass\tenables\tdisables\tenabled\tcallbacks")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%v\t%d\n",
			r.Queue, r.Class, r.Enables, r.Disables, r.Enabled, r.Callbacks)
	}
	tw.Flush()
}

func writeTrace(w io.Writer, events []system.Event) {
	for i := len(events) - 1; i >= 0; i-- {
		fmt.Fprintln(w, events[i])
	}
}

// updateViews redraws the monitor until ctx is done.
// gocui allows updating the views only through Update.
func updateViews(ctx context.Context, g *gocui.Gui, sys *system.System) {
	ticker := time.NewTicker(refreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		g.Update(func(g *gocui.Gui) error {
			views := []struct {
				name   string
				render func(io.Writer)
			}{
				{"queues", func(w io.Writer) { writeQueues(w, sys) }},
				{"stats", func(w io.Writer) {
					writeStats(w, sys)
					fmt.Fprintln(w)
					writeLivelock(w, sys.Dispatcher.LivelockReport(false))
				}},
				{"trace", func(w io.Writer) { writeTrace(w, sys.Trace.Recent()) }},
			}
			for _, vw := range views {
				v, err := g.View(vw.name)
				if err != nil {
					return err
				}
				v.Clear()
				vw.render(v)
			}
			return nil
		})
	}
}

// gocui layout
func layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	half := maxX / 2

	// up left -> queues
	if v, err := g.SetView("queues", 0, 0, half-1, maxY-14); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Queues"
	}
	// up right -> dispatcher stats
	if v, err := g.SetView("stats", half, 0, maxX-1, maxY-14); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Dispatcher"
	}
	// middle -> recent callbacks
	if v, err := g.SetView("trace", 0, maxY-13, maxX-1, maxY-8); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Callbacks"
	}
	// down -> log
	if v, err := g.SetView("log", 0, maxY-7, maxX-1, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Log"
		v.Autoscroll = true
	}
	return nil
}

func quit(g *gocui.Gui, v *gocui.View) error {
	return gocui.ErrQuit
}
