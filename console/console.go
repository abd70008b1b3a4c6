package console

/*
Operator console of the simulator.

Lines written to a console are handed over a string channel to a goroutine
owning the output, so the dispatch loop never blocks on a terminal redraw
for longer than the channel hand-off.
*/

// Console - where the simulator reports its status lines
type Console interface {
	WriteConsole(msg string) error
}

// splitLines cuts msg into non empty, newline terminated lines
func splitLines(msg string, emit func(line string)) int {
	n := 0
	start := 0
	for i := 0; i <= len(msg); i++ {
		if i < len(msg) && msg[i] != '\n' {
			continue
		}
		if i > start {
			emit(msg[start:i] + "\n")
			n++
		}
		start = i + 1
	}
	return n
}
