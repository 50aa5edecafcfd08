package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

var prefix = color.New(color.FgCyan, color.Bold).SprintFunc()

// Notifier prints user-facing messages, one per line, prefixed with the tool name
type Notifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewNotifier creates a notifier writing to w
func NewNotifier(w io.Writer) *Notifier {
	return &Notifier{w: w}
}

// Info prints an informational message
func (n *Notifier) Info(msg string) {
	n.print(prefix("Env Watcher:"), msg)
}

// Warn prints a warning
func (n *Notifier) Warn(msg string) {
	n.print(prefix("Env Watcher:"), yellow(msg))
}

// Error prints an error message
func (n *Notifier) Error(msg string) {
	n.print(prefix("Env Watcher:"), red(msg))
}

func (n *Notifier) print(p, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.w, "%s %s\n", p, msg)
}
