// Package display renders the notification feed as text. It is a pure
// subscriber: the sessions do not know it exists.
package display

import (
	"fmt"
	"io"
	"sync"

	"github.com/vendtech/vendcore/internal/session"
)

type Text struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
}

func NewText(w io.Writer, prefix string) *Text {
	return &Text{w: w, prefix: prefix}
}

// Notify implements session.NotifyFunc when passed as a method value.
func (d *Text) Notify(e session.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.w, "%s%s\n", d.prefix, e.String())
}
