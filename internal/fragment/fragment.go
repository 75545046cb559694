// Package fragment renders ordered lists of generated items and collects
// generated text per output stream.
package fragment

import (
	"strings"

	"github.com/vitebski/scriptdb/pkg/models"
)

// Common separators.
const (
	Comma        = ", "
	CommaNewLine = ",\n"
	NewLine      = "\n"
)

// List is an ordered set of rendered items. Each item is prefixed with Indent
// and items are joined with Sep; the result never ends with Sep.
type List struct {
	Indent string
	Sep    string
	items  []string
}

// NewList returns an empty list with the given indent and separator.
func NewList(indent, sep string) *List {
	return &List{Indent: indent, Sep: sep}
}

// Add appends items in order.
func (l *List) Add(items ...string) *List {
	l.items = append(l.items, items...)
	return l
}

// Len returns the number of items.
func (l *List) Len() int {
	return len(l.items)
}

// Empty reports whether the list has no items.
func (l *List) Empty() bool {
	return len(l.items) == 0
}

// String renders the list.
func (l *List) String() string {
	if len(l.items) == 0 {
		return ""
	}
	var b strings.Builder
	for i, item := range l.items {
		if i > 0 {
			b.WriteString(l.Sep)
		}
		b.WriteString(l.Indent)
		b.WriteString(item)
	}
	return b.String()
}

// Builder accumulates fragments per stream, keeping arrival order.
type Builder struct {
	streams map[models.Stream]*strings.Builder
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{streams: make(map[models.Stream]*strings.Builder)}
}

// Write appends every fragment to its stream.
func (b *Builder) Write(fragments ...models.Fragment) {
	for _, f := range fragments {
		sb, ok := b.streams[f.Stream]
		if !ok {
			sb = &strings.Builder{}
			b.streams[f.Stream] = sb
		}
		sb.WriteString(f.Text)
	}
}

// Text returns the accumulated text of one stream.
func (b *Builder) Text(stream models.Stream) string {
	if sb, ok := b.streams[stream]; ok {
		return sb.String()
	}
	return ""
}

// Streams returns the text of every stream, including empty ones.
func (b *Builder) Streams() map[models.Stream]string {
	out := make(map[models.Stream]string, len(models.Streams))
	for _, stream := range models.Streams {
		out[stream] = b.Text(stream)
	}
	return out
}
