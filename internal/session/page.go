package session

import (
	"context"
	"fmt"
)

type SelectorKind int

const (
	ByID SelectorKind = iota
	ByCSS
	ByXPath
)

func (k SelectorKind) String() string {
	switch k {
	case ByID:
		return "id"
	case ByCSS:
		return "css"
	case ByXPath:
		return "xpath"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type Selector struct {
	Kind  SelectorKind
	Value string
}

func ID(v string) Selector    { return Selector{Kind: ByID, Value: v} }
func CSS(v string) Selector   { return Selector{Kind: ByCSS, Value: v} }
func XPath(v string) Selector { return Selector{Kind: ByXPath, Value: v} }

func (s Selector) String() string {
	return s.Kind.String() + "=" + s.Value
}

// Element is an opaque handle to a located node plus its visible text at
// lookup time.
type Element struct {
	Text string
	Ref  any
}

// Page is the element-location capability a browser driver provides.
// Waiting methods block until the condition holds or ctx is done, in which
// case they return an error wrapping ErrElementNotFound. Elements never
// waits.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	// WaitVisible returns the index of the first selector seen visible.
	WaitVisible(ctx context.Context, sels ...Selector) (int, error)
	// WaitPresent returns once sel is in the DOM, shown or not.
	WaitPresent(ctx context.Context, sel Selector) error
	WaitClickable(ctx context.Context, sel Selector) error
	Click(ctx context.Context, sel Selector) error
	Type(ctx context.Context, sel Selector, text string) error
	Attribute(ctx context.Context, sel Selector, name string) (string, bool, error)
	Elements(ctx context.Context, sel Selector) ([]Element, error)
	// ClickWithin clicks the first match of a CSS selector inside el.
	ClickWithin(ctx context.Context, el Element, sel Selector) error
	Close() error
}
