package card

import (
	"io"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type clickEvent struct {
	Target  *html.Node
	stopped bool
}

func (e *clickEvent) StopPropagation() { e.stopped = true }

type clickHandler func(*clickEvent)

// document is the card's element tree plus its click handlers.
type document struct {
	root     *html.Node
	byID     map[string]*html.Node
	handlers map[*html.Node]clickHandler
}

func newDocument() *document {
	return &document{
		byID:     make(map[string]*html.Node),
		handlers: make(map[*html.Node]clickHandler),
	}
}

func (d *document) element(parent *html.Node, tag, id string, classes ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	if id != "" {
		setAttr(n, "id", id)
		d.byID[id] = n
	}
	if len(classes) > 0 {
		setAttr(n, "class", strings.Join(classes, " "))
	}
	if parent != nil {
		parent.AppendChild(n)
	} else if d.root == nil {
		d.root = n
	}
	return n
}

func (d *document) get(id string) *html.Node {
	return d.byID[id]
}

func (d *document) on(id string, h clickHandler) {
	if n := d.byID[id]; n != nil {
		d.handlers[n] = h
	}
}

// click runs handlers from the target up to the root until one stops
// propagation. It reports whether id names an element.
func (d *document) click(id string) bool {
	target := d.byID[id]
	if target == nil {
		return false
	}
	ev := &clickEvent{Target: target}
	for n := target; n != nil; n = n.Parent {
		if h := d.handlers[n]; h != nil {
			h(ev)
			if ev.stopped {
				break
			}
		}
	}
	return true
}

// ids lists every element id, sorted.
func (d *document) ids() []string {
	ids := make([]string, 0, len(d.byID))
	for id := range d.byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (d *document) render(w io.Writer) error {
	if d.root == nil {
		return nil
	}
	return html.Render(w, d.root)
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func classList(n *html.Node) []string {
	return strings.Fields(getAttr(n, "class"))
}

func hasClass(n *html.Node, class string) bool {
	return slices.Contains(classList(n), class)
}

func toggleClass(n *html.Node, class string, on bool) {
	if n == nil {
		return
	}
	cl := classList(n)
	present := slices.Contains(cl, class)
	switch {
	case on && !present:
		cl = append(cl, class)
	case !on && present:
		cl = slices.DeleteFunc(cl, func(c string) bool { return c == class })
	default:
		return
	}
	setAttr(n, "class", strings.Join(cl, " "))
}

func setText(n *html.Node, text string) {
	if n == nil {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func setIcon(n *html.Node, icon string) {
	if n != nil {
		setAttr(n, "icon", icon)
	}
}
