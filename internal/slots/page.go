package slots

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// NoSlotsSentinel is the phrase the booking page renders when nothing is free
	// ("no free slots" in Ukrainian).
	NoSlotsSentinel = "Немає вільних місць"

	// DayControlSelector matches the per-date buttons.
	DayControlSelector = `[name="day"]`

	// selectedMarker is appended to the aria-label of the active date.
	selectedMarker = "selected"

	slotHeadingID = "heading-slot-date"
)

// Available reports whether rendered page text indicates free slots.
func Available(text string) bool {
	return !strings.Contains(text, NoSlotsSentinel)
}

// controlLabel normalizes a date control's aria-label.
func controlLabel(ariaLabel string) string {
	return strings.TrimSpace(strings.ReplaceAll(ariaLabel, selectedMarker, ""))
}

// pageText returns the concatenated text of every text node in the document.
func pageText(raw string) (string, error) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	var b strings.Builder
	collectText(doc, &b)
	return b.String(), nil
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

// parseDayPage reads the page shown after a date control was activated: the
// heading naming the date and one list item per bookable time.
func parseDayPage(raw string) (Summary, error) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return Summary{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var (
		sum     Summary
		heading *html.Node
	)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.DataAtom == atom.Li {
				sum.Count++
			}
			if heading == nil && attr(n, "id") == slotHeadingID {
				heading = n
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if heading != nil {
		var b strings.Builder
		collectText(heading, &b)
		sum.Date = b.String()
	}
	return sum, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
