package player

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// stripPolicy removes every tag from scraped text. The page is not ours;
// anything read out of its DOM is treated as untrusted before it reaches
// notifications or the popup surface.
var stripPolicy = bluemonday.StrictPolicy()

// sanitizeText strips markup and surrounding whitespace from one scraped
// string.
func sanitizeText(s string) string {
	return strings.TrimSpace(stripPolicy.Sanitize(s))
}

// ParsePlayerBar extracts a PlaybackState from the serialized player-bar
// markup. It is the pure half of the adapter: the rod side captures
// outerHTML, this side turns it into the validated contract. A fragment
// that fails to parse yields the zero state.
func ParsePlayerBar(fragment string) PlaybackState {
	root, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return PlaybackState{}
	}

	var st PlaybackState
	walk(root, func(n *html.Node) {
		switch {
		case hasClass(n, "title") && st.Title == "":
			st.Title = sanitizeText(textContent(n))
		case hasClass(n, "byline") && st.Artist == "":
			// First anchor inside the byline is the artist link.
			if a := firstElement(n, "a"); a != nil {
				st.Artist = sanitizeText(textContent(a))
			}
		case n.Data == "img" && hasClass(n, "image") && st.ArtworkURL == "":
			st.ArtworkURL = attr(n, "src")
		case hasClass(n, "time-info"):
			st.Progress, st.Duration = parseTimeInfo(textContent(n))
		case attr(n, "id") == "play-pause-button":
			st.IsPlaying = strings.EqualFold(attr(n, "title"), "pause")
		}
	})
	return st
}

func walk(n *html.Node, visit func(*html.Node)) {
	if n.Type == html.ElementNode {
		visit(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func hasClass(n *html.Node, class string) bool {
	for _, f := range strings.Fields(attr(n, "class")) {
		if f == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return sb.String()
}

func firstElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := firstElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}
