package intake

import (
	"net/url"
	"strings"

	"github.com/kballard/go-shellquote"
)

// ParseDropped splits text pasted into the drop area into paths. Terminals
// paste dragged files as shell-quoted paths ('a b.png', a\ b.png, "a b.png")
// or as file:// URIs, one or many per line. Text with unbalanced quotes falls
// back to splitting on whitespace.
func ParseDropped(s string) []string {
	words, err := shellquote.Split(s)
	if err != nil {
		words = strings.Fields(s)
	}
	if len(words) == 0 {
		return nil
	}
	out := make([]string, 0, len(words))
	for _, w := range words {
		out = append(out, fromURI(w))
	}
	return out
}

func fromURI(tok string) string {
	if !strings.HasPrefix(tok, "file://") {
		return tok
	}
	u, err := url.Parse(tok)
	if err != nil || u.Path == "" {
		return tok
	}
	return u.Path
}
