package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// maxPasses bounds how many layers of entity escaping are peeled off.
const maxPasses = 8

// Text strips all markup from user-supplied chat or comment content and
// trims surrounding whitespace. The result is plain text, not HTML.
// Escaped markup is decoded and stripped too, repeatedly, until a pass
// changes nothing; input that never settles yields "".
func Text(s string) string {
	cur := s
	for i := 0; i < maxPasses; i++ {
		next := html.UnescapeString(strict.Sanitize(html.UnescapeString(cur)))
		if next == cur {
			return strings.TrimSpace(cur)
		}
		cur = next
	}
	return ""
}
