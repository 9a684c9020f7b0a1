package sanitize

import "github.com/microcosm-cc/bluemonday"

// richText allows only the basic formatting tags the course editor emits.
var richText = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "strong", "em", "u", "ol", "ul", "li")
	return p
}()

// HTML strips everything from a rich-text fragment except basic formatting.
// Scripts, event handlers, and unknown tags are removed, never escaped.
func HTML(s string) string {
	return richText.Sanitize(s)
}
