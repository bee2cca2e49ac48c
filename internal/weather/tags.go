package weather

import "strings"

// ExtractTag returns the text between tag and the next '<' in buf, starting
// the search at *cursor. On success *cursor is left on that '<' so the next
// call continues from there. If the tag is missing, or nothing follows it,
// the result is empty and *cursor is reset to 0.
//
// This is not an XML parser. It relies on the service's fixed layout: a flat
// document, every tag of interest at most once, and callers asking for tags
// in document order. To read a field that appears earlier than the cursor,
// reset the cursor to 0 first. A differently shaped document is silently
// mis-read.
func ExtractTag(buf, tag string, cursor *int) string {
	if *cursor < 0 || *cursor > len(buf) {
		*cursor = 0
		return ""
	}

	p := strings.Index(buf[*cursor:], tag)
	if p < 0 {
		*cursor = 0
		return ""
	}

	start := *cursor + p + len(tag)
	end := strings.IndexByte(buf[start:], '<')
	if end < 0 {
		*cursor = 0
		return ""
	}

	*cursor = start + end
	return buf[start:*cursor]
}
