package llm

import (
	"bytes"
)

var fence = []byte("```")

// StripCodeFences removes a surrounding markdown code fence (```json ... ```) and
// surrounding whitespace. Anything else is returned trimmed and untouched.
func StripCodeFences(raw []byte) []byte {
	s := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(s, fence) {
		return s
	}
	s = s[len(fence):]
	if nl := bytes.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // drop the info string ("json")
	} else {
		s = bytes.TrimPrefix(s, []byte("json"))
	}
	if end := bytes.LastIndex(s, fence); end >= 0 {
		s = s[:end]
	}
	return bytes.TrimSpace(s)
}
