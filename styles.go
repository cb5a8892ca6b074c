// Style and char-shape table builder.
//
// One scan over a DocInfo stream produces everything the rewriter needs to
// look up: style name → index (both exact and lower-cased), style index →
// char-shape id, and char-shape index → 14-byte font-face block. Indexes are
// positional: the nth STYLE record is style n, the nth CHAR_SHAPE record is
// char shape n, regardless of what other tags sit between them.
package hwpstyle

import (
	"encoding/binary"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// faceBlockSize is the length of the font-face id block leading every
// CHAR_SHAPE payload: 7 face ids, uint16 each.
const faceBlockSize = 14

// StyleTable holds the per-run style lookups built from a DocInfo stream.
// It is a plain value object: built once per run, never mutated afterwards.
type StyleTable struct {
	names   map[string]int // style name (exact and lower-cased) → index
	charIDs map[int]uint32 // style index → char-shape id
	faces   map[int][]byte // char-shape index → leading 14 face bytes
	styles  int            // number of STYLE records seen
}

// builtinStyleAliases seed the name map before discovered names are merged,
// so the default body styles resolve even in documents whose DocInfo could
// not be read.
var builtinStyleAliases = map[string]int{
	"바탕글": 0,
	"Normal": 0,
	"본문":  1,
	"Body": 1,
}

// buildStyleTable scans an uncompressed DocInfo buffer. It never fails: a
// buffer with no STYLE records yields a table that only resolves the
// built-in aliases, and Styles() reporting zero lets callers treat that as
// "could not resolve styles".
func buildStyleTable(docinfo []byte) *StyleTable {
	t := &StyleTable{
		names:   make(map[string]int),
		charIDs: make(map[int]uint32),
		faces:   make(map[int][]byte),
	}
	for name, idx := range builtinStyleAliases {
		t.names[name] = idx
		t.names[strings.ToLower(name)] = idx
	}

	charShape := 0
	for _, r := range records(docinfo) {
		switch r.tag {
		case tagStyle:
			payload := docinfo[r.data:r.end()]
			local, eng := parseStyleNames(payload)
			for _, name := range []string{local, eng} {
				if name == "" {
					continue
				}
				t.names[name] = t.styles
				t.names[strings.ToLower(name)] = t.styles
			}
			if id, ok := parseStyleCharShapeID(payload); ok {
				t.charIDs[t.styles] = uint32(id)
			}
			t.styles++
		case tagCharShape:
			// Short payloads keep their index but carry no face block.
			if r.size >= faceBlockSize {
				face := make([]byte, faceBlockSize)
				copy(face, docinfo[r.data:])
				t.faces[charShape] = face
			}
			charShape++
		}
	}
	return t
}

// Styles returns the number of STYLE records the table was built from.
func (t *StyleTable) Styles() int { return t.styles }

// Resolve maps a style name to its index. Pure digits are taken as a
// literal index; otherwise the exact name is tried, then the lower-cased
// form.
func (t *StyleTable) Resolve(name string) (int, bool) {
	text := strings.TrimSpace(name)
	if text == "" {
		return 0, false
	}
	if idx, err := strconv.Atoi(text); err == nil && idx >= 0 {
		return idx, true
	}
	if idx, ok := t.names[text]; ok {
		return idx, true
	}
	if idx, ok := t.names[strings.ToLower(text)]; ok {
		return idx, true
	}
	return 0, false
}

// CharID returns the char-shape id referenced by a style.
func (t *StyleTable) CharID(styleIdx int) (uint32, bool) {
	id, ok := t.charIDs[styleIdx]
	return id, ok
}

// Face returns the 14-byte font-face block of a char shape.
func (t *StyleTable) Face(charShapeIdx int) ([]byte, bool) {
	face, ok := t.faces[charShapeIdx]
	return face, ok
}

// parseStyleNames decodes the two variable-length names leading a STYLE
// payload: [u16 localLen][UTF-16LE local][u16 engLen][UTF-16LE eng]. Name
// lengths count UTF-16 units, not bytes. A malformed payload yields empty
// names, never an error.
func parseStyleNames(payload []byte) (local, eng string) {
	if len(payload) < 4 {
		return "", ""
	}
	localLen := int(binary.LittleEndian.Uint16(payload))
	localEnd := 2 + localLen*2
	if localEnd > len(payload) {
		return "", ""
	}
	local = decodeUTF16(payload[2:localEnd])
	if localEnd+2 > len(payload) {
		return local, ""
	}
	engLen := int(binary.LittleEndian.Uint16(payload[localEnd:]))
	engStart := localEnd + 2
	engEnd := min(len(payload), engStart+engLen*2)
	return local, decodeUTF16(payload[engStart:engEnd])
}

// parseStyleCharShapeID extracts the char-shape id from a STYLE payload.
// The tail after both names holds {paraShapeID: u16, charShapeID: u16, ...}
// with the char-shape id at tail offset 6.
func parseStyleCharShapeID(payload []byte) (uint16, bool) {
	if len(payload) < 4 {
		return 0, false
	}
	localLen := int(binary.LittleEndian.Uint16(payload))
	localEnd := 2 + localLen*2
	if localEnd+2 > len(payload) {
		return 0, false
	}
	engLen := int(binary.LittleEndian.Uint16(payload[localEnd:]))
	tail := localEnd + 2 + engLen*2
	if tail+8 > len(payload) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(payload[tail+6:]), true
}

func decodeUTF16(b []byte) string {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	s, err := dec.Bytes(b)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.Trim(string(s), "\x00"))
}
