// Body stream rewriter.
//
// Two passes over one decoded record stream. The first pass collects each
// paragraph's text from PARA_TEXT records; the second classifies every
// paragraph and patches the PARA_HEADER style byte and the PARA_CHAR_SHAPE
// run ids in place. Both passes define the paragraph index identically — the
// nth PARA_HEADER seen is paragraph n — which is the invariant that lets the
// text collected in pass one drive the decisions in pass two.
package hwpstyle

import (
	"encoding/binary"
	"strings"
	"unicode/utf16"
)

// Inline control objects in PARA_TEXT: codes below 32 are not characters.
// Codes 1–23 carry 12 extra bytes of payload, codes 24–31 carry 8.
const (
	ctrlExtendedTrail = 12
	ctrlInlineTrail   = 8
)

// paraHeaderMinSize is the smallest PARA_HEADER payload that still carries
// the style id byte at offset 10.
const paraHeaderMinSize = 11

// styleIDOffset is the position of the style id byte in a PARA_HEADER
// payload.
const styleIDOffset = 10

// runSize is the byte length of one PARA_CHAR_SHAPE run:
// {startPos: uint32, charShapeID: uint32}.
const runSize = 8

// collectParaTexts extracts the visible text of every paragraph, keyed by
// paragraph index. Control objects are skipped together with their trailing
// payload; everything else is accumulated as UTF-16 units and decoded at
// paragraph end so surrogate pairs survive.
func collectParaTexts(body []byte) map[int]string {
	texts := make(map[int]string)
	para := -1
	for _, r := range records(body) {
		switch r.tag {
		case tagParaHeader:
			para++
		case tagParaText:
			if para < 0 || r.size < 2 {
				continue
			}
			payload := body[r.data:r.end()]
			var units []uint16
			for i := 0; i+2 <= len(payload); {
				code := binary.LittleEndian.Uint16(payload[i:])
				i += 2
				switch {
				case code >= 32:
					units = append(units, code)
				case code >= 24:
					i += ctrlInlineTrail
				case code >= 1:
					i += ctrlExtendedTrail
				}
			}
			texts[para] = string(utf16.Decode(units))
		}
	}
	return texts
}

// emphasisMap records, per base char-shape id, the run ids that deviated
// from it inside question paragraphs. The face reconciler uses it to find
// emphasis char shapes whose font-face block was zeroed.
type emphasisMap map[uint32]map[uint32]struct{}

func (m emphasisMap) add(base, deviant uint32) {
	if base == deviant {
		return
	}
	set, ok := m[base]
	if !ok {
		set = make(map[uint32]struct{})
		m[base] = set
	}
	set[deviant] = struct{}{}
}

// merge folds other into m.
func (m emphasisMap) merge(other emphasisMap) {
	for base, set := range other {
		for id := range set {
			m.add(base, id)
		}
	}
}

// rewriteResult carries what the rewrite pass did to one body buffer.
type rewriteResult struct {
	changed      bool
	questionHits int // question-classified paragraphs with visible text
	emphasis     emphasisMap
}

// rewriteBody classifies every paragraph of a body buffer and patches style
// bytes and char-shape runs in place. questionIdx and passageIdx are the
// target style indexes; the char-shape ids they imply come from the table
// and may be absent, in which case runs are left alone.
func rewriteBody(body []byte, texts map[int]string, questionIdx, passageIdx int, table *StyleTable) rewriteResult {
	res := rewriteResult{emphasis: make(emphasisMap)}

	questionChar, haveQuestionChar := table.CharID(questionIdx)
	passageChar, havePassageChar := table.CharID(passageIdx)

	para := -1
	activeStyle := -1
	var activeChar uint32
	haveActiveChar := false

	for _, r := range records(body) {
		switch r.tag {
		case tagParaHeader:
			para++
			if r.size < paraHeaderMinSize {
				activeStyle, haveActiveChar = -1, false
				continue
			}
			text := texts[para]
			style := classify(text, questionIdx, passageIdx)
			activeStyle = style
			if style == questionIdx {
				activeChar, haveActiveChar = questionChar, haveQuestionChar
				if strings.TrimSpace(text) != "" {
					res.questionHits++
				}
			} else {
				activeChar, haveActiveChar = passageChar, havePassageChar
			}
			if body[r.data+styleIDOffset] != byte(style) {
				body[r.data+styleIDOffset] = byte(style)
				res.changed = true
			}
		case tagParaCharShape:
			if !haveActiveChar {
				continue
			}
			ids, ok := runIDs(body[r.data:r.end()])
			if !ok {
				continue
			}
			if activeStyle == questionIdx && len(ids) > 1 {
				base := baseRunID(ids)
				for _, id := range ids {
					if id != base {
						res.emphasis.add(base, id)
					}
				}
			}
			if rewriteRuns(body[r.data:r.end()], ids, activeChar) {
				res.changed = true
			}
		}
	}
	return res
}

// runIDs decodes the char-shape id of every run in a PARA_CHAR_SHAPE
// payload. Payloads that are not a positive multiple of the run size are
// rejected and must stay untouched.
func runIDs(payload []byte) ([]uint32, bool) {
	if len(payload) < runSize || len(payload)%runSize != 0 {
		return nil, false
	}
	ids := make([]uint32, 0, len(payload)/runSize)
	for off := 4; off < len(payload); off += runSize {
		ids = append(ids, binary.LittleEndian.Uint32(payload[off:]))
	}
	return ids, true
}

// baseRunID picks the paragraph's base char-shape id: the id occurring most
// often, ties broken by earliest first occurrence. The tie-break mirrors the
// behaviour the surrounding tooling was validated against; do not change it.
func baseRunID(ids []uint32) uint32 {
	counts := make(map[uint32]int)
	first := make(map[uint32]int)
	for i, id := range ids {
		counts[id]++
		if _, ok := first[id]; !ok {
			first[id] = i
		}
	}
	base := ids[0]
	for _, id := range ids {
		if counts[id] > counts[base] || (counts[id] == counts[base] && first[id] < first[base]) {
			base = id
		}
	}
	return base
}

// rewriteRuns forces runs onto target: a lone run is rewritten outright,
// while in a multi-run paragraph only runs matching the base id change —
// the rest are deliberate inline emphasis and must survive.
func rewriteRuns(payload []byte, ids []uint32, target uint32) bool {
	changed := false
	rewrite := func(i int) {
		binary.LittleEndian.PutUint32(payload[4+i*runSize:], target)
		changed = true
	}

	if len(ids) == 1 {
		if ids[0] != target {
			rewrite(0)
		}
		return changed
	}

	base := baseRunID(ids)
	for i, id := range ids {
		if id == base && id != target {
			rewrite(i)
		}
	}
	return changed
}
