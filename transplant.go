// Template style transplant.
//
// The authoring application replaces a template's custom styles with its
// defaults when it saves a generated document. The transplant undoes that:
// it splices the template's STYLE records verbatim over the target DocInfo's
// own STYLE range and fixes the style count inside ID_MAPPINGS. STYLE
// records are contiguous in practice; the splice spans from the first STYLE
// frame to the end of the last one, so anything between them is replaced
// wholesale.
package hwpstyle

import (
	"bytes"
	"encoding/binary"
)

// styleCountOffset is the position of the style count uint32 inside an
// ID_MAPPINGS payload (the 15th count field).
const styleCountOffset = 56

// extractStyleRecords returns the raw frame bytes of every STYLE record in
// a DocInfo buffer, concatenated in order, along with their count.
func extractStyleRecords(docinfo []byte) ([]byte, int) {
	var out []byte
	count := 0
	for _, r := range records(docinfo) {
		if r.tag != tagStyle {
			continue
		}
		out = append(out, docinfo[r.start:r.end()]...)
		count++
	}
	return out, count
}

// transplantStyles replaces the target DocInfo's STYLE range with the
// template's STYLE records and patches the ID_MAPPINGS style count when the
// count changed. Returns the new buffer and whether it differs from the
// input; an unchanged buffer is returned as-is so re-running the transplant
// on an already-transplanted file is a no-op.
func transplantStyles(target, template []byte) ([]byte, bool, error) {
	styleBytes, styleCount := extractStyleRecords(template)
	if styleCount == 0 {
		return nil, false, ErrNoStyles
	}

	first, last := -1, -1
	oldCount := 0
	for _, r := range records(target) {
		if r.tag != tagStyle {
			continue
		}
		if first < 0 {
			first = r.start
		}
		last = r.end()
		oldCount++
	}
	if first < 0 {
		return nil, false, ErrNoStyles
	}

	if bytes.Equal(styleBytes, target[first:last]) {
		return target, false, nil
	}

	out := make([]byte, 0, len(target)-(last-first)+len(styleBytes))
	out = append(out, target[:first]...)
	out = append(out, styleBytes...)
	out = append(out, target[last:]...)

	if styleCount != oldCount {
		patchStyleCount(out, uint32(oldCount), uint32(styleCount))
	}
	return out, true, nil
}

// patchStyleCount overwrites the ID_MAPPINGS style count, but only when the
// field still holds the expected old count. The equality guard keeps a
// drifted record layout from corrupting an unrelated field.
func patchStyleCount(docinfo []byte, oldCount, newCount uint32) {
	for _, r := range records(docinfo) {
		if r.tag != tagIDMappings {
			continue
		}
		if styleCountOffset+4 <= r.size {
			off := r.data + styleCountOffset
			if binary.LittleEndian.Uint32(docinfo[off:]) == oldCount {
				binary.LittleEndian.PutUint32(docinfo[off:], newCount)
			}
		}
		return
	}
}
