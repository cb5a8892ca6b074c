// Emphasis face reconciler.
//
// Some word-processor builds save inline-emphasis char shapes with their
// 14-byte font-face block zeroed, so emphasised words inside questions fall
// back to the wrong font. The repair copies the face block of a paragraph's
// base char shape onto every deviant char shape whose block is all zeros.
// Deviants with a real face block are left alone — those are deliberate.
package hwpstyle

import "bytes"

var zeroFace = make([]byte, faceBlockSize)

// collectEmphasisRuns rebuilds the base→deviants map from a body buffer
// alone, using only the question-number pattern. This is the standalone
// path: it needs no style table, so it still works when style resolution
// failed entirely. Single-run paragraphs contribute nothing — emphasis only
// exists where a paragraph has at least two runs.
func collectEmphasisRuns(body []byte, texts map[int]string) emphasisMap {
	out := make(emphasisMap)
	para := -1
	question := false
	for _, r := range records(body) {
		switch r.tag {
		case tagParaHeader:
			para++
			question = isQuestionText(texts[para])
		case tagParaCharShape:
			if !question {
				continue
			}
			ids, ok := runIDs(body[r.data:r.end()])
			if !ok || len(ids) < 2 {
				continue
			}
			base := baseRunID(ids)
			for _, id := range ids {
				if id != base {
					out.add(base, id)
				}
			}
		}
	}
	return out
}

// reconcileFaces patches a DocInfo buffer in place: for every base id whose
// face block is non-zero, deviant char shapes with an all-zero face block
// receive a copy of the base's block. Returns whether any bytes changed.
func reconcileFaces(docinfo []byte, emphasis emphasisMap) bool {
	if len(emphasis) == 0 {
		return false
	}

	// Offsets of every char shape's face block, by positional index.
	offsets := make(map[uint32]int)
	idx := uint32(0)
	for _, r := range records(docinfo) {
		if r.tag != tagCharShape {
			continue
		}
		if r.size >= faceBlockSize {
			offsets[idx] = r.data
		}
		idx++
	}

	changed := false
	for base, deviants := range emphasis {
		srcOff, ok := offsets[base]
		if !ok {
			continue
		}
		src := docinfo[srcOff : srcOff+faceBlockSize]
		if bytes.Equal(src, zeroFace) {
			continue
		}
		for id := range deviants {
			dstOff, ok := offsets[id]
			if !ok || id == base {
				continue
			}
			dst := docinfo[dstOff : dstOff+faceBlockSize]
			if !bytes.Equal(dst, zeroFace) {
				continue
			}
			copy(dst, src)
			changed = true
		}
	}
	return changed
}
