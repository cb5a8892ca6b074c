// Tag-record framing for DocInfo and BodyText streams.
//
// Every record starts with a little-endian uint32: tag id in the low 10
// bits, level in bits 10–19, payload size in bits 20–31. A size of 0xFFF is
// an escape — the real size follows as another uint32. Decoding stops
// quietly at a truncated frame; trailing garbage after the last complete
// record is not an error because padded streams are normal (recompressed
// streams are null-padded back to their allocated length).
//
// The codec never re-encodes a stream. All mutation is done by patching
// bytes inside the original buffer, so framing survives exactly.
package hwpstyle

import "encoding/binary"

// Tag ids this package consumes.
const (
	tagIDMappings    = 17 // DocInfo: id-mapping counts, style count at payload offset 56
	tagCharShape     = 21 // DocInfo: char shape, 14-byte font-face block at payload offset 0
	tagStyle         = 26 // DocInfo: named style definition
	tagParaHeader    = 66 // BodyText: paragraph header, style id byte at payload offset 10
	tagParaText      = 67 // BodyText: UTF-16LE text with inline control objects
	tagParaCharShape = 68 // BodyText: 8-byte {startPos, charShapeID} runs
)

// sizeEscape marks a record whose true payload size follows the frame header.
const sizeEscape = 0xFFF

// record locates one tag record inside a stream buffer. start is the offset
// of the frame header, data the offset of the payload.
type record struct {
	tag   int
	start int
	data  int
	size  int
}

// end returns the offset just past the record's payload.
func (r record) end() int { return r.data + r.size }

// records decodes the framing of an entire stream buffer. A frame header
// that does not fit, or a payload that would overrun the buffer, ends the
// decode at the last complete record.
func records(buf []byte) []record {
	var out []record
	pos := 0
	for pos+4 <= len(buf) {
		h := binary.LittleEndian.Uint32(buf[pos:])
		tag := int(h & 0x3FF)
		size := int(h >> 20 & 0xFFF)
		data := pos + 4
		if size == sizeEscape {
			if data+4 > len(buf) {
				break
			}
			size = int(binary.LittleEndian.Uint32(buf[data:]))
			data += 4
		}
		if data+size > len(buf) || size < 0 {
			break
		}
		out = append(out, record{tag: tag, start: pos, data: data, size: size})
		pos = data + size
	}
	return out
}
