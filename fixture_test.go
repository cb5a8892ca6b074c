// Test fixtures: synthetic record streams and a minimal compound-file
// builder.
//
// The builder produces a version 3 compound file (512-byte sectors) that
// both mscfb and the sector patcher accept: one FAT sector, a directory
// chain, an optional mini stream for streams below the 4096-byte cutoff,
// and the data sectors. Fixtures stay far below the single-FAT-sector
// limit, which the builder asserts.
package hwpstyle

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf16"

	"github.com/klauspost/compress/flate"
)

// rec frames one tag record.
func rec(tag int, payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(out, uint32(tag)|uint32(len(payload))<<20)
	copy(out[4:], payload)
	return out
}

// recEscaped frames a record through the 0xFFF size escape regardless of
// payload size.
func recEscaped(tag int, payload []byte) []byte {
	out := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint32(out, uint32(tag)|uint32(sizeEscape)<<20)
	binary.LittleEndian.PutUint32(out[4:], uint32(len(payload)))
	copy(out[8:], payload)
	return out
}

// cat concatenates record frames into one stream buffer.
func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// idMappings builds an ID_MAPPINGS payload with the style count field set.
func idMappings(styleCount uint32) []byte {
	p := make([]byte, 72)
	binary.LittleEndian.PutUint32(p[styleCountOffset:], styleCount)
	return p
}

// paraHeader builds a PARA_HEADER payload with the style id byte set.
func paraHeader(styleID byte) []byte {
	p := make([]byte, 16)
	p[styleIDOffset] = styleID
	return p
}

// paraText encodes text as UTF-16LE.
func paraText(text string) []byte {
	units := utf16.Encode([]rune(text))
	p := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(p[i*2:], u)
	}
	return p
}

// paraCharShape builds a PARA_CHAR_SHAPE payload from {startPos, id} runs.
func paraCharShape(runs ...[2]uint32) []byte {
	p := make([]byte, len(runs)*runSize)
	for i, r := range runs {
		binary.LittleEndian.PutUint32(p[i*runSize:], r[0])
		binary.LittleEndian.PutUint32(p[i*runSize+4:], r[1])
	}
	return p
}

// styleRecord builds a STYLE payload: both names plus the 8-byte tail with
// the char-shape id at tail offset 6.
func styleRecord(local, eng string, charShapeID uint16) []byte {
	var p []byte
	for _, name := range []string{local, eng} {
		units := utf16.Encode([]rune(name))
		p = binary.LittleEndian.AppendUint16(p, uint16(len(units)))
		for _, u := range units {
			p = binary.LittleEndian.AppendUint16(p, u)
		}
	}
	tail := make([]byte, 8)
	binary.LittleEndian.PutUint16(tail[6:], charShapeID)
	return append(p, tail...)
}

// charShapeRecord builds a CHAR_SHAPE payload whose 14 face bytes all hold
// fill, followed by opaque trailing bytes.
func charShapeRecord(fill byte) []byte {
	p := make([]byte, faceBlockSize+58)
	for i := 0; i < faceBlockSize; i++ {
		p[i] = fill
	}
	return p
}

// deflateRaw compresses data the way the container stores streams and pads
// the result to size.
func deflateRaw(t *testing.T, data []byte, size int) []byte {
	t.Helper()
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, 6)
	if err != nil {
		t.Fatalf("flate writer: %v", err)
	}
	fw.Write(data)
	fw.Close()
	if buf.Len() > size {
		t.Fatalf("fixture stream does not fit: %d > %d", buf.Len(), size)
	}
	out := make([]byte, size)
	copy(out, buf.Bytes())
	return out
}

// fileHeaderStream builds a FileHeader stream with the given flag word at
// offset 36, padded to the allocation size.
func fileHeaderStream(flags uint32, size int) []byte {
	p := make([]byte, size)
	copy(p, "HWP Document File")
	binary.LittleEndian.PutUint32(p[fileHeaderFlagsOffset:], flags)
	return p
}

// fixtureStream is one named stream for the compound-file builder. Streams
// shorter than the mini cutoff land in the mini stream.
type fixtureStream struct {
	path []string
	data []byte
}

const (
	fxSectorSize = 512
	fxMiniSize   = 64
	fxCutoff     = 4096
)

// buildCompound assembles a compound file image from the given streams.
func buildCompound(t *testing.T, streams []fixtureStream) []byte {
	t.Helper()

	// Directory: root first, then storages and streams in input order.
	type entry struct {
		name               string
		typ                byte
		left, right, child uint32
		start              uint32
		size               int
		data               []byte
	}
	entries := []*entry{{name: "Root Entry", typ: typeRoot, left: noStream, right: noStream, child: noStream, start: secEndOfChain}}
	storages := make(map[string]*entry)
	link := func(parent *entry, e *entry) {
		if parent.child == noStream {
			parent.child = uint32(len(entries)) - 1
			return
		}
		sib := entries[parent.child]
		for sib.right != noStream {
			sib = entries[sib.right]
		}
		sib.right = uint32(len(entries)) - 1
	}
	for _, s := range streams {
		parent := entries[0]
		if len(s.path) == 2 {
			st, ok := storages[s.path[0]]
			if !ok {
				st = &entry{name: s.path[0], typ: typeStorage, left: noStream, right: noStream, child: noStream, start: secEndOfChain}
				entries = append(entries, st)
				link(entries[0], st)
				storages[s.path[0]] = st
			}
			parent = st
		} else if len(s.path) != 1 {
			t.Fatalf("fixture paths must have 1 or 2 components, got %v", s.path)
		}
		e := &entry{name: s.path[len(s.path)-1], typ: typeStream, left: noStream, right: noStream, child: noStream, start: secEndOfChain, size: len(s.data), data: s.data}
		entries = append(entries, e)
		link(parent, e)
	}

	// Sector plan: FAT, directory, mini FAT, mini stream, big streams.
	dirSectors := (len(entries)*dirEntrySize + fxSectorSize - 1) / fxSectorSize

	var miniData []byte
	var miniFAT []uint32
	for _, e := range entries {
		if e.typ != typeStream || e.size >= fxCutoff {
			continue
		}
		units := (e.size + fxMiniSize - 1) / fxMiniSize
		e.start = uint32(len(miniFAT))
		padded := make([]byte, units*fxMiniSize)
		copy(padded, e.data)
		miniData = append(miniData, padded...)
		for i := 0; i < units; i++ {
			if i == units-1 {
				miniFAT = append(miniFAT, secEndOfChain)
			} else {
				miniFAT = append(miniFAT, uint32(len(miniFAT))+1)
			}
		}
	}
	miniFATSectors := 0
	if len(miniFAT) > 0 {
		miniFATSectors = 1
		if len(miniFAT) > fxSectorSize/4 {
			t.Fatal("fixture mini FAT exceeds one sector")
		}
	}

	fat := []uint32{secFAT} // sector 0
	addChain := func(sectors int) uint32 {
		start := uint32(len(fat))
		for i := 0; i < sectors; i++ {
			if i == sectors-1 {
				fat = append(fat, secEndOfChain)
			} else {
				fat = append(fat, uint32(len(fat))+1)
			}
		}
		return start
	}

	dirStart := addChain(dirSectors)
	miniFATStart := uint32(secEndOfChain)
	if miniFATSectors > 0 {
		miniFATStart = addChain(miniFATSectors)
	}
	miniStart := uint32(secEndOfChain)
	if len(miniData) > 0 {
		miniStart = addChain((len(miniData) + fxSectorSize - 1) / fxSectorSize)
		entries[0].start = miniStart
		entries[0].size = len(miniData)
	}
	for _, e := range entries {
		if e.typ != typeStream || e.size < fxCutoff {
			continue
		}
		e.start = addChain((e.size + fxSectorSize - 1) / fxSectorSize)
	}
	if len(fat) > fxSectorSize/4 {
		t.Fatalf("fixture needs %d FAT entries, more than one sector", len(fat))
	}

	// Assemble the image.
	image := make([]byte, (1+len(fat))*fxSectorSize)
	hdr := image[:fxSectorSize]
	copy(hdr, cfbSignature)
	binary.LittleEndian.PutUint16(hdr[24:], 0x3E) // minor version
	binary.LittleEndian.PutUint16(hdr[26:], 3)
	binary.LittleEndian.PutUint16(hdr[28:], 0xFFFE)
	binary.LittleEndian.PutUint16(hdr[30:], 9)
	binary.LittleEndian.PutUint16(hdr[32:], 6)
	binary.LittleEndian.PutUint32(hdr[44:], 1) // one FAT sector
	binary.LittleEndian.PutUint32(hdr[48:], dirStart)
	binary.LittleEndian.PutUint32(hdr[56:], fxCutoff)
	binary.LittleEndian.PutUint32(hdr[60:], miniFATStart)
	binary.LittleEndian.PutUint32(hdr[64:], uint32(miniFATSectors))
	binary.LittleEndian.PutUint32(hdr[68:], secEndOfChain)
	for off := 76; off < fxSectorSize; off += 4 {
		binary.LittleEndian.PutUint32(hdr[off:], secFree)
	}
	binary.LittleEndian.PutUint32(hdr[76:], 0) // DIFAT[0] → FAT sector 0

	sectorAt := func(s uint32) []byte {
		off := (int(s) + 1) * fxSectorSize
		return image[off : off+fxSectorSize]
	}
	fatSector := sectorAt(0)
	for i := range fatSector {
		fatSector[i] = 0xFF
	}
	for i, v := range fat {
		binary.LittleEndian.PutUint32(fatSector[i*4:], v)
	}

	// Directory entries.
	dirBytes := make([]byte, dirSectors*fxSectorSize)
	for i, e := range entries {
		b := dirBytes[i*dirEntrySize : (i+1)*dirEntrySize]
		units := utf16.Encode([]rune(e.name))
		for j, u := range units {
			binary.LittleEndian.PutUint16(b[j*2:], u)
		}
		binary.LittleEndian.PutUint16(b[64:], uint16((len(units)+1)*2))
		b[66] = e.typ
		b[67] = 1 // black
		binary.LittleEndian.PutUint32(b[68:], e.left)
		binary.LittleEndian.PutUint32(b[72:], e.right)
		binary.LittleEndian.PutUint32(b[76:], e.child)
		binary.LittleEndian.PutUint32(b[116:], e.start)
		binary.LittleEndian.PutUint32(b[120:], uint32(e.size))
	}
	for i := 0; i < dirSectors; i++ {
		copy(sectorAt(dirStart+uint32(i)), dirBytes[i*fxSectorSize:(i+1)*fxSectorSize])
	}

	if miniFATSectors > 0 {
		b := sectorAt(miniFATStart)
		for i := range b {
			b[i] = 0xFF
		}
		for i, v := range miniFAT {
			binary.LittleEndian.PutUint32(b[i*4:], v)
		}
		for i := 0; i*fxSectorSize < len(miniData); i++ {
			copy(sectorAt(miniStart+uint32(i)), miniData[i*fxSectorSize:])
		}
	}
	for _, e := range entries {
		if e.typ != typeStream || e.size < fxCutoff {
			continue
		}
		for i := 0; i*fxSectorSize < len(e.data); i++ {
			copy(sectorAt(e.start+uint32(i)), e.data[i*fxSectorSize:])
		}
	}
	return image
}

// writeCompound builds a compound file on disk and returns its path.
func writeCompound(t *testing.T, name string, streams []fixtureStream) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, buildCompound(t, streams), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

// pad4k pads data with zeros to the mini cutoff so the stream is allocated
// in regular sectors, the layout HWP documents use in practice.
func pad4k(data []byte) []byte {
	if len(data) >= fxCutoff {
		return data
	}
	out := make([]byte, fxCutoff)
	copy(out, data)
	return out
}
