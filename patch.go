// Same-length in-place stream patching for compound files.
//
// mscfb reads compound files but cannot write them, and a full rewrite of
// the container is exactly what this tool must avoid — the sector layout
// has to survive untouched. Since every write keeps the stream length, it
// is enough to resolve the stream's physical extents (through the FAT, or
// the mini FAT for streams below the cutoff) and overwrite those byte
// ranges in the file image.
package hwpstyle

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// Compound-file sector markers.
const (
	secDIFAT      = 0xFFFFFFFC
	secFAT        = 0xFFFFFFFD
	secEndOfChain = 0xFFFFFFFE
	secFree       = 0xFFFFFFFF
	noStream      = 0xFFFFFFFF
)

// Directory entry object types.
const (
	typeStorage = 1
	typeStream  = 2
	typeRoot    = 5
)

const dirEntrySize = 128

var cfbSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// extent is one contiguous byte range of a stream inside the file image.
type extent struct {
	off int
	n   int
}

// cfbLayout carries the parsed allocation structures of a compound file.
type cfbLayout struct {
	buf        []byte
	sectorSize int
	miniSize   int
	miniCutoff int
	fat        []uint32
	miniFAT    []uint32
	dir        []dirEntry
}

type dirEntry struct {
	name  string
	typ   byte
	left  uint32
	right uint32
	child uint32
	start uint32
	size  int
}

// patchStream overwrites the bytes of a named stream inside the file image.
// data must already match the stream length; WriteStream checks that before
// calling here.
func patchStream(buf []byte, path string, data []byte) error {
	layout, err := parseCFB(buf)
	if err != nil {
		return err
	}
	extents, size, err := layout.locate(path)
	if err != nil {
		return err
	}
	if size != len(data) {
		return fmt.Errorf("%w: %s: %d != %d", ErrStreamResize, path, len(data), size)
	}
	pos := 0
	for _, e := range extents {
		copy(buf[e.off:e.off+e.n], data[pos:pos+e.n])
		pos += e.n
	}
	return nil
}

func parseCFB(buf []byte) (*cfbLayout, error) {
	if len(buf) < 512 || !bytes.Equal(buf[:8], cfbSignature) {
		return nil, ErrNotCompound
	}
	l := &cfbLayout{
		buf:        buf,
		sectorSize: 1 << binary.LittleEndian.Uint16(buf[30:]),
		miniSize:   1 << binary.LittleEndian.Uint16(buf[32:]),
		miniCutoff: int(binary.LittleEndian.Uint32(buf[56:])),
	}
	if l.sectorSize != 512 && l.sectorSize != 4096 {
		return nil, fmt.Errorf("%w: sector size %d", ErrNotCompound, l.sectorSize)
	}

	// DIFAT: 109 FAT sector ids in the header, the rest in chained DIFAT
	// sectors whose last entry links to the next one.
	var fatSectors []uint32
	for off := 76; off < 512; off += 4 {
		if id := binary.LittleEndian.Uint32(buf[off:]); id != secFree {
			fatSectors = append(fatSectors, id)
		}
	}
	perDIFAT := l.sectorSize/4 - 1
	difat := binary.LittleEndian.Uint32(buf[68:])
	for steps := 0; difat != secEndOfChain && difat != secFree; steps++ {
		if steps > len(buf)/l.sectorSize {
			return nil, fmt.Errorf("%w: DIFAT cycle", ErrNotCompound)
		}
		off, err := l.sectorOff(difat)
		if err != nil {
			return nil, err
		}
		for i := 0; i < perDIFAT; i++ {
			if id := binary.LittleEndian.Uint32(buf[off+i*4:]); id != secFree {
				fatSectors = append(fatSectors, id)
			}
		}
		difat = binary.LittleEndian.Uint32(buf[off+perDIFAT*4:])
	}

	for _, s := range fatSectors {
		off, err := l.sectorOff(s)
		if err != nil {
			return nil, err
		}
		for i := 0; i < l.sectorSize/4; i++ {
			l.fat = append(l.fat, binary.LittleEndian.Uint32(buf[off+i*4:]))
		}
	}

	miniChain, err := l.chain(binary.LittleEndian.Uint32(buf[60:]))
	if err != nil {
		return nil, err
	}
	for _, s := range miniChain {
		off, err := l.sectorOff(s)
		if err != nil {
			return nil, err
		}
		for i := 0; i < l.sectorSize/4; i++ {
			l.miniFAT = append(l.miniFAT, binary.LittleEndian.Uint32(buf[off+i*4:]))
		}
	}

	dirChain, err := l.chain(binary.LittleEndian.Uint32(buf[48:]))
	if err != nil {
		return nil, err
	}
	for _, s := range dirChain {
		off, err := l.sectorOff(s)
		if err != nil {
			return nil, err
		}
		for e := 0; e+dirEntrySize <= l.sectorSize; e += dirEntrySize {
			l.dir = append(l.dir, parseDirEntry(buf[off+e:off+e+dirEntrySize]))
		}
	}
	if len(l.dir) == 0 || l.dir[0].typ != typeRoot {
		return nil, fmt.Errorf("%w: missing root entry", ErrNotCompound)
	}
	return l, nil
}

func parseDirEntry(b []byte) dirEntry {
	nameLen := int(binary.LittleEndian.Uint16(b[64:]))
	name := ""
	if nameLen >= 2 && nameLen <= 64 {
		name = decodeUTF16(b[:nameLen-2])
	}
	return dirEntry{
		name:  name,
		typ:   b[66],
		left:  binary.LittleEndian.Uint32(b[68:]),
		right: binary.LittleEndian.Uint32(b[72:]),
		child: binary.LittleEndian.Uint32(b[76:]),
		start: binary.LittleEndian.Uint32(b[116:]),
		size:  int(binary.LittleEndian.Uint32(b[120:])),
	}
}

func (l *cfbLayout) sectorOff(sector uint32) (int, error) {
	off := (int(sector) + 1) * l.sectorSize
	if off+l.sectorSize > len(l.buf) {
		return 0, fmt.Errorf("%w: sector %d out of range", ErrNotCompound, sector)
	}
	return off, nil
}

// chain follows a FAT chain from start, with a cycle guard.
func (l *cfbLayout) chain(start uint32) ([]uint32, error) {
	var out []uint32
	for s := start; s != secEndOfChain && s != secFree; s = l.fat[s] {
		if int(s) >= len(l.fat) || len(out) >= len(l.fat) {
			return nil, fmt.Errorf("%w: broken chain at sector %d", ErrNotCompound, s)
		}
		out = append(out, s)
	}
	return out, nil
}

// miniChain follows a mini-FAT chain.
func (l *cfbLayout) miniChain(start uint32) ([]uint32, error) {
	var out []uint32
	for s := start; s != secEndOfChain && s != secFree; s = l.miniFAT[s] {
		if int(s) >= len(l.miniFAT) || len(out) >= len(l.miniFAT) {
			return nil, fmt.Errorf("%w: broken mini chain at sector %d", ErrNotCompound, s)
		}
		out = append(out, s)
	}
	return out, nil
}

// findEntry resolves a slash-separated path through the directory tree.
// Each level is searched exhaustively instead of relying on the red-black
// ordering — damaged but readable files are common enough to be tolerant.
func (l *cfbLayout) findEntry(path string) (*dirEntry, error) {
	current := l.dir[0].child
	var found *dirEntry
	for _, comp := range strings.Split(path, "/") {
		found = nil
		var walk func(id uint32, depth int)
		walk = func(id uint32, depth int) {
			if id == noStream || int(id) >= len(l.dir) || depth > len(l.dir) || found != nil {
				return
			}
			e := &l.dir[id]
			if e.name == comp {
				found = e
				return
			}
			walk(e.left, depth+1)
			walk(e.right, depth+1)
		}
		walk(current, 0)
		if found == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingStream, path)
		}
		current = found.child
	}
	if found.typ != typeStream {
		return nil, fmt.Errorf("%w: %s is not a stream", ErrMissingStream, path)
	}
	return found, nil
}

// locate resolves the physical extents of a stream. Streams below the mini
// cutoff live in 64-byte mini sectors inside the root entry's mini stream;
// everything else sits directly in regular sectors.
func (l *cfbLayout) locate(path string) ([]extent, int, error) {
	e, err := l.findEntry(path)
	if err != nil {
		return nil, 0, err
	}

	if e.size >= l.miniCutoff {
		sectors, err := l.chain(e.start)
		if err != nil {
			return nil, 0, err
		}
		return l.extents(sectors, e.size, l.sectorSize, nil)
	}

	// Mini stream: map mini sectors through the root entry's chain.
	rootChain, err := l.chain(l.dir[0].start)
	if err != nil {
		return nil, 0, err
	}
	minis, err := l.miniChain(e.start)
	if err != nil {
		return nil, 0, err
	}
	return l.extents(minis, e.size, l.miniSize, rootChain)
}

// extents turns a sector chain into byte ranges. For mini sectors, rootChain
// maps positions inside the mini stream onto regular sectors; mini sectors
// never straddle a regular sector because both sizes are powers of two.
func (l *cfbLayout) extents(sectors []uint32, size, unit int, rootChain []uint32) ([]extent, int, error) {
	var out []extent
	remaining := size
	for _, s := range sectors {
		if remaining <= 0 {
			break
		}
		n := min(unit, remaining)
		var off int
		var err error
		if rootChain == nil {
			off, err = l.sectorOff(s)
		} else {
			pos := int(s) * unit
			idx := pos / l.sectorSize
			if idx >= len(rootChain) {
				return nil, 0, fmt.Errorf("%w: mini stream too short", ErrNotCompound)
			}
			off, err = l.sectorOff(rootChain[idx])
			off += pos % l.sectorSize
		}
		if err != nil {
			return nil, 0, err
		}
		out = append(out, extent{off: off, n: n})
		remaining -= n
	}
	if remaining > 0 {
		return nil, 0, fmt.Errorf("%w: chain shorter than stream", ErrNotCompound)
	}
	return out, size, nil
}
