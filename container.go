// Compound-file container access.
//
// HWP v5 documents are OLE compound files. Reading goes through mscfb;
// writing does not — no Go library writes compound files in place — so
// writes are same-length byte patches applied to the in-memory file image
// through the sector chains resolved in patch.go. Nothing touches disk
// until Save, and Save only runs after every patch has succeeded, so a
// failed operation leaves the original file byte-identical.
package hwpstyle

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/richardlehane/mscfb"
)

// Stream names fixed by the document format.
const (
	streamFileHeader = "FileHeader"
	streamDocInfo    = "DocInfo"
	sectionPrefix    = "BodyText/Section"
)

// fileHeaderFlagsOffset locates the uint32 flag word in the FileHeader
// stream: bit 0 marks compressed streams, bit 1 an encrypted document.
const fileHeaderFlagsOffset = 36

// Container is an open compound document. All mutation happens on the
// in-memory image; the on-disk file changes only in Save.
type Container struct {
	path    string
	buf     []byte
	streams map[string][]byte
	dirty   bool
	closed  bool
}

// OpenContainer reads and parses a compound file. Every stream is loaded up
// front; documents are small and the rewriter touches most of them anyway.
// The read happens under a shared lock so a concurrent save cannot hand us
// a half-written image.
func OpenContainer(path string) (*Container, error) {
	buf, err := readLocked(path)
	if err != nil {
		return nil, err
	}

	doc, err := mscfb.New(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotCompound, path, err)
	}

	streams := make(map[string][]byte)
	for {
		entry, err := doc.Next()
		if err != nil {
			break
		}
		if entry.Size == 0 {
			continue
		}
		name := entry.Name
		if len(entry.Path) > 0 {
			name = strings.Join(entry.Path, "/") + "/" + entry.Name
		}
		data, err := io.ReadAll(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCorruptStream, name, err)
		}
		streams[name] = data
	}

	return &Container{path: path, buf: buf, streams: streams}, nil
}

// ReadStream returns a copy of a stream's bytes as they were when the
// container was opened plus any patches written since.
func (c *Container) ReadStream(name string) ([]byte, error) {
	if c.closed {
		return nil, ErrClosed
	}
	data, ok := c.streams[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingStream, name)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// HasStream reports whether a named stream exists.
func (c *Container) HasStream(name string) bool {
	_, ok := c.streams[name]
	return ok
}

// WriteStream replaces a stream's content with data of the exact same
// length. The container cannot grow or shrink a stream's allocation, so a
// length mismatch is refused outright.
func (c *Container) WriteStream(name string, data []byte) error {
	if c.closed {
		return ErrClosed
	}
	current, ok := c.streams[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingStream, name)
	}
	if len(data) != len(current) {
		return fmt.Errorf("%w: %s: %d != %d", ErrStreamResize, name, len(data), len(current))
	}
	if err := patchStream(c.buf, name, data); err != nil {
		return err
	}
	c.streams[name] = append([]byte(nil), data...)
	c.dirty = true
	return nil
}

// headerFlags reads the FileHeader flag word. A header shorter than 40
// bytes yields zero flags rather than an error.
func (c *Container) headerFlags() uint32 {
	hdr, ok := c.streams[streamFileHeader]
	if !ok || len(hdr) < fileHeaderFlagsOffset+4 {
		return 0
	}
	return binary.LittleEndian.Uint32(hdr[fileHeaderFlagsOffset:])
}

// Compressed reports whether DocInfo and BodyText streams are raw-DEFLATE
// compressed.
func (c *Container) Compressed() bool { return c.headerFlags()&0x1 != 0 }

// Encrypted reports whether the document is encrypted. The rewriter refuses
// encrypted documents.
func (c *Container) Encrypted() bool { return c.headerFlags()&0x2 != 0 }

// Sections lists every BodyText/Section{n} stream in numeric order.
func (c *Container) Sections() []string {
	type section struct {
		name string
		n    int
	}
	var found []section
	for name := range c.streams {
		num, ok := strings.CutPrefix(name, sectionPrefix)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			continue
		}
		found = append(found, section{name, n})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })
	names := make([]string, len(found))
	for i, s := range found {
		names[i] = s.name
	}
	return names
}

// Dirty reports whether any stream was written since opening.
func (c *Container) Dirty() bool { return c.dirty }

// Save writes the patched file image back to disk under an exclusive lock.
// No-op when nothing changed. The image keeps its length, so the file is
// overwritten in place without truncation.
func (c *Container) Save() error {
	if c.closed {
		return ErrClosed
	}
	if !c.dirty {
		return nil
	}

	f, err := os.OpenFile(c.path, os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	var lk fileLock
	lk.setFile(f)
	if err := lk.Lock(LockExclusive); err != nil {
		return err
	}
	defer lk.Unlock()

	if _, err := f.WriteAt(c.buf, 0); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// readLocked reads a whole file under a shared lock.
func readLocked(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lk fileLock
	lk.setFile(f)
	if err := lk.Lock(LockShared); err != nil {
		return nil, err
	}
	defer lk.Unlock()

	return io.ReadAll(f)
}

// Close discards the container. The file is not saved implicitly.
func (c *Container) Close() {
	c.closed = true
	c.streams = nil
	c.buf = nil
}
