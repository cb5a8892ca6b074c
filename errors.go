// Package hwpstyle rewrites style and font references inside saved HWP v5
// documents. An HWP file is an OLE compound container holding a FileHeader,
// a DocInfo stream and one or more BodyText/Section streams, each stream a
// flat sequence of tag-framed records, usually raw-DEFLATE compressed.
//
// The rewriter opens a finished document, decides per paragraph whether it is
// question or passage text, patches the PARA_HEADER style byte and the
// PARA_CHAR_SHAPE run ids in place, optionally transplants STYLE records from
// a reference template, and repairs char shapes whose font-face block was
// zeroed for inline emphasis runs. Modified streams are re-deflated to the
// exact byte length they occupied before, because the container's stream
// allocation is never resized.
package hwpstyle

import "errors"

// Sentinel errors for programmatic handling. Callers can use errors.Is to
// separate refusals (ErrEncrypted, ErrStyleRequired) from container damage
// (ErrNotCompound, ErrMissingStream, ErrCorruptStream) and from the one
// fatal write condition (ErrRecompress).
var (
	ErrNotCompound   = errors.New("not a compound file")
	ErrMissingStream = errors.New("required stream not found")
	ErrCorruptStream = errors.New("corrupt stream")
	ErrEncrypted     = errors.New("document is encrypted")
	ErrStreamResize  = errors.New("stream length cannot change")
	ErrRecompress    = errors.New("recompressed stream exceeds original size")
	ErrStyleRequired = errors.New("style could not be resolved")
	ErrNoStyles      = errors.New("no style records found")
	ErrClosed        = errors.New("container is closed")
)
