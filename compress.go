// Raw-DEFLATE codec for container streams.
//
// HWP compresses DocInfo and BodyText streams with DEFLATE and no zlib
// wrapper (window bits -15). The container's stream allocation is fixed, so
// a modified stream must re-deflate into at most its original byte length.
// Levels are tried from strongest to weakest and the winner is null-padded
// to the exact target: DEFLATE decoders stop at the end-of-stream marker and
// ignore trailing bytes, so padding is safe.
package hwpstyle

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// inflate decompresses a raw-DEFLATE stream. Trailing padding after the
// end-of-stream marker is ignored.
func inflate(raw []byte) ([]byte, error) {
	fr := flate.NewReader(bytes.NewReader(raw))
	defer fr.Close()

	out, err := io.ReadAll(fr)
	if err != nil {
		return nil, fmt.Errorf("%w: inflate: %w", ErrCorruptStream, err)
	}
	return out, nil
}

// deflateLevels is the fallback ladder for recompression. Level 0 (stored)
// is the last resort: it costs 5 bytes per 64KB block but always succeeds
// on data that originally fit with slack.
var deflateLevels = []int{9, 6, 3, 1, 0}

// deflateToSize compresses data so the result is exactly target bytes long,
// padding with nulls. Returns ErrRecompress when no level fits — the caller
// must then abandon the write entirely rather than truncate.
func deflateToSize(data []byte, target int) ([]byte, error) {
	for _, level := range deflateLevels {
		var buf bytes.Buffer
		fw, err := flate.NewWriter(&buf, level)
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(data); err != nil {
			return nil, err
		}
		if err := fw.Close(); err != nil {
			return nil, err
		}
		if buf.Len() > target {
			continue
		}
		out := make([]byte, target)
		copy(out, buf.Bytes())
		return out, nil
	}
	return nil, fmt.Errorf("%w: %d bytes available", ErrRecompress, target)
}
