// Engine orchestration and entry points.
//
// An Engine is built once per run and owns the style table resolved from
// the reference template plus the warnings accumulated while processing.
// There is no package-level state: two engines never share anything. Every
// entry point is safe to run repeatedly — an already-correct file comes
// back with changed=false and identical bytes on disk.
package hwpstyle

import "fmt"

// Options configures an Engine. Style names may also be given as plain
// digits, which resolve to that literal style index.
type Options struct {
	QuestionStyle string // style for question paragraphs, default 문제
	PassageStyle  string // style for passage paragraphs, default 지문
	StyleSource   string // reference template container; also the transplant donor
	StrictStyles  bool   // fail instead of substituting when a style is missing
}

// Engine rewrites saved documents according to one set of Options.
type Engine struct {
	opts   Options
	table  *StyleTable
	loaded bool

	warnings []string
	seen     map[string]struct{}
}

// New creates an Engine. The style table is loaded lazily from
// Options.StyleSource on first use.
func New(opts Options) *Engine {
	if opts.QuestionStyle == "" {
		opts.QuestionStyle = "문제"
	}
	if opts.PassageStyle == "" {
		opts.PassageStyle = "지문"
	}
	return &Engine{opts: opts, seen: make(map[string]struct{})}
}

// warn records a deduplicated, human-readable warning for the current run.
func (e *Engine) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if _, ok := e.seen[msg]; ok {
		return
	}
	e.seen[msg] = struct{}{}
	e.warnings = append(e.warnings, msg)
}

// Warnings returns the warnings accumulated so far, in order.
func (e *Engine) Warnings() []string {
	out := make([]string, len(e.warnings))
	copy(out, e.warnings)
	return out
}

// ResetWarnings clears the accumulated warnings for a fresh run.
func (e *Engine) ResetWarnings() {
	e.warnings = nil
	e.seen = make(map[string]struct{})
}

// styleTable loads the name table from the reference template once. Every
// failure mode degrades to an empty table plus a warning — style resolution
// then falls back to the built-in aliases and literal indexes.
func (e *Engine) styleTable() *StyleTable {
	if e.loaded {
		return e.table
	}
	e.loaded = true
	e.table = buildStyleTable(nil)

	if e.opts.StyleSource == "" {
		return e.table
	}
	docinfo, err := e.readDocInfo(e.opts.StyleSource)
	if err != nil {
		e.warn("style source unusable: %v", err)
		return e.table
	}
	table := buildStyleTable(docinfo)
	if table.Styles() == 0 {
		e.warn("style source has no style records: %s", e.opts.StyleSource)
		return e.table
	}
	e.table = table
	return e.table
}

// readDocInfo opens a container and returns its uncompressed DocInfo bytes.
func (e *Engine) readDocInfo(path string) ([]byte, error) {
	c, err := OpenContainer(path)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	if c.Encrypted() {
		return nil, fmt.Errorf("%w: %s", ErrEncrypted, path)
	}
	raw, err := c.ReadStream(streamDocInfo)
	if err != nil {
		return nil, err
	}
	if c.Compressed() {
		return inflate(raw)
	}
	return raw, nil
}

// ResolveStyleIndex maps a configured style name to its index in the
// reference template.
func (e *Engine) ResolveStyleIndex(name string) (int, bool) {
	return e.styleTable().Resolve(name)
}

// PostProcessStyleIDs rewrites a saved document so its paragraphs carry the
// configured question/passage styles: template styles are transplanted into
// DocInfo, every body section's PARA_HEADER style byte and char-shape runs
// are patched, and zeroed emphasis faces are repaired. The returned bool
// reports whether any byte changed; a correct file is a no-op. The on-disk
// file is modified only when the whole operation succeeds.
func (e *Engine) PostProcessStyleIDs(path string) (bool, error) {
	questionIdx, qok := e.ResolveStyleIndex(e.opts.QuestionStyle)
	passageIdx, pok := e.ResolveStyleIndex(e.opts.PassageStyle)

	if !qok && !pok {
		if e.opts.StrictStyles {
			return false, fmt.Errorf("%w: %s, %s", ErrStyleRequired, e.opts.QuestionStyle, e.opts.PassageStyle)
		}
		e.warn("question/passage styles not found: %s, %s", e.opts.QuestionStyle, e.opts.PassageStyle)
		// Best effort: keep emphasis faces consistent even without styles.
		return e.PostProcessEmphasisFaces(path)
	}
	if !qok {
		if e.opts.StrictStyles {
			return false, fmt.Errorf("%w: %s", ErrStyleRequired, e.opts.QuestionStyle)
		}
		e.warn("question style not found, substituting passage style: %s", e.opts.QuestionStyle)
		questionIdx = passageIdx
	}
	if !pok {
		if e.opts.StrictStyles {
			return false, fmt.Errorf("%w: %s", ErrStyleRequired, e.opts.PassageStyle)
		}
		e.warn("passage style not found, substituting question style: %s", e.opts.PassageStyle)
		passageIdx = questionIdx
	}

	c, err := OpenContainer(path)
	if err != nil {
		return false, err
	}
	defer c.Close()
	if c.Encrypted() {
		return false, fmt.Errorf("%w: %s", ErrEncrypted, path)
	}
	if !c.HasStream(streamDocInfo) {
		return false, fmt.Errorf("%w: %s", ErrMissingStream, streamDocInfo)
	}

	if e.opts.StyleSource != "" {
		if err := e.transplant(c); err != nil {
			e.warn("template style transplant failed, document keeps its own styles: %v", err)
		}
	}

	// Char-shape ids come from the document's own (possibly just
	// transplanted) DocInfo, not from the template.
	docinfo, err := e.containerDocInfo(c)
	if err != nil {
		return false, err
	}
	table := buildStyleTable(docinfo)

	emphasis := make(emphasisMap)
	questionHits := 0
	for _, name := range c.Sections() {
		raw, err := c.ReadStream(name)
		if err != nil {
			return false, err
		}
		body := raw
		if c.Compressed() {
			if body, err = inflate(raw); err != nil {
				return false, fmt.Errorf("%s: %w", name, err)
			}
		}
		texts := collectParaTexts(body)
		res := rewriteBody(body, texts, questionIdx, passageIdx, table)
		emphasis.merge(res.emphasis)
		questionHits += res.questionHits
		if !res.changed {
			continue
		}
		if err := e.writeStream(c, name, body, len(raw)); err != nil {
			return false, err
		}
	}

	if questionIdx != passageIdx && questionHits == 0 {
		e.warn("no question-numbered paragraphs found; check question numbering or style settings")
	}

	if reconcileFaces(docinfo, emphasis) {
		raw, err := c.ReadStream(streamDocInfo)
		if err != nil {
			return false, err
		}
		if err := e.writeStream(c, streamDocInfo, docinfo, len(raw)); err != nil {
			return false, err
		}
	}

	changed := c.Dirty()
	if err := c.Save(); err != nil {
		return false, err
	}
	return changed, nil
}

// PostProcessEmphasisFaces runs only the face repair: question paragraphs
// are found by their numbering alone, so this works even when no style
// could be resolved.
func (e *Engine) PostProcessEmphasisFaces(path string) (bool, error) {
	c, err := OpenContainer(path)
	if err != nil {
		return false, err
	}
	defer c.Close()
	if c.Encrypted() {
		return false, fmt.Errorf("%w: %s", ErrEncrypted, path)
	}
	sections := c.Sections()
	if !c.HasStream(streamDocInfo) || len(sections) == 0 {
		return false, fmt.Errorf("%w: DocInfo or body section", ErrMissingStream)
	}

	emphasis := make(emphasisMap)
	for _, name := range sections {
		body, err := c.ReadStream(name)
		if err != nil {
			return false, err
		}
		if c.Compressed() {
			if body, err = inflate(body); err != nil {
				return false, fmt.Errorf("%s: %w", name, err)
			}
		}
		emphasis.merge(collectEmphasisRuns(body, collectParaTexts(body)))
	}
	if len(emphasis) == 0 {
		return false, nil
	}

	docinfo, err := e.containerDocInfo(c)
	if err != nil {
		return false, err
	}
	if !reconcileFaces(docinfo, emphasis) {
		return false, nil
	}

	raw, err := c.ReadStream(streamDocInfo)
	if err != nil {
		return false, err
	}
	if err := e.writeStream(c, streamDocInfo, docinfo, len(raw)); err != nil {
		return false, err
	}
	if err := c.Save(); err != nil {
		return false, err
	}
	return true, nil
}

// transplant splices the template's STYLE records into the container's
// DocInfo. An identical style range is a no-op.
func (e *Engine) transplant(c *Container) error {
	template, err := e.readDocInfo(e.opts.StyleSource)
	if err != nil {
		return err
	}
	target, err := e.containerDocInfo(c)
	if err != nil {
		return err
	}
	out, changed, err := transplantStyles(target, template)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	raw, err := c.ReadStream(streamDocInfo)
	if err != nil {
		return err
	}
	return e.writeStream(c, streamDocInfo, out, len(raw))
}

// containerDocInfo returns the container's uncompressed DocInfo bytes.
func (e *Engine) containerDocInfo(c *Container) ([]byte, error) {
	raw, err := c.ReadStream(streamDocInfo)
	if err != nil {
		return nil, err
	}
	if c.Compressed() {
		return inflate(raw)
	}
	return raw, nil
}

// writeStream persists an uncompressed buffer into a stream slot of
// rawLen allocated bytes, re-deflating when the container is compressed.
// A recompression overflow aborts the caller's whole operation; nothing
// reaches disk because Save never runs after an error.
func (e *Engine) writeStream(c *Container, name string, data []byte, rawLen int) error {
	out := data
	if c.Compressed() {
		var err error
		if out, err = deflateToSize(data, rawLen); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if err := c.WriteStream(name, out); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
