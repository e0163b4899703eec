package converter

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emltools/eml2pdf/internal/attachment"
	"github.com/emltools/eml2pdf/internal/config"
	"github.com/emltools/eml2pdf/internal/history"
	"github.com/emltools/eml2pdf/internal/htmlgen"
	"github.com/emltools/eml2pdf/internal/mimetree"
	"github.com/emltools/eml2pdf/internal/renderer"
)

// Converter runs the full pipeline for one message: parse, classify, select
// a body, assemble the HTML document, render it, extract attachments, and
// record the outcome. A single Converter is safe for concurrent use; the
// batch runners share one across their workers.
type Converter struct {
	cfg      *config.Config
	logger   *slog.Logger
	renderer *renderer.Renderer
	store    *history.Store
}

// New creates a Converter from the configuration. A nil logger falls back to
// slog.Default.
func New(cfg *config.Config, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{
		cfg:      cfg,
		logger:   logger,
		renderer: renderer.New(cfg.WkhtmltopdfPath, cfg.ExtraArgs),
	}
}

// WithHistory attaches a history store. Conversions are then recorded and
// batch runs skip sources already converted.
func (c *Converter) WithHistory(store *history.Store) *Converter {
	c.store = store
	return c
}

// Probe verifies the PDF renderer is available. HTML output needs no
// external binary, so it always probes clean.
func (c *Converter) Probe() error {
	if c.cfg.HTMLOutput {
		return nil
	}
	return c.renderer.Probe()
}

// Result describes one finished conversion.
type Result struct {
	// OutputPath is the rendered document (PDF, or HTML in HTML mode).
	OutputPath string

	// HTMLPath is the written HTML document in HTML mode, "" for PDF mode
	// where the intermediate is removed after rendering.
	HTMLPath string

	// AttachmentPaths are the extracted attachment files, in part order.
	AttachmentPaths []string

	// Problems are the defects recovered from while converting.
	Problems []mimetree.Problem

	// Charset is the charset the selected body was decoded with.
	Charset string

	// Envelope is the parsed header envelope.
	Envelope *mimetree.Envelope

	// Duration is the wall time of the conversion.
	Duration time.Duration

	// HistoryID is the recorded conversion row, 0 without a history store.
	HistoryID int64
}

// ConvertFile converts a single .eml file. An empty outputPath derives
// "<source stem>.pdf" (or .html) under the configured output directory.
func (c *Converter) ConvertFile(ctx context.Context, sourcePath, outputPath string) (*Result, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	if outputPath == "" {
		outputPath = filepath.Join(c.cfg.OutputDir, stem(filepath.Base(sourcePath))+c.outputExt())
	}
	return c.convert(ctx, data, sourcePath, outputPath, sql.NullInt64{})
}

// ConvertReader converts a message read from r. sourceName is recorded in
// the history and the logs; it does not need to name a real file. An empty
// outputPath is derived from sourceName like ConvertFile does.
func (c *Converter) ConvertReader(ctx context.Context, r io.Reader, sourceName, outputPath string) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	if outputPath == "" {
		base := stem(filepath.Base(sourceName))
		if base == "" || base == "." {
			base = "message"
		}
		outputPath = filepath.Join(c.cfg.OutputDir, base+c.outputExt())
	}
	return c.convert(ctx, data, sourceName, outputPath, sql.NullInt64{})
}

// Preview assembles the display document for a message without writing any
// output files. The caller decides what to do about the recovered problems,
// if anything.
func (c *Converter) Preview(data []byte) (string, []mimetree.Problem, error) {
	asm, err := c.assembleMessage(data)
	if err != nil {
		return "", nil, err
	}
	return asm.doc, asm.problems, nil
}

// convert is the shared core behind the public entry points. Recovered
// problems are logged and recorded, parse-level failures recorded as failed
// conversions before being returned.
func (c *Converter) convert(ctx context.Context, data []byte, sourcePath, outputPath string, batchID sql.NullInt64) (*Result, error) {
	start := time.Now()
	hash := hashBytes(data)

	res, err := c.convertMessage(ctx, data, outputPath)
	duration := time.Since(start)
	if err != nil {
		c.recordFailure(sourcePath, hash, batchID, err, duration)
		return nil, err
	}
	res.Duration = duration

	for _, p := range res.Problems {
		c.logger.Warn("recovered from malformed input",
			"source", sourcePath, "problem", p.String())
	}
	c.record(sourcePath, hash, batchID, res)
	return res, nil
}

// assembled is a parsed message carried between assembly and output.
type assembled struct {
	doc      string
	body     *mimetree.BodyCandidate
	env      *mimetree.Envelope
	cls      *mimetree.Classification
	problems []mimetree.Problem
}

// assembleMessage runs the message through parse, classify, body selection,
// and document assembly.
func (c *Converter) assembleMessage(data []byte) (*assembled, error) {
	opts := c.parseOptions()

	msg, err := mimetree.Parse(bytes.NewReader(data), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	cls := mimetree.Classify(msg.Root, opts)
	problems := make([]mimetree.Problem, 0, len(msg.Problems)+len(cls.Problems))
	problems = append(problems, msg.Problems...)
	problems = append(problems, cls.Problems...)

	body := mimetree.SelectBody(cls.BodyCandidates, opts)
	if body.Synthetic {
		problems = append(problems, mimetree.Problem{Kind: mimetree.ProblemNoBodyFound, Path: "1"})
	}

	env, err := mimetree.ParseEnvelope(msg.Root, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse envelope: %w", err)
	}

	return &assembled{
		doc:      c.assemble(body, cls.InlineMedia, env),
		body:     body,
		env:      env,
		cls:      cls,
		problems: problems,
	}, nil
}

// convertMessage parses the message and produces the output files.
func (c *Converter) convertMessage(ctx context.Context, data []byte, outputPath string) (*Result, error) {
	asm, err := c.assembleMessage(data)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	res := &Result{
		OutputPath: outputPath,
		Problems:   asm.problems,
		Charset:    asm.body.Charset,
		Envelope:   asm.env,
	}

	if c.cfg.HTMLOutput {
		if err := os.WriteFile(outputPath, []byte(asm.doc), 0644); err != nil {
			return nil, fmt.Errorf("failed to write html output: %w", err)
		}
		res.HTMLPath = outputPath
	} else {
		if err := c.renderer.RenderPDF(ctx, []byte(asm.doc), outputPath); err != nil {
			return nil, err
		}
	}

	if c.cfg.ExtractFiles && len(asm.cls.Attachments) > 0 {
		dir := c.cfg.AttachmentDir
		if dir == "" {
			dir = stem(outputPath) + "-attachments"
		}
		paths, err := attachment.Write(dir, attachment.Collect(asm.cls.Attachments))
		if err != nil {
			return nil, err
		}
		res.AttachmentPaths = paths
	}

	return res, nil
}

// assemble builds the final HTML document around the selected body. The body
// text is already UTF-8 by this point regardless of the source charset, so
// the document always declares utf-8.
func (c *Converter) assemble(body *mimetree.BodyCandidate, media *mimetree.InlineMediaIndex, env *mimetree.Envelope) string {
	resolve := func(id string) (string, []byte, bool) {
		entry, ok := media.Lookup(id)
		if !ok {
			return "", nil, false
		}
		return entry.MIMEType, entry.Data, true
	}

	var doc string
	if body.MIMEType == "text/html" {
		doc = htmlgen.RewriteCIDReferences(body.Text, resolve)
		doc = htmlgen.WrapHTMLBody(doc, "utf-8")
	} else {
		doc = htmlgen.WrapPlainBody(body.Text, "utf-8")
		doc = htmlgen.RewritePlainCIDReferences(doc, resolve)
	}

	if !c.cfg.HideHeaders {
		doc = htmlgen.InjectHeaderBanner(doc, htmlgen.BuildHeaderBanner(env))
	}
	return doc
}

// parseOptions maps the configuration onto parser options, starting from the
// lenient defaults.
func (c *Converter) parseOptions() mimetree.Options {
	opts := mimetree.DefaultOptions()
	if c.cfg.DefaultCharset != "" {
		opts.DefaultCharset = c.cfg.DefaultCharset
	}
	if c.cfg.MaxDepth > 0 {
		opts.MaxDepth = c.cfg.MaxDepth
	}
	opts.DetectCharset = c.cfg.DetectCharset
	return opts
}

func (c *Converter) outputExt() string {
	if c.cfg.HTMLOutput {
		return ".html"
	}
	return ".pdf"
}

func (c *Converter) record(sourcePath, hash string, batchID sql.NullInt64, res *Result) {
	if c.store == nil {
		return
	}

	attachmentPaths := make([]string, len(res.AttachmentPaths))
	for i, p := range res.AttachmentPaths {
		attachmentPaths[i] = c.relOutputPath(p)
	}

	conv := &history.Conversion{
		SourcePath:      sourcePath,
		SourceSHA256:    hash,
		OutputPath:      c.relOutputPath(res.OutputPath),
		Status:          history.StatusConverted,
		Problems:        joinProblems(res.Problems),
		AttachmentPaths: strings.Join(attachmentPaths, "\n"),
		DurationMS:      res.Duration.Milliseconds(),
		AttachmentCount: len(res.AttachmentPaths),
		BatchID:         batchID,
	}
	if env := res.Envelope; env != nil {
		conv.Subject = env.Subject
		conv.Sender = env.From
		if !env.Date.IsZero() {
			conv.MessageDate = history.NullTime{Time: env.Date, Valid: true}
		}
	}
	if fi, err := os.Stat(res.OutputPath); err == nil {
		conv.OutputSize = fi.Size()
	}

	id, err := c.store.Record(conv)
	if err != nil {
		c.logger.Warn("failed to record conversion", "source", sourcePath, "error", err)
		return
	}
	res.HistoryID = id
}

func (c *Converter) recordFailure(sourcePath, hash string, batchID sql.NullInt64, convErr error, duration time.Duration) {
	if c.store == nil {
		return
	}
	_, err := c.store.Record(&history.Conversion{
		SourcePath:   sourcePath,
		SourceSHA256: hash,
		Status:       history.StatusFailed,
		Error:        convErr.Error(),
		DurationMS:   duration.Milliseconds(),
		BatchID:      batchID,
	})
	if err != nil {
		c.logger.Warn("failed to record conversion", "source", sourcePath, "error", err)
	}
}

// relOutputPath stores output paths relative to the configured output
// directory so the history survives the directory moving. Paths outside it
// are kept as written.
func (c *Converter) relOutputPath(path string) string {
	rel, err := filepath.Rel(c.cfg.OutputDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

func joinProblems(problems []mimetree.Problem) string {
	if len(problems) == 0 {
		return ""
	}
	lines := make([]string, len(problems))
	for i, p := range problems {
		lines[i] = p.String()
	}
	return strings.Join(lines, "\n")
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func stem(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}
