// Package prelabel pre-annotates images with a vision model.
//
// A Runner sends every image to a client.VisionClient and turns the answer
// into Box and Tag shapes with source "auto". It never touches a Document
// while running; Apply appends the results afterwards on the caller's
// goroutine.
package prelabel

import (
	"context"
	"fmt"
	"image"
	"io"
	"log"
	"math"
	"path/filepath"
	"strings"
	"sync"

	"github.com/menta2k/cvatkit/pkg/client"
	"github.com/menta2k/cvatkit/pkg/maskio"
	"github.com/menta2k/cvatkit/pkg/shape"
	"github.com/menta2k/cvatkit/pkg/types"
)

// Source is recorded on every shape produced by the runner
const Source = "auto"

// ConfidenceAttribute is the shape attribute carrying the model confidence
const ConfidenceAttribute = "confidence"

// MaxTags bounds the number of image tags kept per answer
const MaxTags = 5

// SimpleTestPrompt checks whether the model can see images at all
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks for every labelled object and a few image level tags
const DefaultPrompt = `You are an image annotator.

Return JSON only:
{
  "objects": [
    {"label": "string", "confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
  ],
  "description": "short neutral sentence (<= 20 words)",
  "tags": ["tag1", "tag2"]
}

RULES
- All coordinates are normalized to [0,1] (NOT pixels); x,y is the top-left corner.
- One entry per visible object, boxes tight around the object.
- Labels and tags: lowercase, concise, no punctuation or duplicates.
- If nothing is found return {"objects": [], "description": "", "tags": []}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Options controls a pre-annotation run
type Options struct {
	Model         string
	Prompt        string
	Workers       int
	MaxDim        int     // long side of the image sent to the model, 0 keeps the size
	Format        string  // jpg or png
	MinConfidence float64 // objects below are dropped
	// Labels restricts objects and tags to these names, matched case-insensitively.
	// Empty accepts everything.
	Labels []string
}

// DefaultOptions returns the options used by the CLI
func DefaultOptions() Options {
	return Options{
		Model:         "openbmb/minicpm-v4.5",
		Prompt:        DefaultPrompt,
		Workers:       2,
		MaxDim:        1536,
		Format:        "jpg",
		MinConfidence: 0.25,
	}
}

// Result is the outcome for one image file
type Result struct {
	Path        string
	Width       int
	Height      int
	Shapes      []shape.Shape
	Description string
	Err         error
}

// Name is the file name used to match the image inside a document
func (r Result) Name() string {
	return filepath.Base(r.Path)
}

// Runner fans images out to a vision model
type Runner struct {
	client client.VisionClient
	codec  *maskio.Codec
	opts   Options
	logger *log.Logger
}

// NewRunner creates a runner; zero option fields fall back to DefaultOptions
func NewRunner(c client.VisionClient, opts Options) *Runner {
	def := DefaultOptions()
	if opts.Model == "" {
		opts.Model = def.Model
	}
	if opts.Prompt == "" {
		opts.Prompt = def.Prompt
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Format == "" {
		opts.Format = def.Format
	}
	return &Runner{
		client: c,
		codec:  maskio.New(),
		opts:   opts,
		logger: log.New(io.Discard, "", 0),
	}
}

// SetLogger sets the logger for progress lines
func (r *Runner) SetLogger(l *log.Logger) {
	if l != nil {
		r.logger = l
	}
}

// TestVision asks the model to describe img
func (r *Runner) TestVision(ctx context.Context, img image.Image) (string, error) {
	b64, err := r.codec.EncodeBase64(img, r.opts.Format, r.opts.MaxDim)
	if err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return r.client.SimpleQuery(ctx, r.opts.Model, SimpleTestPrompt, b64)
}

// DetectImage runs the model on one decoded image
func (r *Runner) DetectImage(ctx context.Context, img image.Image) ([]shape.Shape, *types.DetectionResult, error) {
	b64, err := r.codec.EncodeBase64(img, r.opts.Format, r.opts.MaxDim)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode image: %w", err)
	}
	res, err := r.client.Detect(ctx, r.opts.Model, r.opts.Prompt, b64)
	if err != nil {
		return nil, nil, err
	}
	b := img.Bounds()
	return ToShapes(res, b.Dx(), b.Dy(), r.opts.MinConfidence, r.opts.Labels), res, nil
}

// Run processes paths with at most Workers concurrent model calls.
// Results are returned in the order of paths; a failed image carries Err.
func (r *Runner) Run(ctx context.Context, paths []string) []Result {
	results := make([]Result, len(paths))
	sem := make(chan struct{}, r.opts.Workers)
	var wg sync.WaitGroup

	for i, p := range paths {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = Result{Path: p, Err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			results[i] = r.runOne(ctx, p)
			if results[i].Err != nil {
				r.logger.Printf("%s: %v", p, results[i].Err)
			} else {
				r.logger.Printf("%s: %d shapes", p, len(results[i].Shapes))
			}
		}(i, p)
	}
	wg.Wait()
	return results
}

func (r *Runner) runOne(ctx context.Context, path string) Result {
	res := Result{Path: path}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	img, err := r.codec.LoadImage(path)
	if err != nil {
		res.Err = err
		return res
	}
	b := img.Bounds()
	res.Width, res.Height = b.Dx(), b.Dy()

	shapes, det, err := r.DetectImage(ctx, img)
	if err != nil {
		res.Err = fmt.Errorf("detection failed: %w", err)
		return res
	}
	res.Shapes = shapes
	res.Description = det.Description
	return res
}

// ToShapes converts a model answer for an image of width x height pixels into
// boxes and tags. Degenerate boxes and objects below minConfidence are dropped.
func ToShapes(res *types.DetectionResult, width, height int, minConfidence float64, labels []string) []shape.Shape {
	if res == nil {
		return nil
	}
	allowed := labelSet(labels)

	var out []shape.Shape
	for _, obj := range res.Objects {
		if obj.Confidence < minConfidence {
			continue
		}
		label, ok := canonical(allowed, obj.Label)
		if !ok {
			continue
		}
		nb := normalizeBox(obj.Box)
		if nb.W <= 0 || nb.H <= 0 {
			continue
		}
		w, h := float64(width), float64(height)
		out = append(out, &shape.Box{
			Meta: shape.Meta{
				Label:  label,
				Source: Source,
				Attributes: []types.Attribute{
					{Name: ConfidenceAttribute, Value: shape.FormatFloat(round(obj.Confidence, 3))},
				},
			},
			XTL: round(nb.X*w, 2),
			YTL: round(nb.Y*h, 2),
			XBR: round((nb.X+nb.W)*w, 2),
			YBR: round((nb.Y+nb.H)*h, 2),
		})
	}

	for _, tag := range normalizeTags(res.Tags) {
		label, ok := canonical(allowed, tag)
		if !ok {
			continue
		}
		out = append(out, &shape.Tag{Label: label, Source: Source})
	}
	return out
}

func labelSet(labels []string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	set := make(map[string]string, len(labels))
	for _, l := range labels {
		set[strings.ToLower(l)] = l
	}
	return set
}

func canonical(allowed map[string]string, name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	if allowed == nil {
		return name, true
	}
	l, ok := allowed[strings.ToLower(name)]
	return l, ok
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// normalizeBox keeps the box inside the unit square
func normalizeBox(b types.NormalizedBox) types.NormalizedBox {
	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.NormalizedBox{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}

// normalizeTags lower-cases, dedups and limits tags to MaxTags entries
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, MaxTags)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == MaxTags {
			break
		}
	}
	return out
}
