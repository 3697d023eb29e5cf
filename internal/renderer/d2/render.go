// Package d2 compiles D2 diagram source into SVG. Compiled diagrams are
// cached by source hash and concurrent compiles of one source share a result.
package d2

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
	"oss.terrastruct.com/d2/d2graph"
	"oss.terrastruct.com/d2/d2layouts/d2dagrelayout"
	"oss.terrastruct.com/d2/d2layouts/d2elklayout"
	"oss.terrastruct.com/d2/d2lib"
	"oss.terrastruct.com/d2/d2renderers/d2svg"
	"oss.terrastruct.com/d2/d2themes/d2themescatalog"
	d2log "oss.terrastruct.com/d2/lib/log"
	"oss.terrastruct.com/d2/lib/textmeasure"
)

const (
	defaultTimeout  = 12 * time.Second
	defaultCacheTTL = 30 * time.Minute
	defaultCapacity = 256
)

// Result is one compiled diagram. Duration is the compile time of the render
// that produced SVG; Cached reports that this call did not compile.
type Result struct {
	SVG      string
	Duration time.Duration
	Cached   bool
}

var (
	// ErrEmptyDiagram is returned for diagram bodies with no content.
	ErrEmptyDiagram = errors.New("empty d2 diagram")
	// ErrUnsupportedLayout is returned for layout engines other than dagre and elk.
	ErrUnsupportedLayout = errors.New("unsupported d2 layout")
)

// Renderer compiles D2 on the server. Layout choices are left to the
// diagram's own vars block.
type Renderer struct {
	logger  *slog.Logger
	timeout time.Duration
	themeID int64
	cache   *ttlcache.Cache[string, Result]
	group   singleflight.Group
}

// Options configure a Renderer. Zero values pick the defaults.
type Options struct {
	Timeout time.Duration
	// Dark selects the dark flagship theme instead of the neutral default.
	Dark bool
	// CacheTTL bounds how long a compiled diagram is reused.
	CacheTTL time.Duration
	// CacheSize caps the number of cached diagrams; negative disables caching.
	CacheSize int
}

// New returns a Renderer. opts may be nil.
func New(logger *slog.Logger, opts *Options) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := Options{Timeout: defaultTimeout, CacheTTL: defaultCacheTTL, CacheSize: defaultCapacity}
	if opts != nil {
		if opts.Timeout > 0 {
			cfg.Timeout = opts.Timeout
		}
		if opts.CacheTTL > 0 {
			cfg.CacheTTL = opts.CacheTTL
		}
		if opts.CacheSize != 0 {
			cfg.CacheSize = opts.CacheSize
		}
		cfg.Dark = opts.Dark
	}

	r := &Renderer{
		logger:  logger.With("component", "d2"),
		timeout: cfg.Timeout,
		themeID: d2themescatalog.NeutralDefault.ID,
	}
	if cfg.Dark {
		r.themeID = d2themescatalog.DarkFlagshipTerrastruct.ID
	}
	if cfg.CacheSize > 0 {
		r.cache = ttlcache.New[string, Result](
			ttlcache.WithTTL[string, Result](cfg.CacheTTL),
			ttlcache.WithCapacity[string, Result](uint64(cfg.CacheSize)),
		)
	}
	return r
}

// Render compiles source into SVG, reusing an earlier result for identical
// source when one is cached.
func (r *Renderer) Render(ctx context.Context, source string) (Result, error) {
	if strings.TrimSpace(source) == "" {
		return Result{}, ErrEmptyDiagram
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key := sourceKey(source)
	if r.cache != nil {
		if item := r.cache.Get(key); item != nil {
			res := item.Value()
			res.Cached = true
			return res, nil
		}
	}

	v, err, shared := r.group.Do(key, func() (any, error) {
		res, err := r.compile(ctx, source)
		if err != nil {
			return Result{}, err
		}
		if r.cache != nil {
			r.cache.Set(key, res, ttlcache.DefaultTTL)
		}
		return res, nil
	})
	if err != nil {
		return Result{}, err
	}
	res, _ := v.(Result)
	res.Cached = shared
	return res, nil
}

// Len reports how many compiled diagrams are cached.
func (r *Renderer) Len() int {
	if r.cache == nil {
		return 0
	}
	return r.cache.Len()
}

func (r *Renderer) compile(ctx context.Context, source string) (Result, error) {
	ctx = d2log.With(ctx, r.logger)
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// Rulers keep per-font state and are not safe to share between compiles.
	ruler, err := textmeasure.NewRuler()
	if err != nil {
		return Result{}, fmt.Errorf("init ruler: %w", err)
	}

	themeID := r.themeID
	pad := int64(d2svg.DEFAULT_PADDING)
	renderOpts := &d2svg.RenderOpts{ThemeID: &themeID, Pad: &pad}

	start := time.Now()
	diagram, _, err := d2lib.Compile(ctx, source, &d2lib.CompileOptions{
		Ruler:          ruler,
		LayoutResolver: layoutResolver,
	}, renderOpts)
	if err != nil {
		return Result{}, fmt.Errorf("compile d2: %w", err)
	}
	if diagram == nil {
		return Result{}, errors.New("d2 compiler returned nil diagram")
	}

	svg, err := d2svg.Render(diagram, renderOpts)
	if err != nil {
		return Result{}, fmt.Errorf("render svg: %w", err)
	}

	elapsed := time.Since(start)
	r.logger.Debug("compiled diagram", slog.Duration("duration", elapsed), slog.Int("bytes", len(svg)))
	return Result{SVG: string(svg), Duration: elapsed}, nil
}

func sourceKey(source string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(source)))
	return hex.EncodeToString(sum[:])
}

func layoutResolver(engine string) (d2graph.LayoutGraph, error) {
	var layout func(context.Context, *d2graph.Graph) error
	switch strings.ToLower(engine) {
	case "", "dagre":
		layout = func(ctx context.Context, g *d2graph.Graph) error { return d2dagrelayout.Layout(ctx, g, nil) }
	case "elk":
		layout = func(ctx context.Context, g *d2graph.Graph) error { return d2elklayout.Layout(ctx, g, nil) }
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedLayout, engine)
	}
	return layout, nil
}
