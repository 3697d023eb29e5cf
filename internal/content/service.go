// Package content watches the wiki's content root, keeps the navigation tree
// current and serves rendered pages to the HTTP layer.
package content

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/euforicio/techtips/internal/content/tree"
	"github.com/euforicio/techtips/internal/renderer"
)

// Event types broadcast to subscribers.
const (
	EventTreeUpdated = "treeUpdated"
	EventDeleted     = "deleted"
	EventPageUpdated = "pageUpdated"
	EventUnknown     = "unknown"
)

// ErrInvalidPath is returned for document paths outside the content root.
var ErrInvalidPath = errors.New("invalid document path")

// Event describes change notifications emitted to subscribers.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Path      string    `json:"path,omitempty"`
}

// Source is the raw markdown of a page together with its modification time.
type Source struct {
	Path     string
	Modified time.Time
	Content  []byte
}

// Service coordinates content rendering, the navigation tree and change notifications.
type Service struct {
	ctx           context.Context
	logger        *slog.Logger
	watcher       *fsnotify.Watcher
	renderer      *renderer.Service
	cancel        context.CancelFunc
	tree          atomic.Pointer[tree.Node]
	subscribers   map[uint64]*subscriber
	root          string
	excludeDirs   []string
	subCounter    atomic.Uint64
	subsMu        sync.RWMutex
	rebuildMu     sync.Mutex
	includeHidden bool
}

type subscriber struct {
	ctx context.Context
	ch  chan Event
}

// Options configures the content service.
type Options struct {
	ExcludeDirs   []string
	IncludeHidden bool
	// DisableWatcher skips fsnotify; the tree is built once at start.
	DisableWatcher bool
}

// NewService builds the initial tree for root and starts watching it.
func NewService(parentCtx context.Context, root string, rendererSvc *renderer.Service, logger *slog.Logger, opts Options) (*Service, error) {
	if root == "" {
		return nil, errors.New("root directory must be provided")
	}
	if rendererSvc == nil {
		return nil, errors.New("renderer service must be provided")
	}
	if logger == nil {
		logger = slog.Default()
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	ctx, cancel := context.WithCancel(parentCtx)

	svc := &Service{
		root:          absRoot,
		renderer:      rendererSvc,
		includeHidden: opts.IncludeHidden,
		excludeDirs:   opts.ExcludeDirs,
		logger:        logger.With("component", "content_service"),
		ctx:           ctx,
		cancel:        cancel,
		subscribers:   make(map[uint64]*subscriber),
	}

	if err := svc.initTree(ctx); err != nil {
		cancel()
		return nil, err
	}

	if !opts.DisableWatcher {
		if err := svc.startWatcher(); err != nil {
			cancel()
			return nil, err
		}
	}

	return svc, nil
}

// Close stops the watcher and closes every subscriber channel.
func (s *Service) Close() error {
	s.cancel()
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// Root returns the absolute content root.
func (s *Service) Root() string {
	return s.root
}

// CurrentTree returns the cached tree snapshot.
func (s *Service) CurrentTree(ctx context.Context) (*tree.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := s.tree.Load()
	if n == nil {
		return nil, errors.New("tree not initialized")
	}
	return n, nil
}

// Source reads the raw markdown of a page by relative path. A missing
// ".md" extension is added.
func (s *Service) Source(ctx context.Context, relPath string) (Source, error) {
	if err := ctx.Err(); err != nil {
		return Source{}, err
	}

	rel, abs, err := s.ResolvePath(relPath)
	if err != nil {
		return Source{}, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return Source{}, fmt.Errorf("stat document: %w", err)
	}
	if info.IsDir() {
		return Source{}, fmt.Errorf("path %s is a directory: %w", rel, fs.ErrNotExist)
	}

	data, err := os.ReadFile(abs) //nolint:gosec // abs is validated against root directory
	if err != nil {
		return Source{}, fmt.Errorf("read document: %w", err)
	}
	return Source{Path: rel, Modified: info.ModTime(), Content: data}, nil
}

// Document loads and renders a markdown page by relative path.
func (s *Service) Document(ctx context.Context, relPath string) (renderer.Document, error) {
	src, err := s.Source(ctx, relPath)
	if err != nil {
		return renderer.Document{}, err
	}
	return s.renderer.Render(ctx, src.Path, src.Modified, src.Content)
}

// ResolvePath validates relPath against the content root and returns the
// cleaned slash-separated relative path and the absolute file path.
func (s *Service) ResolvePath(relPath string) (string, string, error) {
	trimmed := strings.TrimSpace(relPath)
	if trimmed == "" {
		return "", "", fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(trimmed)))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "/") || filepath.VolumeName(clean) != "" {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidPath, relPath)
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidPath, relPath)
	}

	if !tree.IsMarkdown(clean) {
		clean += ".md"
	}

	abs := filepath.Join(s.root, filepath.FromSlash(clean))
	relToRoot, err := filepath.Rel(s.root, abs)
	if err != nil || relToRoot == ".." || strings.HasPrefix(relToRoot, ".."+string(os.PathSeparator)) {
		return "", "", fmt.Errorf("%w: resolved path escapes root: %s", ErrInvalidPath, relPath)
	}
	return clean, abs, nil
}

// Subscribe registers for change events. The returned channel will close when ctx is done.
func (s *Service) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 8)
	id := s.subCounter.Add(1)

	s.subsMu.Lock()
	s.subscribers[id] = &subscriber{ctx: ctx, ch: ch}
	s.subsMu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-s.ctx.Done():
		}
		s.removeSubscriber(id)
	}()

	return ch
}

// TreeOptions reports the hidden and excluded directory settings the service
// walks the root with.
func (s *Service) TreeOptions() tree.Options {
	return tree.Options{IncludeHidden: s.includeHidden, ExcludeDirs: s.excludeDirs}
}

func (s *Service) initTree(ctx context.Context) error {
	node, err := tree.Build(ctx, s.root, s.TreeOptions())
	if err != nil {
		return err
	}
	s.tree.Store(node)
	return nil
}

func (s *Service) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	s.watcher = watcher

	if err := s.watchRecursive(s.root); err != nil {
		return err
	}

	go s.runWatcher()
	return nil
}

func (s *Service) runWatcher() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(event)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("watcher error", slog.Any("err", err))
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) handleEvent(event fsnotify.Event) {
	if event.Name == "" {
		return
	}

	rel := s.relativePath(event.Name)
	op := event.Op
	s.logger.Debug("fsnotify event", slog.String("path", rel), slog.String("op", op.String()))

	isMarkdown := tree.IsMarkdown(event.Name)

	// The renderer caches by wiki-relative path.
	if isMarkdown && op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
		s.renderer.Invalidate(rel)
	}

	if op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = s.watchRecursive(event.Name)
		}
	}

	eventType := classifyEvent(event.Name, op, isMarkdown)
	if eventType == EventUnknown {
		return
	}

	rebuildOK := s.rebuildTree()
	if !rebuildOK && (eventType == EventTreeUpdated || eventType == EventDeleted) {
		s.logger.Warn("skipping tree broadcast due to rebuild failure", slog.String("path", rel))
		return
	}

	s.broadcast(Event{Type: eventType, Path: rel, Timestamp: time.Now()})
}

func (s *Service) rebuildTree() bool {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	node, err := tree.Build(ctx, s.root, s.TreeOptions())
	if err != nil {
		s.logger.Error("rebuild tree failed", slog.Any("err", err))
		return false
	}
	s.tree.Store(node)
	return true
}

func (s *Service) broadcast(evt Event) {
	s.subsMu.RLock()
	var stale []uint64
	for id, sub := range s.subscribers {
		select {
		case <-sub.ctx.Done():
			stale = append(stale, id)
		case <-s.ctx.Done():
			stale = append(stale, id)
		case sub.ch <- evt:
		default:
			// drop event when subscriber lags
		}
	}
	s.subsMu.RUnlock()

	for _, id := range stale {
		s.removeSubscriber(id)
	}
}

func (s *Service) removeSubscriber(id uint64) {
	s.subsMu.Lock()
	if sub, ok := s.subscribers[id]; ok {
		close(sub.ch)
		delete(s.subscribers, id)
	}
	s.subsMu.Unlock()
}

func (s *Service) watchRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.root && tree.Excluded(d.Name(), s.TreeOptions()) {
				return filepath.SkipDir
			}
			if err := s.watcher.Add(path); err != nil {
				s.logger.Warn("failed to watch directory", slog.String("path", path), slog.Any("err", err))
			}
		}
		return nil
	})
}

func (s *Service) relativePath(abs string) string {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}

func classifyEvent(path string, op fsnotify.Op, isMarkdown bool) string {
	switch {
	case op&fsnotify.Remove != 0:
		if isMarkdown {
			if _, err := os.Stat(path); err == nil {
				return EventPageUpdated
			}
			return EventDeleted
		}
		return EventTreeUpdated
	case op&fsnotify.Rename != 0:
		return EventTreeUpdated
	case op&(fsnotify.Write|fsnotify.Create) != 0:
		if isMarkdown {
			return EventPageUpdated
		}
		return EventTreeUpdated
	default:
		return EventUnknown
	}
}
