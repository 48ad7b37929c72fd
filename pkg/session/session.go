// Package session owns one image in the editor: the untouched original, the
// transform state, the crop tracker and the derived display image. Gesture
// handlers call into it synchronously; Process renders the final crop.
package session

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/menta2k/cropkit/pkg/crop"
	"github.com/menta2k/cropkit/pkg/geometry"
	"github.com/menta2k/cropkit/pkg/transform"
	"github.com/menta2k/cropkit/pkg/types"
)

// ErrNoChanges is returned by callers that refuse to persist a no-op edit
var ErrNoChanges = errors.New("no changes to process")

// Phase is the lifecycle position of a session
type Phase int

const (
	PhaseUnedited Phase = iota
	PhaseEditing
	PhaseCommitted
)

func (p Phase) String() string {
	switch p {
	case PhaseUnedited:
		return "unedited"
	case PhaseEditing:
		return "editing"
	case PhaseCommitted:
		return "committed"
	}
	return "unknown"
}

// Snapshot is a consistent view of the session delivered to observers
type Snapshot struct {
	ID      string
	Phase   Phase
	State   transform.State
	Region  geometry.Rect
	Editor  geometry.Size
	Zone    crop.Zone
	Changed bool
}

// Observer receives a snapshot after every committed change
type Observer func(Snapshot)

// Result is the output of Process
type Result struct {
	// Image is nil when Changed is false.
	Image   *image.NRGBA
	Params  types.EditParams
	Changed bool
}

// Session is one image in the editor.
type Session struct {
	mu sync.Mutex

	id         string
	cfg        crop.Config
	viewport   geometry.Size
	resume     *types.EditParams
	shape      *crop.Shape
	maxAspect  *float64
	dispatcher Dispatcher

	original  image.Image
	displayed *image.NRGBA
	state     transform.State
	editor    geometry.Size
	tracker   *crop.Tracker
	phase     Phase

	// identity layout, restored by Reset
	initialEditor geometry.Size
	initialRegion geometry.Rect
	// what Process compares against to decide whether anything changed
	baseState  transform.State
	baseRegion geometry.Rect

	observers map[int]Observer
	nextObs   int
}

// Option configures a Session
type Option func(*Session)

// WithConfig sets the crop interaction constants
func WithConfig(cfg crop.Config) Option {
	return func(s *Session) { s.cfg = cfg }
}

// WithViewport fits the image into a viewport of this size in editor units.
// Without it one editor unit is one source pixel.
func WithViewport(size geometry.Size) Option {
	return func(s *Session) { s.viewport = size }
}

// WithParams resumes a previous edit. The stored shape and aspect cap replace
// the configured ones unless WithShape or WithMaxAspect is also given.
func WithParams(p types.EditParams) Option {
	return func(s *Session) { s.resume = &p }
}

// WithShape sets the crop shape, taking precedence over a resumed edit's
func WithShape(shape crop.Shape) Option {
	return func(s *Session) { s.shape = &shape }
}

// WithMaxAspect sets the height/width cap, taking precedence over a resumed
// edit's. Zero removes the cap.
func WithMaxAspect(maxAspect float64) Option {
	return func(s *Session) { s.maxAspect = &maxAspect }
}

// WithDispatcher routes observer callbacks and async results
func WithDispatcher(d Dispatcher) Option {
	return func(s *Session) { s.dispatcher = d }
}

// New opens a session for img
func New(img image.Image, opts ...Option) (*Session, error) {
	if img == nil {
		return nil, fmt.Errorf("session: nil image")
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("session: empty image %v", b)
	}

	s := &Session{
		id:         uuid.NewString(),
		cfg:        crop.DefaultConfig(),
		dispatcher: Inline,
		original:   img,
		observers:  make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resume != nil {
		if s.resume.SessionID != "" {
			s.id = s.resume.SessionID
		}
		s.cfg.Shape = s.resume.Shape
		s.cfg.MaxAspectRatio = s.resume.MaxAspectRatio
	}
	if s.shape != nil {
		s.cfg.Shape = *s.shape
	}
	if s.maxAspect != nil {
		s.cfg.MaxAspectRatio = *s.maxAspect
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	pixels := geometry.SizeOf(b)
	if s.viewport.Empty() {
		s.initialEditor = pixels
	} else {
		s.initialEditor = pixels.Fit(s.viewport)
	}
	s.initialRegion = crop.InitialRegion(s.initialEditor, s.cfg)
	if !crop.IsValid(s.initialRegion, s.initialEditor, s.cfg.MinimumSize) {
		return nil, fmt.Errorf("session: image %vx%v too small for minimum crop %v",
			s.initialEditor.Width, s.initialEditor.Height, s.cfg.MinimumSize)
	}

	s.state = transform.Identity()
	s.editor = s.initialEditor
	region := s.initialRegion

	if s.resume != nil {
		var err error
		if s.state, s.editor, region, err = s.resumeLayout(*s.resume); err != nil {
			return nil, err
		}
	}

	s.baseState = s.state
	s.baseRegion = region
	if s.resume != nil && !fitsConstraints(region, s.cfg) {
		// The stored crop predates a new shape or cap: start over from the
		// default crop of the resumed orientation.
		region = crop.InitialRegion(s.editor, s.cfg)
		slog.Info("stored crop does not fit the shape or aspect cap, reframing",
			"id", s.id, "shape", s.cfg.Shape.String(), "max_aspect", s.cfg.MaxAspectRatio)
	}

	s.tracker = crop.NewTracker(s.cfg, s.editor, region)
	s.displayed = transform.Orient(s.original, s.state)

	slog.Debug("session opened", "id", s.id, "editor", s.editor, "region", region.String(), "resumed", s.resume != nil)
	return s, nil
}

// resumeLayout maps stored params onto this session's editor size
func (s *Session) resumeLayout(p types.EditParams) (transform.State, geometry.Size, geometry.Rect, error) {
	if err := p.Validate(); err != nil {
		return transform.State{}, geometry.Size{}, geometry.Rect{}, fmt.Errorf("session: resume: %w", err)
	}
	state := p.State()
	editor := s.initialEditor
	if state.Rotation%2 == 1 {
		editor = editor.Swapped()
	}
	kx, ky := editor.Width/p.Editor.Width, editor.Height/p.Editor.Height
	region := p.Crop.Scale(kx, ky)
	state.Offset = geometry.Point{X: state.Offset.X * kx, Y: state.Offset.Y * ky}
	if !crop.IsValid(region, editor, s.cfg.MinimumSize) {
		return transform.State{}, geometry.Size{}, geometry.Rect{},
			fmt.Errorf("session: resume: %w: crop %s invalid in editor %vx%v",
				types.ErrInvalidParams, region, editor.Width, editor.Height)
	}
	return state, editor, region, nil
}

// fitsConstraints reports whether r already has the shape and aspect cap of cfg
func fitsConstraints(r geometry.Rect, cfg crop.Config) bool {
	if cfg.Shape.Fixed() && math.Abs(r.Width-r.Height) > geometry.Epsilon {
		return false
	}
	return cfg.MaxAspectRatio <= 0 || r.AspectRatio() <= cfg.MaxAspectRatio+geometry.Epsilon
}

// ID identifies the session in logs and sidecar files
func (s *Session) ID() string { return s.id }

// Config returns the crop constants in force
func (s *Session) Config() crop.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// DisplayedImage returns the original under the current rotation and mirrors
func (s *Session) DisplayedImage() *image.NRGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayed
}

// Original returns the untouched source image
func (s *Session) Original() image.Image { return s.original }

// Region returns the committed crop rect in editor units
func (s *Session) Region() geometry.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Region()
}

// State returns the transform state
func (s *Session) State() transform.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Phase returns the lifecycle phase
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Snapshot returns a consistent view of the session
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:      s.id,
		Phase:   s.phase,
		State:   s.state,
		Region:  s.tracker.Region(),
		Editor:  s.editor,
		Zone:    s.tracker.Zone(),
		Changed: s.hasChangesLocked(),
	}
}

// HasChanges reports whether the crop or transform differ from what the
// session was opened with.
func (s *Session) HasChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasChangesLocked()
}

func (s *Session) hasChangesLocked() bool {
	return !sameState(s.state, s.baseState) ||
		!s.tracker.Region().ApproxEqual(s.baseRegion, geometry.Epsilon)
}

// RequiresProcessing reports whether Process must render even without user
// changes, because the source does not already satisfy the crop constraints.
func (s *Session) RequiresProcessing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requiresProcessingLocked()
}

func (s *Session) requiresProcessingLocked() bool {
	b := s.original.Bounds()
	switch s.cfg.Shape {
	case crop.ShapeCircle:
		return true
	case crop.ShapeSquare:
		if b.Dx() != b.Dy() {
			return true
		}
	}
	if s.cfg.MaxAspectRatio > 0 {
		ratio := float64(b.Dy()) / float64(b.Dx())
		return ratio > s.cfg.MaxAspectRatio+geometry.Epsilon
	}
	return false
}

// Params serializes the current edit
func (s *Session) Params() types.EditParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paramsLocked()
}

func (s *Session) paramsLocked() types.EditParams {
	p := types.EditParams{
		Version:        types.ParamsVersion,
		SessionID:      s.id,
		Crop:           s.tracker.Region(),
		Editor:         s.editor,
		Shape:          s.cfg.Shape,
		MaxAspectRatio: s.cfg.MaxAspectRatio,
	}
	p.SetState(s.state)
	return p
}

// BeginDrag starts a drag at p and returns the zone that was grabbed
func (s *Session) BeginDrag(p geometry.Point) crop.Zone {
	s.mu.Lock()
	z := s.tracker.Begin(p)
	s.mu.Unlock()
	return z
}

// DragTo continues the drag to p. It reports whether the crop changed.
func (s *Session) DragTo(p geometry.Point) bool {
	return s.mutate(func() bool { return s.tracker.Move(p) })
}

// Drag applies a raw (dx, dy) step to the current drag
func (s *Session) Drag(dx, dy float64) bool {
	return s.mutate(func() bool { return s.tracker.Apply(dx, dy) })
}

// EndDrag finishes the current drag
func (s *Session) EndDrag() {
	s.mu.Lock()
	s.tracker.End()
	s.mu.Unlock()
}

// Rotate turns the image a quarter turn counter-clockwise, carrying the crop
// along. The crop stays valid.
func (s *Session) Rotate() {
	s.mutate(func() bool {
		s.tracker.End()
		state, region, editor := transform.Rotate(s.state, s.tracker.Region(), s.editor, s.cfg.MaxAspectRatio, s.cfg.MinimumSize)
		s.applyLayout(state, editor, region)
		return true
	})
}

// Flip mirrors the image left to right, carrying the crop along
func (s *Session) Flip() {
	s.mutate(func() bool {
		s.tracker.End()
		state, region := transform.Flip(s.state, s.tracker.Region(), s.editor)
		s.applyLayout(state, s.editor, region)
		return true
	})
}

// Zoom sets the zoom scale; the pan offset is pulled back if the zoomed image
// would no longer cover the editor.
func (s *Session) Zoom(scale float64) {
	s.mutate(func() bool {
		next := transform.Zoom(s.state, scale, s.editor, s.editor)
		changed := next != s.state
		s.state = next
		return changed
	})
}

// Pan moves the zoomed image to offset. Offsets that would uncover the editor
// are rejected and Pan reports false.
func (s *Session) Pan(offset geometry.Point) bool {
	return s.mutate(func() bool {
		next, ok := transform.Pan(s.state, offset, s.editor, s.editor)
		if !ok {
			slog.Debug("pan rejected", "id", s.id, "offset", offset)
			return false
		}
		s.state = next
		return true
	})
}

// PanBy moves the current offset by (dx, dy)
func (s *Session) PanBy(dx, dy float64) bool {
	s.mu.Lock()
	target := s.state.Offset.Add(geometry.Point{X: dx, Y: dy})
	s.mu.Unlock()
	return s.Pan(target)
}

// Reset returns to the identity transform and initial crop. The session
// stays in the editing phase.
func (s *Session) Reset() {
	s.mutate(func() bool {
		s.tracker.End()
		s.applyLayout(transform.Identity(), s.initialEditor, s.initialRegion)
		return true
	})
}

func (s *Session) applyLayout(state transform.State, editor geometry.Size, region geometry.Rect) {
	reorient := state.Rotation != s.state.Rotation ||
		state.FlipHorizontal != s.state.FlipHorizontal ||
		state.FlipVertical != s.state.FlipVertical
	s.state = state
	s.editor = editor
	s.tracker.SetLimit(editor)
	s.tracker.SetRegion(region)
	if reorient {
		s.displayed = transform.Orient(s.original, state)
	}
}

// mutate runs fn under the lock and, if it changed anything, moves the
// session into the editing phase and notifies observers.
func (s *Session) mutate(fn func() bool) bool {
	s.mu.Lock()
	changed := fn()
	if !changed {
		s.mu.Unlock()
		return false
	}
	s.phase = PhaseEditing
	snap := s.snapshotLocked()
	observers := s.observersLocked()
	s.mu.Unlock()

	s.notify(snap, observers)
	return true
}

// Process renders the crop. When nothing changed and the source already
// satisfies the crop constraints it returns a Result with Changed false and
// no image.
func (s *Session) Process() (Result, error) {
	s.mu.Lock()
	job, skip := s.jobLocked()
	s.mu.Unlock()

	if skip {
		s.markCommitted()
		return Result{Params: job.params}, nil
	}
	res, err := job.run()
	if err != nil {
		return Result{}, err
	}
	s.markCommitted()
	return res, nil
}

// ProcessAsync renders in a new goroutine and delivers the result through the
// session's Dispatcher. The state is captured when ProcessAsync is called;
// later edits do not affect the result.
func (s *Session) ProcessAsync(done func(Result, error)) {
	s.mu.Lock()
	job, skip := s.jobLocked()
	d := s.dispatcher
	s.mu.Unlock()

	go func() {
		var (
			res Result
			err error
		)
		if skip {
			res = Result{Params: job.params}
		} else {
			res, err = job.run()
		}
		d.Dispatch(func() {
			// Already on the owner's context: observers run here directly.
			if err == nil {
				snap, observers := s.commit()
				for _, o := range observers {
					o(snap)
				}
			}
			done(res, err)
		})
	}()
}

func (s *Session) markCommitted() {
	s.notify(s.commit())
}

func (s *Session) commit() (Snapshot, []Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = PhaseCommitted
	return s.snapshotLocked(), s.observersLocked()
}

type renderJob struct {
	displayed *image.NRGBA
	state     transform.State
	region    geometry.Rect
	editor    geometry.Size
	shape     crop.Shape
	params    types.EditParams
}

func (s *Session) jobLocked() (renderJob, bool) {
	job := renderJob{
		displayed: s.displayed,
		state:     s.state,
		region:    s.tracker.Region(),
		editor:    s.editor,
		shape:     s.cfg.Shape,
		params:    s.paramsLocked(),
	}
	skip := !s.hasChangesLocked() && !s.requiresProcessingLocked()
	return job, skip
}

func (j renderJob) run() (Result, error) {
	out, err := transform.Render(j.displayed, j.state, j.region, j.editor)
	if err != nil {
		slog.Warn("crop render failed", "session", j.params.SessionID, "error", err)
		return Result{}, fmt.Errorf("session %s: %w", j.params.SessionID, err)
	}
	if j.shape == crop.ShapeCircle {
		out = MaskCircle(out)
	}
	slog.Debug("crop rendered", "session", j.params.SessionID, "size", out.Bounds().Size())
	return Result{Image: out, Params: j.params, Changed: true}, nil
}

// Apply renders stored params against img without opening an editor. The
// crop scales to img's size, so params saved against a preview apply to the
// full resolution original.
func Apply(img image.Image, p types.EditParams) (*image.NRGBA, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("apply: empty image")
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}

	state := p.State()
	displayed := transform.Orient(img, state)
	editor := geometry.SizeOf(displayed.Bounds())
	kx, ky := editor.Width/p.Editor.Width, editor.Height/p.Editor.Height
	state.Offset = geometry.Point{X: state.Offset.X * kx, Y: state.Offset.Y * ky}

	job := renderJob{
		displayed: displayed,
		state:     state,
		region:    p.Crop.Scale(kx, ky),
		editor:    editor,
		shape:     p.Shape,
		params:    p,
	}
	res, err := job.run()
	if err != nil {
		return nil, err
	}
	return res.Image, nil
}

func sameState(a, b transform.State) bool {
	a, b = a.Normalize(), b.Normalize()
	return a.Rotation == b.Rotation &&
		a.FlipHorizontal == b.FlipHorizontal &&
		a.FlipVertical == b.FlipVertical &&
		math.Abs(a.Scale-b.Scale) <= 1e-9 &&
		math.Abs(a.Offset.X-b.Offset.X) <= geometry.Epsilon &&
		math.Abs(a.Offset.Y-b.Offset.Y) <= geometry.Epsilon
}
