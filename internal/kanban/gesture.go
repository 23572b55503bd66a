package kanban

import (
	"math"
	"regexp"
	"time"
)

type PointerKind string

const (
	PointerMouse PointerKind = "mouse"
	PointerTouch PointerKind = "touch"
)

// PointerProfile sets when a press becomes a drag. Mouse profiles activate
// once the pointer is Distance pixels away from the press and Delay has
// passed since it. Touch profiles activate after the press
// has been held for Delay, and cancel if the finger moves more than Tolerance
// pixels before that.
type PointerProfile struct {
	Kind      PointerKind
	Distance  float64
	Delay     time.Duration
	Tolerance float64
}

// Capabilities describes the client device.
type Capabilities struct {
	TouchEvents    bool   `json:"touch_events"`
	MaxTouchPoints int    `json:"max_touch_points"`
	UserAgent      string `json:"user_agent"`
}

var mobileUserAgent = regexp.MustCompile(`Android|webOS|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini`)

func (c Capabilities) IsTouch() bool {
	return c.TouchEvents || c.MaxTouchPoints > 0 || mobileUserAgent.MatchString(c.UserAgent)
}

type Thresholds struct {
	MouseDistance  float64
	MouseDelay     time.Duration
	TouchDelay     time.Duration
	TouchTolerance float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MouseDistance:  10,
		MouseDelay:     100 * time.Millisecond,
		TouchDelay:     250 * time.Millisecond,
		TouchTolerance: 10,
	}
}

// ProfileFor picks the profile for a device.
func (t Thresholds) ProfileFor(c Capabilities) PointerProfile {
	if c.IsTouch() {
		return PointerProfile{Kind: PointerTouch, Delay: t.TouchDelay, Tolerance: t.TouchTolerance}
	}
	return PointerProfile{Kind: PointerMouse, Distance: t.MouseDistance, Delay: t.MouseDelay}
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

type State int

const (
	Idle State = iota
	Pending
	Dragging
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Dragging:
		return "dragging"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Result is what a completed press turned out to be.
type Result int

const (
	ResultNone Result = iota
	ResultClick
	ResultDrag
	ResultCancelled
)

func (r Result) String() string {
	switch r {
	case ResultNone:
		return "none"
	case ResultClick:
		return "click"
	case ResultDrag:
		return "drag"
	case ResultCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Tracker classifies one pointer press at a time as a click, a drag, or a
// cancelled gesture. Times and positions are supplied by the caller.
type Tracker struct {
	profile PointerProfile
	state   State
	origin  Point
	last    Point
	downAt  time.Time
}

func NewTracker(p PointerProfile) *Tracker {
	return &Tracker{profile: p}
}

func (t *Tracker) Profile() PointerProfile { return t.profile }

func (t *Tracker) State() State { return t.state }

// Down starts a new press, discarding any unfinished one.
func (t *Tracker) Down(at time.Time, p Point) State {
	t.state = Pending
	t.origin = p
	t.last = p
	t.downAt = at
	return t.state
}

// Move reports the state after the pointer moved to p at time at.
func (t *Tracker) Move(at time.Time, p Point) State {
	if t.state != Pending {
		return t.state
	}
	t.last = p
	moved := t.origin.dist(p)

	switch t.profile.Kind {
	case PointerTouch:
		if at.Sub(t.downAt) >= t.profile.Delay {
			t.state = Dragging
		} else if moved > t.profile.Tolerance {
			t.state = Cancelled
		}
	default:
		t.activateMouse(at, moved)
	}
	return t.state
}

// Poll activates a press whose delay has run out while the pointer stood
// still: a held touch, or a mouse that already travelled far enough.
func (t *Tracker) Poll(at time.Time) State {
	if t.state != Pending {
		return t.state
	}
	switch t.profile.Kind {
	case PointerTouch:
		if at.Sub(t.downAt) >= t.profile.Delay {
			t.state = Dragging
		}
	default:
		t.activateMouse(at, t.origin.dist(t.last))
	}
	return t.state
}

func (t *Tracker) activateMouse(at time.Time, moved float64) {
	if moved >= t.profile.Distance && at.Sub(t.downAt) >= t.profile.Delay {
		t.state = Dragging
	}
}

// Up ends the press.
func (t *Tracker) Up(at time.Time, p Point) Result {
	state := t.Move(at, p)
	t.state = Idle

	switch state {
	case Pending:
		return ResultClick
	case Dragging:
		return ResultDrag
	case Cancelled:
		return ResultCancelled
	}
	return ResultNone
}

// Reset abandons the current press.
func (t *Tracker) Reset() {
	t.state = Idle
}
