package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cuckooeats/backoffice/internal/detail"
	"github.com/cuckooeats/backoffice/internal/enum"
	"github.com/cuckooeats/backoffice/internal/history"
	"github.com/cuckooeats/backoffice/internal/kanban"
	"github.com/cuckooeats/backoffice/internal/metrics"
	"github.com/cuckooeats/backoffice/internal/order"
	"github.com/cuckooeats/backoffice/internal/realtime"
	"github.com/cuckooeats/backoffice/internal/store"
)

const (
	sendBuffer        = 256
	permissionTimeout = time.Minute
)

var (
	errAudioLocked   = errors.New("audio playback not unlocked by the user")
	errNotPermitted  = errors.New("notifications not permitted")
	errUnknownType   = errors.New("unknown message type")
	errHelloRequired = errors.New("hello must be the first message")
)

// Deps are the process-wide collaborators every session is built from.
type Deps struct {
	Repo       store.Repository
	Feed       realtime.Feed
	Thresholds kanban.Thresholds
	Location   *time.Location
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Session is one staff member's live board. It owns its own order store,
// change listener, board, detail panel, gesture tracker and history filter.
// Messages for the browser are queued on Out.
type Session struct {
	deps   Deps
	logger *zap.Logger

	store    *store.Store
	listener *realtime.Listener
	board    *kanban.Board
	detail   *detail.Controller

	ctx    context.Context
	cancel context.CancelFunc
	out    chan []byte
	wg     sync.WaitGroup

	// Touched only by the goroutine calling Handle.
	tracker *kanban.Tracker
	pressed int64

	mu            sync.Mutex
	started       bool
	closed        bool
	permission    realtime.Permission
	audioUnlocked bool
	filter        *history.Date
	permReply     chan realtime.Permission
}

// NewSession builds a session bound to ctx. Nothing is fetched until the
// client says hello.
func NewSession(ctx context.Context, deps Deps, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	ctx, cancel := context.WithCancel(ctx)

	s := &Session{
		deps:       deps,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		out:        make(chan []byte, sendBuffer),
		tracker:    kanban.NewTracker(deps.Thresholds.ProfileFor(kanban.Capabilities{})),
		permission: realtime.PermissionDefault,
		permReply:  make(chan realtime.Permission, 1),
	}
	s.store = store.New(deps.Repo, logger)
	s.listener = realtime.NewListener(deps.Feed, s.store.FetchOrders, s, s, logger, deps.Metrics)
	s.store.SetSubscriber(s.listener)
	s.board = kanban.NewBoard(s.store)
	s.detail = detail.NewController(s.store)

	deps.Metrics.SessionOpened()
	return s
}

// Out carries encoded envelopes for the browser.
func (s *Session) Out() <-chan []byte { return s.out }

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// Close stops the session and releases its subscription. Safe to call more
// than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.store.Close()
	s.deps.Metrics.SessionClosed()
}

// Handle processes one message from the browser. Errors are returned for
// malformed input; workflow failures are reported to the browser as toasts.
func (s *Session) Handle(data []byte) error {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started && env.Type != enum.MsgHello {
		return errHelloRequired
	}

	switch env.Type {
	case enum.MsgHello:
		var p helloPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		s.hello(p)
	case enum.MsgPermission:
		var p permissionPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		s.setPermission(p.Permission)
	case enum.MsgAudioUnlocked:
		s.mu.Lock()
		s.audioUnlocked = true
		s.mu.Unlock()
	case enum.MsgPointer:
		var p pointerPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		s.pointer(p)
	case enum.MsgDragStart:
		var p dragStartPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		if s.board.DragStart(p.OrderID) {
			s.pushSnapshot()
		}
	case enum.MsgDragEnd:
		var p dragEndPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		s.dragEnd(p.Over)
	case enum.MsgDragCancel:
		s.board.DragCancel()
		s.pushSnapshot()
	case enum.MsgCardClick:
		var p cardClickPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		s.openCard(p.OrderID)
	case enum.MsgDetailStatus:
		var p detailStatusPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		if _, err := s.detail.ChangeStatus(s.ctx, p.Status); err != nil {
			s.toastError(err)
		}
	case enum.MsgDetailClose:
		s.detail.Close()
	case enum.MsgHistoryFilter:
		var p historyFilterPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		s.setHistoryFilter(p.Date)
	case enum.MsgRefresh:
		if err := s.store.FetchOrders(s.ctx); err != nil {
			s.toastError(err)
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownType, env.Type)
	}
	return nil
}

func decodePayload(env Envelope, dst any) error {
	if len(env.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return nil
}

// hello picks the pointer profile and, the first time, starts the store and
// the state stream.
func (s *Session) hello(p helloPayload) {
	profile := s.deps.Thresholds.ProfileFor(p.Capabilities)
	s.tracker = kanban.NewTracker(profile)
	s.send(enum.MsgProfile, profilePayload{
		Kind:      profile.Kind,
		Distance:  profile.Distance,
		DelayMS:   profile.Delay.Milliseconds(),
		Tolerance: profile.Tolerance,
	})

	s.mu.Lock()
	if p.Permission != "" {
		s.permission = p.Permission
	}
	s.audioUnlocked = s.audioUnlocked || p.AudioUnlocked
	first := !s.started
	s.started = true
	s.mu.Unlock()

	if !first {
		return
	}

	s.wg.Add(2)
	go s.watch()
	go func() {
		defer s.wg.Done()
		// Start may block on the permission prompt, which is answered
		// through Handle.
		if err := s.store.Start(s.ctx); err != nil {
			s.toastError(err)
		}
	}()
}

// watch pushes a snapshot after every store change.
func (s *Session) watch() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.store.Changes():
			s.pushSnapshot()
		}
	}
}

func (s *Session) pointer(p pointerPayload) {
	at := time.Now()
	if p.T > 0 {
		at = time.UnixMilli(p.T)
	}
	pt := kanban.Point{X: p.X, Y: p.Y}

	switch p.Phase {
	case phaseDown:
		s.pressed = p.OrderID
		s.tracker.Down(at, pt)
	case phaseMove, phaseHold:
		before := s.tracker.State()
		var after kanban.State
		if p.Phase == phaseHold {
			after = s.tracker.Poll(at)
		} else {
			after = s.tracker.Move(at, pt)
		}
		if before != kanban.Dragging && after == kanban.Dragging {
			if s.board.DragStart(s.pressed) {
				s.pushSnapshot()
			}
		}
	case phaseUp:
		_, dragging := s.board.Active()
		switch s.tracker.Up(at, pt) {
		case kanban.ResultClick:
			s.openCard(s.pressed)
		case kanban.ResultDrag:
			if !dragging {
				s.board.DragStart(s.pressed)
			}
			s.dragEnd(p.Over)
		case kanban.ResultCancelled:
			s.board.DragCancel()
			s.pushSnapshot()
		}
		s.pressed = 0
	}
}

func (s *Session) dragEnd(over *order.Status) {
	outcome, err := s.board.DragEnd(s.ctx, over)
	s.logger.Debug("drag ended", zap.Stringer("outcome", outcome))
	if err != nil {
		s.toastError(err)
	}
	// No-op drops change nothing in the store; redraw without the overlay.
	s.pushSnapshot()
}

func (s *Session) openCard(id int64) {
	o, ok := s.board.Click(id)
	if !ok {
		return
	}
	s.detail.Open(o)
}

func (s *Session) setHistoryFilter(raw string) {
	if raw == "" {
		s.mu.Lock()
		s.filter = nil
		s.mu.Unlock()
		s.pushSnapshot()
		return
	}
	d, err := history.ParseDate(raw)
	if err != nil {
		s.toast("error", err.Error())
		return
	}
	s.mu.Lock()
	s.filter = &d
	s.mu.Unlock()
	s.pushSnapshot()
}

func (s *Session) setPermission(p realtime.Permission) {
	s.mu.Lock()
	s.permission = p
	s.mu.Unlock()
	select {
	case s.permReply <- p:
	default:
	}
}

func (s *Session) pushSnapshot() {
	snap := s.store.Snapshot()

	s.mu.Lock()
	filter := s.filter
	s.mu.Unlock()

	res := history.Delivered(snap.Orders, filter, s.deps.Location)
	hv := historyView{Orders: res.Orders}
	if filter != nil {
		hv.Date = filter.String()
	}
	if res.Empty != history.EmptyNone {
		hv.Empty = res.Empty.String()
		hv.Message = res.Empty.Message()
	}

	payload := snapshotPayload{
		Columns:    s.board.Columns(snap.Orders),
		Overlay:    s.board.Overlay(),
		Loading:    snap.Loading,
		Error:      snap.Error,
		DetailOpen: snap.DetailViewOpen,
		History:    hv,
	}
	if snap.SelectedOrder != nil {
		v := detail.Build(*snap.SelectedOrder)
		payload.Detail = &v
	}
	s.send(enum.MsgSnapshot, payload)
}

func (s *Session) toastError(err error) {
	s.toast("error", order.UserMessage(err))
}

func (s *Session) toast(level, msg string) {
	s.send(enum.MsgToast, toastPayload{Level: level, Message: msg})
}

// send queues a message. A full queue drops the message.
func (s *Session) send(typ string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("encode websocket payload", zap.String("type", typ), zap.Error(err))
		return
	}
	data, err := json.Marshal(Envelope{Type: typ, Payload: raw})
	if err != nil {
		s.logger.Error("encode websocket envelope", zap.String("type", typ), zap.Error(err))
		return
	}

	select {
	case <-s.ctx.Done():
	case s.out <- data:
	default:
		s.logger.Warn("websocket send queue full, dropping message", zap.String("type", typ))
	}
}

// ── realtime.Notifier and realtime.SoundPlayer, forwarded to the browser ──

func (s *Session) Permission(context.Context) realtime.Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission
}

// RequestPermission prompts the browser and waits for its answer.
func (s *Session) RequestPermission(ctx context.Context) (realtime.Permission, error) {
	// Drop any stale answer.
	select {
	case <-s.permReply:
	default:
	}
	s.send(enum.MsgPermissionRequest, struct{}{})

	timer := time.NewTimer(permissionTimeout)
	defer timer.Stop()
	select {
	case p := <-s.permReply:
		return p, nil
	case <-timer.C:
		return s.Permission(ctx), errors.New("permission prompt timed out")
	case <-ctx.Done():
		return s.Permission(ctx), ctx.Err()
	}
}

func (s *Session) Notify(ctx context.Context, title, body string) error {
	if s.Permission(ctx) != realtime.PermissionGranted {
		return errNotPermitted
	}
	s.send(enum.MsgNotify, notifyPayload{Title: title, Body: body})
	return nil
}

func (s *Session) Play(context.Context) error {
	s.mu.Lock()
	unlocked := s.audioUnlocked
	s.mu.Unlock()
	if !unlocked {
		return errAudioLocked
	}
	s.send(enum.MsgSound, struct{}{})
	return nil
}
