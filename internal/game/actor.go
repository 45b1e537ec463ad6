package game

import (
	"context"
	"sync"
	"time"

	"github.com/kotgame/kot-server-go/internal/game/rules"
	"go.uber.org/zap"
)

// ErrRoomClosed is returned for work sent to a stopped actor.
var ErrRoomClosed = &Error{Kind: KindRoomNotFound, Message: "room is closed"}

// Actor owns a Machine and runs every operation on it from a single
// goroutine. It also arms the per-phase timeout.
type Actor struct {
	machine  *Machine
	mailbox  chan func()
	timeout  time.Duration
	logger   *zap.Logger
	recorder *ReplayRecorder

	onGameOver func(Result)

	// owned by the run goroutine
	replay     *Replay
	timer      *time.Timer
	armedFor   uint64
	reportDone bool

	stopOnce sync.Once
	stopped  chan struct{}
	done     chan struct{}
}

// ActorOption customizes an Actor.
type ActorOption func(*Actor)

// WithPhaseTimeout auto-resolves a phase after d of inactivity. Zero disables it.
func WithPhaseTimeout(d time.Duration) ActorOption {
	return func(a *Actor) { a.timeout = d }
}

// WithGameOver registers a callback invoked once on the actor goroutine
// when the game ends. fn must not block.
func WithGameOver(fn func(Result)) ActorOption {
	return func(a *Actor) { a.onGameOver = fn }
}

// WithReplay records a snapshot after every accepted operation.
func WithReplay(recorder *ReplayRecorder) ActorOption {
	return func(a *Actor) { a.recorder = recorder }
}

// NewActor wraps m. Call Run to start processing.
func NewActor(m *Machine, logger *zap.Logger, opts ...ActorOption) *Actor {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Actor{
		machine: m,
		mailbox: make(chan func(), 32),
		logger:  logger.With(zap.Int("room_id", m.RoomID())),
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.recorder != nil {
		a.replay = a.recorder.StartRecording(m.RoomID())
	}
	return a
}

// Run processes the mailbox until ctx is cancelled or Stop is called.
func (a *Actor) Run(ctx context.Context) {
	defer close(a.done)
	defer a.disarm()
	defer func() {
		// An unfinished game leaves no replay behind.
		if a.replay != nil {
			a.recorder.ClearReplay(a.replay)
			a.replay = nil
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopped:
			return
		case fn := <-a.mailbox:
			fn()
		}
	}
}

// Stop ends Run. Pending and future calls fail with ErrRoomClosed.
func (a *Actor) Stop() {
	a.stopOnce.Do(func() { close(a.stopped) })
}

// Done is closed when Run has returned.
func (a *Actor) Done() <-chan struct{} {
	return a.done
}

// Do runs fn on the actor goroutine and waits for its result. A nil result
// is treated as a state change and recorded. ctx only
// bounds the wait for a mailbox slot: once the job is queued Do returns its
// result, or ErrRoomClosed if the actor stops before running it.
func (a *Actor) Do(ctx context.Context, fn func(m *Machine) error) error {
	return a.run(ctx, fn, true)
}

func (a *Actor) run(ctx context.Context, fn func(m *Machine) error, mutates bool) error {
	result := make(chan error, 1)
	job := func() {
		err := fn(a.machine)
		if err == nil && mutates {
			a.afterChange()
		}
		result <- err
	}

	select {
	case a.mailbox <- job:
	case <-a.stopped:
		return ErrRoomClosed
	case <-a.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-a.done:
		// The job may have been the last one run.
		select {
		case err := <-result:
			return err
		default:
			return ErrRoomClosed
		}
	}
}

// Apply routes a player action to the machine.
func (a *Actor) Apply(ctx context.Context, playerID string, action Action) error {
	return a.Do(ctx, func(m *Machine) error { return m.Apply(playerID, action) })
}

// Snapshot reads the room state on the actor goroutine.
func (a *Actor) Snapshot(ctx context.Context) (RoomSnapshot, error) {
	var snap RoomSnapshot
	err := a.run(ctx, func(m *Machine) error {
		snap = m.Snapshot()
		return nil
	}, false)
	return snap, err
}

// afterChange records the new state, re-arms the phase timer when the phase
// changed and reports a finished game once.
func (a *Actor) afterChange() {
	m := a.machine
	if a.replay != nil {
		a.replay.RecordState(m.Snapshot())
	}

	if m.Phase() == rules.PhaseGameOver {
		a.disarm()
		if !a.reportDone {
			a.reportDone = true
			if res, ok := m.Result(); ok {
				if a.replay != nil {
					a.recorder.StopRecording(a.replay, res.ReplayID)
					a.replay = nil
				}
				if a.onGameOver != nil {
					a.onGameOver(res)
				}
			}
		}
		return
	}

	if a.timeout <= 0 || !m.Phase().InPlay() {
		return
	}
	if serial := m.Transitions(); serial != a.armedFor || a.timer == nil {
		a.arm(serial)
	}
}

func (a *Actor) arm(serial uint64) {
	a.disarm()
	a.armedFor = serial
	a.timer = time.AfterFunc(a.timeout, func() {
		job := func() {
			// The phase moved on after the timer fired.
			if a.machine.Transitions() != serial {
				return
			}
			if a.machine.Timeout() {
				a.afterChange()
			}
		}
		select {
		case a.mailbox <- job:
		case <-a.stopped:
		case <-a.done:
		}
	})
}

func (a *Actor) disarm() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
