package sections

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"sections.ai/internal/persistence/snapshot"
	"sections.ai/internal/sim/grid"
)

type InputEnvelope struct {
	Player string
	Input  Input
	// Reply receives the result; it must have room for one value.
	Reply chan Result
}

type snapshotReq struct {
	resp chan snapshotResp
}

type snapshotResp struct {
	Tick uint64
	Err  string
}

// Status is the last published view of the runtime.
type Status struct {
	WorldID    string     `json:"world_id"`
	Tick       uint64     `json:"tick"`
	Players    int        `json:"players"`
	QueueDepth int        `json:"restore_queue_depth"`
	World      grid.Stats `json:"world"`
	StepMS     float64    `json:"step_ms"`
}

// Runtime drives a Session from a single goroutine at a fixed tick rate.
// Each tick first drains the restore queue filled by the previous tick, then
// applies the inputs that arrived since.
type Runtime struct {
	id       string
	session  *Session
	tickRate int
	every    int

	inbox  chan InputEnvelope
	leave  chan string
	admin  chan snapshotReq
	stop   chan struct{}
	status atomic.Pointer[Status]

	snapshotSink chan<- snapshot.SnapshotV1
}

func NewRuntime(worldID string, s *Session) *Runtime {
	r := &Runtime{
		id:       worldID,
		session:  s,
		tickRate: s.tune.TickRateHz,
		every:    s.tune.SnapshotEveryTicks,
		inbox:    make(chan InputEnvelope, 1024),
		leave:    make(chan string, 256),
		admin:    make(chan snapshotReq, 16),
		stop:     make(chan struct{}),
	}
	r.status.Store(&Status{WorldID: worldID})
	return r
}

func (r *Runtime) ID() string { return r.id }

func (r *Runtime) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { r.snapshotSink = ch }

func (r *Runtime) Status() Status { return *r.status.Load() }

func (r *Runtime) Run(ctx context.Context) error {
	rate := r.tickRate
	if rate <= 0 {
		rate = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	r.session.Load()
	defer r.session.Unload()

	var pendingInputs []InputEnvelope
	var pendingLeaves []string
	var pendingAdmin []snapshotReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stop:
			return nil
		case env := <-r.inbox:
			pendingInputs = append(pendingInputs, env)
		case id := <-r.leave:
			pendingLeaves = append(pendingLeaves, id)
		case req := <-r.admin:
			pendingAdmin = append(pendingAdmin, req)
		case <-ticker.C:
			r.step(pendingInputs, pendingLeaves)
			r.handleSnapshotRequests(pendingAdmin)
			pendingInputs = pendingInputs[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingAdmin = pendingAdmin[:0]
		}
	}
}

func (r *Runtime) Stop() { close(r.stop) }

func (r *Runtime) step(inputs []InputEnvelope, leaves []string) {
	start := time.Now()
	// Grids pasted by this tick's inputs are restored on the next tick.
	r.session.Update()
	for _, env := range inputs {
		res := r.session.Handle(env.Player, env.Input)
		if env.Reply != nil {
			select {
			case env.Reply <- res:
			default:
				// Caller gave up; never block the loop.
			}
		}
	}
	for _, id := range leaves {
		r.session.Leave(id)
	}

	tick := r.session.Tick()
	if r.every > 0 && tick%uint64(r.every) == 0 && r.snapshotSink != nil {
		select {
		case r.snapshotSink <- r.capture(tick):
		default:
			r.session.logf("sections: snapshot sink backpressure at tick %d", tick)
		}
	}

	r.status.Store(&Status{
		WorldID:    r.id,
		Tick:       tick,
		Players:    len(r.session.players),
		QueueDepth: r.session.queue.Len(),
		World:      r.session.world.Stats(),
		StepMS:     float64(time.Since(start).Microseconds()) / 1000,
	})
}

func (r *Runtime) capture(tick uint64) snapshot.SnapshotV1 {
	return snapshot.Capture(r.id, tick, r.tickRate, r.session.world)
}

// Submit queues an input for the next tick and waits for its result.
func (r *Runtime) Submit(ctx context.Context, player string, in Input) (Result, error) {
	reply := make(chan Result, 1)
	select {
	case r.inbox <- InputEnvelope{Player: player, Input: in, Reply: reply}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Leave forgets the selector of a disconnected player.
func (r *Runtime) Leave(player string) {
	select {
	case r.leave <- player:
	default:
	}
}

// RequestSnapshot asks the loop to capture a snapshot at the next tick.
func (r *Runtime) RequestSnapshot(ctx context.Context) (uint64, error) {
	resp := make(chan snapshotResp, 1)
	select {
	case r.admin <- snapshotReq{resp: resp}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case res := <-resp:
		if res.Err != "" {
			return res.Tick, errors.New(res.Err)
		}
		return res.Tick, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (r *Runtime) handleSnapshotRequests(reqs []snapshotReq) {
	if len(reqs) == 0 {
		return
	}
	tick := r.session.Tick()
	errStr := ""
	if r.snapshotSink == nil {
		errStr = "snapshot sink not configured"
	} else {
		select {
		case r.snapshotSink <- r.capture(tick):
		default:
			errStr = "snapshot sink backpressure"
		}
	}
	resp := snapshotResp{Tick: tick, Err: errStr}
	for _, req := range reqs {
		select {
		case req.resp <- resp:
		default:
		}
	}
}
