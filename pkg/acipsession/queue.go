package acipsession

import (
	"sync"

	"github.com/ascii-chat/acip-core/pkg/acip"
)

// Default queue capacities.
const (
	VideoQueueCapacity   = 64
	AudioQueueCapacity   = 256
	ControlQueueCapacity = 8
)

// Envelope is a fan-out-eligible unit of work: a decrypted packet plus the
// metadata the send worker and fan-out router need to place it correctly
// and attribute drops. Payload is shared (never mutated) across every
// destination queue it is pushed into; Go's GC frees it once the last queue
// holding a reference to the backing array drops it, with no manual
// refcounting.
type Envelope struct {
	Type       acip.PacketType
	Payload    []byte
	Originator ClientID
	Kind       acip.StreamKind
}

// isMedia reports whether t is a fan-out-eligible media packet type, as
// opposed to a control/handshake packet that bypasses the bounded queues.
func isMedia(t acip.PacketType) bool {
	switch t {
	case acip.TypeImageFrame, acip.TypeAudioBatch, acip.TypeAudioOpusBatch:
		return true
	default:
		return false
	}
}

// SendQueue is one client's outbound mailbox: separate bounded ring buffers
// for video and audio media (drop-oldest-of-same-kind under backpressure,
// favoring freshness) plus a small reserved control queue that is never
// dropped from, only backed up.
//
// Several producers may push concurrently (every other client's receive
// worker for fanned-out media; handlers, join/leave broadcasts and the
// liveness sweeper for control); there is a single consumer (the one send
// worker). Push/Pop synchronize with a mutex + condition
// variable rather than a channel because the drop-oldest policy needs to
// inspect and mutate the tail under the same lock as the wake-up signal.
type SendQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	video  []Envelope
	audio  []Envelope
	ctrl   []Envelope
	closed bool

	droppedVideo uint64
	droppedAudio uint64
}

// NewSendQueue returns an empty queue with the default capacities.
func NewSendQueue() *SendQueue {
	q := &SendQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// PushControl enqueues a control/handshake packet. It blocks while the
// control queue is at its (small) reserved capacity rather than dropping;
// control packets are never discarded.
func (q *SendQueue) PushControl(env Envelope) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.ctrl) >= ControlQueueCapacity && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return false
	}
	q.ctrl = append(q.ctrl, env)
	q.cond.Signal()
	return true
}

// PushMedia enqueues a video or audio envelope. If the relevant queue is at
// capacity, the oldest entry of the SAME kind is dropped to make room,
// favoring freshness. Returns whether an existing entry was dropped.
func (q *SendQueue) PushMedia(env Envelope) (dropped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	switch env.Kind {
	case acip.StreamKindVideo:
		if len(q.video) >= VideoQueueCapacity {
			q.video = q.video[1:]
			q.droppedVideo++
			dropped = true
		}
		q.video = append(q.video, env)
	case acip.StreamKindAudio:
		if len(q.audio) >= AudioQueueCapacity {
			q.audio = q.audio[1:]
			q.droppedAudio++
			dropped = true
		}
		q.audio = append(q.audio, env)
	}
	q.cond.Signal()
	return dropped
}

// Push routes env to the control or media queue based on its packet type.
func (q *SendQueue) Push(env Envelope) (dropped bool) {
	if isMedia(env.Type) {
		return q.PushMedia(env)
	}
	return q.PushControl(env)
}

// Pop blocks until an envelope is available or the queue is closed,
// returning ok=false in the latter case. Control envelopes are drained
// before media so handshake/liveness traffic is never starved by a
// saturated video stream; within media, video is served before audio to
// favor interactive responsiveness.
func (q *SendQueue) Pop() (Envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.ctrl) == 0 && len(q.video) == 0 && len(q.audio) == 0 && !q.closed {
		q.cond.Wait()
	}
	var env Envelope
	switch {
	case len(q.ctrl) > 0:
		env, q.ctrl = q.ctrl[0], q.ctrl[1:]
	case len(q.video) > 0:
		env, q.video = q.video[0], q.video[1:]
	case len(q.audio) > 0:
		env, q.audio = q.audio[0], q.audio[1:]
	default:
		return Envelope{}, false
	}
	q.cond.Signal()
	return env, true
}

// Close unblocks any in-progress or future Push/Pop calls; the queue cannot
// be reused afterward.
func (q *SendQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Drops returns the cumulative number of video and audio frames dropped for
// congestion telemetry; callers evaluate drop-rate thresholds using deltas
// of these counters.
func (q *SendQueue) Drops() (video, audio uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.droppedVideo, q.droppedAudio
}

// Len reports the combined pending entry count across all three queues, for
// diagnostics.
func (q *SendQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ctrl) + len(q.video) + len(q.audio)
}
