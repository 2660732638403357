package acipsession

import (
	"github.com/ascii-chat/acip-core/pkg/acip"
)

// streamKindForType maps a fan-out-eligible packet type to the stream kind
// a subscriber's bitmask is tested against.
func streamKindForType(t acip.PacketType) (acip.StreamKind, bool) {
	switch t {
	case acip.TypeImageFrame:
		return acip.StreamKindVideo, true
	case acip.TypeAudioBatch, acip.TypeAudioOpusBatch:
		return acip.StreamKindAudio, true
	default:
		return 0, false
	}
}

// FanOut routes one media envelope from origin to every other live client
// whose subscribed-stream bitmask intersects the frame kind, pushing a
// reference to the same immutable payload buffer into each destination's
// send queue.
//
// Ordering: within a single (source, destination, stream kind) tuple,
// frames arrive in the order FanOut is called for that tuple, which the
// caller guarantees by invoking FanOut only from the single receive worker
// that owns origin's decryption/parse state; there is never a second
// concurrent producer racing to push into the same destination queue for
// the same origin and kind.
func FanOut(reg *Registry, origin *Client, env Envelope, obs Observer) (delivered, dropped int) {
	kind, ok := streamKindForType(env.Type)
	if !ok {
		return 0, 0
	}
	env.Kind = kind
	env.Originator = origin.ID

	for _, dest := range reg.Snapshot() {
		if dest.ID == origin.ID {
			continue
		}
		if !dest.SubscribedTo(kind) {
			continue
		}
		if wasDropped := dest.Queue.PushMedia(env); wasDropped {
			dropped++
			if obs != nil {
				obs.FanoutDrop(kindLabel(kind), 1)
			}
		}
		delivered++
	}
	return delivered, dropped
}

func kindLabel(kind acip.StreamKind) string {
	switch kind {
	case acip.StreamKindVideo:
		return "video"
	case acip.StreamKindAudio:
		return "audio"
	default:
		return "unknown"
	}
}
