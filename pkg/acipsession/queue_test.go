package acipsession

import (
	"fmt"
	"testing"
	"time"

	"github.com/ascii-chat/acip-core/pkg/acip"
)

func videoEnvelope(seq int) Envelope {
	return Envelope{
		Type:    acip.TypeImageFrame,
		Kind:    acip.StreamKindVideo,
		Payload: []byte(fmt.Sprintf("frame-%04d", seq)),
	}
}

func audioEnvelope(seq int) Envelope {
	return Envelope{
		Type:    acip.TypeAudioOpusBatch,
		Kind:    acip.StreamKindAudio,
		Payload: []byte(fmt.Sprintf("audio-%04d", seq)),
	}
}

func TestSendQueueMediaOrdering(t *testing.T) {
	q := NewSendQueue()
	for i := 0; i < 10; i++ {
		if dropped := q.PushMedia(videoEnvelope(i)); dropped {
			t.Fatalf("unexpected drop pushing frame %d", i)
		}
	}
	for i := 0; i < 10; i++ {
		env, ok := q.Pop()
		if !ok {
			t.Fatalf("queue closed early at %d", i)
		}
		want := fmt.Sprintf("frame-%04d", i)
		if string(env.Payload) != want {
			t.Fatalf("out of order: got %q want %q", env.Payload, want)
		}
	}
}

func TestSendQueueDropsOldestSameKind(t *testing.T) {
	q := NewSendQueue()
	total := VideoQueueCapacity + 10
	drops := 0
	for i := 0; i < total; i++ {
		if q.PushMedia(videoEnvelope(i)) {
			drops++
		}
	}
	if drops != 10 {
		t.Fatalf("drops = %d, want 10", drops)
	}
	// The oldest 10 are gone; the survivors start at 10 and stay in order.
	for i := 10; i < total; i++ {
		env, ok := q.Pop()
		if !ok {
			t.Fatalf("queue closed early at %d", i)
		}
		want := fmt.Sprintf("frame-%04d", i)
		if string(env.Payload) != want {
			t.Fatalf("got %q want %q", env.Payload, want)
		}
	}
	video, audio := q.Drops()
	if video != 10 || audio != 0 {
		t.Fatalf("Drops() = (%d, %d), want (10, 0)", video, audio)
	}
}

func TestSendQueueAudioDropsDoNotTouchVideo(t *testing.T) {
	q := NewSendQueue()
	for i := 0; i < 5; i++ {
		q.PushMedia(videoEnvelope(i))
	}
	for i := 0; i < AudioQueueCapacity+3; i++ {
		q.PushMedia(audioEnvelope(i))
	}
	video, audio := q.Drops()
	if video != 0 {
		t.Fatalf("video drops = %d, want 0", video)
	}
	if audio != 3 {
		t.Fatalf("audio drops = %d, want 3", audio)
	}
}

func TestSendQueueControlDrainedBeforeMedia(t *testing.T) {
	q := NewSendQueue()
	q.PushMedia(videoEnvelope(0))
	q.PushControl(Envelope{Type: acip.TypePong, Payload: []byte("pong")})

	env, ok := q.Pop()
	if !ok || env.Type != acip.TypePong {
		t.Fatalf("first pop = %v (ok=%v), want control packet", env.Type, ok)
	}
	env, ok = q.Pop()
	if !ok || env.Type != acip.TypeImageFrame {
		t.Fatalf("second pop = %v (ok=%v), want media packet", env.Type, ok)
	}
}

func TestSendQueueCloseUnblocksPop(t *testing.T) {
	q := NewSendQueue()
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()
	time.Sleep(20 * time.Millisecond)
	q.Close()
	select {
	case ok := <-done:
		if ok {
			t.Fatal("Pop on closed queue returned ok=true")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not unblock after Close")
	}
}

func TestSendQueuePushAfterCloseRejected(t *testing.T) {
	q := NewSendQueue()
	q.Close()
	if q.PushControl(Envelope{Type: acip.TypePong}) {
		t.Fatal("PushControl succeeded on closed queue")
	}
	if q.PushMedia(videoEnvelope(0)) {
		t.Fatal("PushMedia reported a drop on closed queue")
	}
	if q.Len() != 0 {
		t.Fatalf("Len() = %d after closed pushes, want 0", q.Len())
	}
}
