package wsutil

import (
	"testing"

	"github.com/ascii-chat/acip-core/pkg/acipframe"
)

func TestReadLimitCoversMaxFrame(t *testing.T) {
	limit := ReadLimit()
	if limit != int64(acipframe.HeaderLen+acipframe.MaxPayloadLen) {
		t.Fatalf("ReadLimit() = %d, want header+max payload", limit)
	}
	if limit <= int64(acipframe.MaxPayloadLen) {
		t.Fatalf("ReadLimit() = %d must exceed the bare payload cap", limit)
	}
}
