package acipcrypto

import "testing"

func baseInputs() TranscriptInputs {
	return TranscriptInputs{
		Version:        1,
		Suite:          uint16(SuiteX25519XSalsa20Poly1305),
		Role:           0,
		ClientFeatures: 0x1,
		ServerFeatures: 0x3,
		SessionID:      "river-anchor-violet",
		NonceC:         [32]byte{1, 2, 3},
		NonceS:         [32]byte{4, 5, 6},
		ClientEphPub:   []byte{0xAA, 0xBB, 0xCC},
		ServerEphPub:   []byte{0xDD, 0xEE, 0xFF},
	}
}

func TestTranscriptHashDeterministic(t *testing.T) {
	in := baseInputs()
	h1, err := TranscriptHash(in)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, err := TranscriptHash(in)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("transcript hash not deterministic")
	}
}

func TestTranscriptHashSensitiveToEachField(t *testing.T) {
	base := baseInputs()
	baseHash, err := TranscriptHash(base)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	mutations := []func(*TranscriptInputs){
		func(in *TranscriptInputs) { in.Version++ },
		func(in *TranscriptInputs) { in.Suite++ },
		func(in *TranscriptInputs) { in.Role = 1 },
		func(in *TranscriptInputs) { in.ClientFeatures++ },
		func(in *TranscriptInputs) { in.ServerFeatures++ },
		func(in *TranscriptInputs) { in.SessionID = "other-session-words" },
		func(in *TranscriptInputs) { in.NonceC[0] ^= 0xFF },
		func(in *TranscriptInputs) { in.NonceS[0] ^= 0xFF },
		func(in *TranscriptInputs) { in.ClientEphPub = []byte{0x01} },
		func(in *TranscriptInputs) { in.ServerEphPub = []byte{0x01} },
	}
	for i, mutate := range mutations {
		in := baseInputs()
		mutate(&in)
		h, err := TranscriptHash(in)
		if err != nil {
			t.Fatalf("mutation %d: hash: %v", i, err)
		}
		if h == baseHash {
			t.Fatalf("mutation %d did not change transcript hash", i)
		}
	}
}

func TestTranscriptHashRejectsMissingFields(t *testing.T) {
	in := baseInputs()
	in.SessionID = ""
	if _, err := TranscriptHash(in); err != ErrInvalidTranscriptInput {
		t.Fatalf("want ErrInvalidTranscriptInput for empty session id, got %v", err)
	}

	in = baseInputs()
	in.ClientEphPub = nil
	if _, err := TranscriptHash(in); err != ErrInvalidTranscriptInput {
		t.Fatalf("want ErrInvalidTranscriptInput for missing client pub, got %v", err)
	}

	in = baseInputs()
	in.ServerEphPub = nil
	if _, err := TranscriptHash(in); err != ErrInvalidTranscriptInput {
		t.Fatalf("want ErrInvalidTranscriptInput for missing server pub, got %v", err)
	}
}
