package ledger

import (
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 50, -50, 1 << 40, -(1 << 40), int64(MaxMagnitude) - 1, -(int64(MaxMagnitude) - 1)}
	for _, v := range values {
		enc, err := Encode(v)
		if err != nil {
			t.Fatalf("Encode(%d) failed: %v", v, err)
		}
		got, err := Decode(enc)
		if err != nil {
			t.Fatalf("Decode(Encode(%d)) failed: %v", v, err)
		}
		if got != v {
			t.Errorf("round trip of %d = %d", v, got)
		}
	}
}

func TestEncodeOverflowCeiling(t *testing.T) {
	if _, err := Encode(int64(MaxMagnitude)); !errors.Is(err, ErrBalanceOverflow) {
		t.Errorf("Encode(ceiling) error = %v, want ErrBalanceOverflow", err)
	}
	if _, err := Encode(-int64(MaxMagnitude)); !errors.Is(err, ErrBalanceOverflow) {
		t.Errorf("Encode(-ceiling) error = %v, want ErrBalanceOverflow", err)
	}
	// An encoded value past the ceiling is corruption, caught on read.
	if _, err := Decode(MaxMagnitude + 5); !errors.Is(err, ErrCorruptBalance) {
		t.Errorf("Decode(past ceiling) error = %v, want ErrCorruptBalance", err)
	}
	if _, err := Decode(signBit + MaxMagnitude); !errors.Is(err, ErrCorruptBalance) {
		t.Errorf("Decode(negative past ceiling) error = %v, want ErrCorruptBalance", err)
	}
}

func TestApplyEncodedCrossings(t *testing.T) {
	tests := []struct {
		name   string
		start  int64
		delta  int64
		credit bool
		want   int64
	}{
		{name: "credit grows positive", start: 100, delta: 50, credit: true, want: 150},
		{name: "debit shrinks positive", start: 100, delta: 40, credit: false, want: 60},
		{name: "debit flips positive to negative", start: 100, delta: 150, credit: false, want: -50},
		{name: "debit lands exactly on zero", start: 100, delta: 100, credit: false, want: 0},
		{name: "credit reduces debt", start: -50, delta: 20, credit: true, want: -30},
		{name: "credit flips negative to positive", start: -50, delta: 200, credit: true, want: 150},
		{name: "credit clears debt exactly", start: -50, delta: 50, credit: true, want: 0},
		{name: "debit deepens debt", start: -50, delta: 25, credit: false, want: -75},
		{name: "credit from zero", start: 0, delta: 7, credit: true, want: 7},
		{name: "debit from zero", start: 0, delta: 7, credit: false, want: -7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := Encode(tt.start)
			if err != nil {
				t.Fatalf("Encode(%d) failed: %v", tt.start, err)
			}
			newEnc, err := applyEncoded(enc, tt.delta, tt.credit)
			if err != nil {
				t.Fatalf("applyEncoded failed: %v", err)
			}
			got, err := Decode(newEnc)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("applyEncoded(%d, %d, credit=%v) = %d, want %d",
					tt.start, tt.delta, tt.credit, got, tt.want)
			}
		})
	}
}

func TestApplyEncodedOverflow(t *testing.T) {
	enc, err := Encode(int64(MaxMagnitude) - 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := applyEncoded(enc, 1, true); !errors.Is(err, ErrBalanceOverflow) {
		t.Errorf("credit past ceiling error = %v, want ErrBalanceOverflow", err)
	}
	enc, err = Encode(-(int64(MaxMagnitude) - 1))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := applyEncoded(enc, 1, false); !errors.Is(err, ErrBalanceOverflow) {
		t.Errorf("debit past ceiling error = %v, want ErrBalanceOverflow", err)
	}
}

func TestEncodedByteSlot(t *testing.T) {
	enc, err := Encode(-1234)
	if err != nil {
		t.Fatal(err)
	}
	b := EncodeBytes(enc)
	if len(b) != 8 {
		t.Fatalf("slot is %d bytes, want 8", len(b))
	}
	back, err := DecodeBytes(b)
	if err != nil {
		t.Fatalf("DecodeBytes failed: %v", err)
	}
	if back != enc {
		t.Errorf("byte slot round trip = %d, want %d", back, enc)
	}
	if _, err := DecodeBytes(b[:5]); !errors.Is(err, ErrCorruptBalance) {
		t.Errorf("short slot error = %v, want ErrCorruptBalance", err)
	}
}
