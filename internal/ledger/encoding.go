package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Balances are persisted in fixed-width unsigned storage (an 8-byte slot
// with no native signed type), so signed values use a sign-bit encoding:
//
//	0 .. 2^63-1        non-negative balance, stored as-is
//	2^63 .. 2^64-1     negative balance, magnitude = value - 2^63
//
// Magnitudes are capped at 2^62, well below the field's true maximum, to
// leave headroom and catch corruption early.
const (
	signBit = uint64(1) << 63

	// MaxMagnitude is the overflow ceiling on a balance magnitude.
	MaxMagnitude = uint64(1) << 62
)

var (
	ErrBalanceOverflow = errors.New("balance magnitude exceeds overflow ceiling")
	ErrCorruptBalance  = errors.New("corrupt encoded balance")
)

// Encode converts a signed balance to its unsigned storage form.
func Encode(v int64) (uint64, error) {
	if v >= 0 {
		enc := uint64(v)
		if enc >= MaxMagnitude {
			return 0, ErrBalanceOverflow
		}
		return enc, nil
	}
	mag := uint64(-v)
	if mag >= MaxMagnitude {
		return 0, ErrBalanceOverflow
	}
	return signBit + mag, nil
}

// Decode converts an unsigned storage value back to a signed balance.
// Values whose magnitude breaches the ceiling are reported as corrupt
// rather than silently accepted.
func Decode(enc uint64) (int64, error) {
	mag := enc
	neg := enc >= signBit
	if neg {
		mag = enc - signBit
	}
	if mag >= MaxMagnitude {
		return 0, fmt.Errorf("%w: magnitude %d", ErrCorruptBalance, mag)
	}
	if neg {
		return -int64(mag), nil
	}
	return int64(mag), nil
}

// applyEncoded adds (credit) or subtracts (debit) delta on the encoded
// form. The positive/negative crossing is handled explicitly: a credit that
// clears a debt flips the sign bit off, a debit that exhausts a credit
// flips it on. delta must be non-negative.
func applyEncoded(enc uint64, delta int64, credit bool) (uint64, error) {
	if delta < 0 {
		return 0, fmt.Errorf("%w: negative delta %d", ErrCorruptBalance, delta)
	}
	d := uint64(delta)

	mag := enc
	neg := enc >= signBit
	if neg {
		mag = enc - signBit
	}
	if mag >= MaxMagnitude {
		return 0, fmt.Errorf("%w: magnitude %d", ErrCorruptBalance, mag)
	}

	if credit {
		if neg {
			if d >= mag {
				// Debt cleared, balance flips positive.
				newMag := d - mag
				if newMag >= MaxMagnitude {
					return 0, ErrBalanceOverflow
				}
				return newMag, nil
			}
			return signBit + (mag - d), nil
		}
		newMag := mag + d
		if newMag >= MaxMagnitude {
			return 0, ErrBalanceOverflow
		}
		return newMag, nil
	}

	// Debit.
	if neg {
		newMag := mag + d
		if newMag >= MaxMagnitude {
			return 0, ErrBalanceOverflow
		}
		return signBit + newMag, nil
	}
	if d > mag {
		// Credit exhausted, balance flips negative.
		newMag := d - mag
		if newMag >= MaxMagnitude {
			return 0, ErrBalanceOverflow
		}
		return signBit + newMag, nil
	}
	return mag - d, nil
}

// EncodeBytes renders an encoded balance as the 8-byte big-endian slot
// written to storage.
func EncodeBytes(enc uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, enc)
	return b
}

// DecodeBytes reads an 8-byte big-endian storage slot.
func DecodeBytes(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: slot is %d bytes, want 8", ErrCorruptBalance, len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}
