// Package felt implements the 251-bit Stark field element used for every
// address, key, value and hash on the network.
package felt

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
)

// Bytes is the canonical big-endian encoding width of a field element.
const Bytes = fp.Bytes

// Felt is an element of the Stark prime field. The zero value is the field's
// zero element and is ready to use.
type Felt struct {
	val fp.Element
}

// Zero is the field's zero element.
var Zero = Felt{}

// FromElement wraps a raw gnark field element.
func FromElement(e fp.Element) Felt {
	return Felt{val: e}
}

// FromUint64 returns the field element representing v.
func FromUint64(v uint64) Felt {
	var f Felt
	f.val.SetUint64(v)
	return f
}

// FromBytes interprets b as a big-endian unsigned integer reduced into the
// field. Inputs longer than 32 bytes are rejected.
func FromBytes(b []byte) (Felt, error) {
	if len(b) > Bytes {
		return Felt{}, fmt.Errorf("felt: input is %d bytes, max %d", len(b), Bytes)
	}
	var f Felt
	f.val.SetBytes(b)
	return f, nil
}

// FromHex parses a "0x"-prefixed (or bare) hexadecimal string. Values outside
// the field are rejected rather than silently reduced, since out-of-range
// values in upstream data indicate corruption.
func FromHex(s string) (Felt, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if trimmed == "" {
		return Felt{}, fmt.Errorf("felt: empty hex string %q", s)
	}
	n, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return Felt{}, fmt.Errorf("felt: invalid hex string %q", s)
	}
	if n.Sign() < 0 || n.Cmp(fp.Modulus()) >= 0 {
		return Felt{}, fmt.Errorf("felt: value %q outside field", s)
	}
	var f Felt
	f.val.SetBigInt(n)
	return f, nil
}

// MustFromHex is FromHex for constants; it panics on malformed input.
func MustFromHex(s string) Felt {
	f, err := FromHex(s)
	if err != nil {
		panic(err)
	}
	return f
}

// Bytes returns the canonical 32-byte big-endian encoding.
func (f *Felt) Bytes() [Bytes]byte {
	return f.val.Bytes()
}

// Impl exposes the underlying gnark element for hashing.
func (f *Felt) Impl() *fp.Element {
	return &f.val
}

// IsZero reports whether f is the zero element.
func (f *Felt) IsZero() bool {
	return f.val.IsZero()
}

// Equal reports whether f and other are the same element.
func (f *Felt) Equal(other *Felt) bool {
	return f.val.Equal(&other.val)
}

// Cmp compares the canonical integer representations of f and other.
func (f *Felt) Cmp(other *Felt) int {
	return f.val.Cmp(&other.val)
}

// Add returns f + other in the field.
func (f *Felt) Add(other *Felt) Felt {
	var out Felt
	out.val.Add(&f.val, &other.val)
	return out
}

// Uint64 returns the element as a uint64 if it fits.
func (f *Felt) Uint64() (uint64, bool) {
	if !f.val.IsUint64() {
		return 0, false
	}
	return f.val.Uint64(), true
}

// String renders the element as minimal "0x" hex, the feeder wire format.
func (f Felt) String() string {
	return "0x" + f.val.Text(16)
}

// MarshalText implements encoding.TextMarshaler.
func (f Felt) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Felt) UnmarshalText(b []byte) error {
	parsed, err := FromHex(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (f Felt) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Felt) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("felt: expected hex string: %w", err)
	}
	return f.UnmarshalText([]byte(s))
}
