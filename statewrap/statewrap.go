// Package statewrap provides an ordered, self-checking save-state stream.
//
// A StateWrapper either writes or reads. The same sequence of Do calls is
// used in both directions, so one function describes the layout of a
// component's state. Section markers and fixed-length checks make a
// mismatched layout fail instead of silently misaligning.
package statewrap

import (
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

const magic = "R3KSTATE"

var (
	// ErrVersionMismatch is returned when a stream was written by a
	// different state version.
	ErrVersionMismatch = errors.New("state version mismatch")

	// ErrShapeMismatch is returned when a stream does not have the layout
	// the reader expects.
	ErrShapeMismatch = errors.New("state shape mismatch")
)

// StateWrapper is one direction of a save-state stream. The first error
// is kept and every later Do call becomes a no-op.
type StateWrapper struct {
	enc     *msgpack.Encoder
	dec     *msgpack.Decoder
	version uint32
	err     error
}

// NewWriter starts a stream of the given version on w.
func NewWriter(w io.Writer, version uint32) *StateWrapper {
	sw := &StateWrapper{enc: msgpack.NewEncoder(w), version: version}
	sw.fail(sw.enc.EncodeString(magic))
	sw.fail(sw.enc.EncodeUint32(version))
	return sw
}

// NewReader opens a stream on r and checks that it was written with the
// given version.
func NewReader(r io.Reader, version uint32) (*StateWrapper, error) {
	sw := &StateWrapper{dec: msgpack.NewDecoder(r), version: version}

	got, err := sw.dec.DecodeString()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w: %w", ErrShapeMismatch, err)
	}
	if got != magic {
		return nil, fmt.Errorf("bad magic %q: %w", got, ErrShapeMismatch)
	}

	v, err := sw.dec.DecodeUint32()
	if err != nil {
		return nil, fmt.Errorf("reading version: %w: %w", ErrShapeMismatch, err)
	}
	if v != version {
		return nil, fmt.Errorf("stream version %d, expected %d: %w", v, version, ErrVersionMismatch)
	}

	return sw, nil
}

// IsReading returns true for a reader.
func (sw *StateWrapper) IsReading() bool {
	return sw.dec != nil
}

// Version returns the stream version.
func (sw *StateWrapper) Version() uint32 {
	return sw.version
}

// Err returns the first error hit by the stream.
func (sw *StateWrapper) Err() error {
	return sw.err
}

func (sw *StateWrapper) fail(err error) {
	if err != nil && sw.err == nil {
		sw.err = err
	}
}

// failRead records a decode error. A stream that cannot be decoded in the
// expected order does not have the expected shape.
func (sw *StateWrapper) failRead(err error) {
	if err != nil {
		sw.fail(fmt.Errorf("%w: %v", ErrShapeMismatch, err))
	}
}

func (sw *StateWrapper) failed() bool {
	return sw.err != nil
}

// DoMarker writes or checks a section name.
func (sw *StateWrapper) DoMarker(name string) {
	if sw.failed() {
		return
	}
	if !sw.IsReading() {
		sw.fail(sw.enc.EncodeString(name))
		return
	}

	got, err := sw.dec.DecodeString()
	if err != nil {
		sw.failRead(fmt.Errorf("marker %s: %w", name, err))
		return
	}
	if got != name {
		sw.fail(fmt.Errorf("expected marker %s, found %s: %w", name, got, ErrShapeMismatch))
	}
}

// DoLength writes a count, or checks that the stream holds the same count.
func (sw *StateWrapper) DoLength(n int) {
	if sw.failed() {
		return
	}
	if !sw.IsReading() {
		sw.fail(sw.enc.EncodeInt(int64(n)))
		return
	}
	got, err := sw.dec.DecodeInt()
	if err != nil {
		sw.failRead(err)
		return
	}
	if got != n {
		sw.fail(fmt.Errorf("count %d, expected %d: %w", got, n, ErrShapeMismatch))
	}
}

// DoUint32 writes or reads a uint32.
func (sw *StateWrapper) DoUint32(v *uint32) {
	if sw.failed() {
		return
	}
	if !sw.IsReading() {
		sw.fail(sw.enc.EncodeUint32(*v))
		return
	}
	got, err := sw.dec.DecodeUint32()
	sw.failRead(err)
	*v = got
}

// DoInt32 writes or reads an int32.
func (sw *StateWrapper) DoInt32(v *int32) {
	if sw.failed() {
		return
	}
	if !sw.IsReading() {
		sw.fail(sw.enc.EncodeInt32(*v))
		return
	}
	got, err := sw.dec.DecodeInt32()
	sw.failRead(err)
	*v = got
}

// DoUint8 writes or reads a uint8.
func (sw *StateWrapper) DoUint8(v *uint8) {
	if sw.failed() {
		return
	}
	if !sw.IsReading() {
		sw.fail(sw.enc.EncodeUint8(*v))
		return
	}
	got, err := sw.dec.DecodeUint8()
	sw.failRead(err)
	*v = got
}

// DoBool writes or reads a bool.
func (sw *StateWrapper) DoBool(v *bool) {
	if sw.failed() {
		return
	}
	if !sw.IsReading() {
		sw.fail(sw.enc.EncodeBool(*v))
		return
	}
	got, err := sw.dec.DecodeBool()
	sw.failRead(err)
	*v = got
}

// DoBytes writes or reads a fixed-size byte block. Reading a block of a
// different size is a shape mismatch.
func (sw *StateWrapper) DoBytes(b []byte) {
	if sw.failed() {
		return
	}
	if !sw.IsReading() {
		sw.fail(sw.enc.EncodeBytes(b))
		return
	}
	got, err := sw.dec.DecodeBytes()
	if err != nil {
		sw.failRead(err)
		return
	}
	if len(got) != len(b) {
		sw.fail(fmt.Errorf("byte block of %d, expected %d: %w", len(got), len(b), ErrShapeMismatch))
		return
	}
	copy(b, got)
}

// DoUint32Array writes or reads a fixed-length word array.
func (sw *StateWrapper) DoUint32Array(a []uint32) {
	if sw.failed() {
		return
	}
	if !sw.IsReading() {
		sw.fail(sw.enc.EncodeArrayLen(len(a)))
		for i := range a {
			if sw.failed() {
				return
			}
			sw.fail(sw.enc.EncodeUint32(a[i]))
		}
		return
	}

	n, err := sw.dec.DecodeArrayLen()
	if err != nil {
		sw.failRead(err)
		return
	}
	if n != len(a) {
		sw.fail(fmt.Errorf("array of %d, expected %d: %w", n, len(a), ErrShapeMismatch))
		return
	}
	for i := range a {
		v, err := sw.dec.DecodeUint32()
		if err != nil {
			sw.failRead(err)
			return
		}
		a[i] = v
	}
}
