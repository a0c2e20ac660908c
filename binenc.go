// Binary encoding primitives for the catalog's external compatibility
// surface (§6): integers big-endian, strings 16-bit-length-prefixed UTF-8,
// timestamps signed 64-bit milliseconds since epoch, enum ordinals a single
// byte.
package xantippe

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

type encoder struct {
	buf bytes.Buffer
}

func (e *encoder) u8(v uint8)   { e.buf.WriteByte(v) }
func (e *encoder) u32(v uint32) { binary.Write(&e.buf, binary.BigEndian, v) }
func (e *encoder) i64(v int64)  { binary.Write(&e.buf, binary.BigEndian, v) }
func (e *encoder) u64(v uint64) { binary.Write(&e.buf, binary.BigEndian, v) }
func (e *encoder) f64(v float64) { e.u64(math.Float64bits(v)) }

func (e *encoder) str(s string) {
	b := []byte(s)
	if len(b) > 0xFFFF {
		b = b[:0xFFFF]
	}
	binary.Write(&e.buf, binary.BigEndian, uint16(len(b)))
	e.buf.Write(b)
}

func (e *encoder) bytes() []byte { return e.buf.Bytes() }

type decoder struct {
	b   []byte
	off int
}

func newDecoder(b []byte) *decoder { return &decoder{b: b} }

func (d *decoder) need(n int) error {
	if d.off+n > len(d.b) {
		return fmt.Errorf("%w: truncated at offset %d, need %d bytes", ErrCatalog, d.off, n)
	}
	return nil
}

func (d *decoder) u8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.b[d.off]
	d.off++
	return v, nil
}

func (d *decoder) u32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(d.b[d.off:])
	d.off += 4
	return v, nil
}

func (d *decoder) i64() (int64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := int64(binary.BigEndian.Uint64(d.b[d.off:]))
	d.off += 8
	return v, nil
}

func (d *decoder) u64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(d.b[d.off:])
	d.off += 8
	return v, nil
}

func (d *decoder) f64() (float64, error) {
	bits, err := d.u64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

func (d *decoder) str() (string, error) {
	if err := d.need(2); err != nil {
		return "", err
	}
	n := int(binary.BigEndian.Uint16(d.b[d.off:]))
	d.off += 2
	if err := d.need(n); err != nil {
		return "", err
	}
	s := string(d.b[d.off : d.off+n])
	d.off += n
	return s, nil
}

func (d *decoder) done() bool { return d.off >= len(d.b) }
