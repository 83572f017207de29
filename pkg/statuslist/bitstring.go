// Package statuslist implements the StatusList2021 bitstring: a gzip
// compressed, base64url encoded bit array where bit i is set when the
// credential holding status index i is revoked. Index 0 is the most
// significant bit of the first byte.
package statuslist

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultSize is the minimum list length (16 KiB) that keeps individual
// credentials indistinguishable inside the list.
const DefaultSize = 131072

var ErrIndexOutOfRange = errors.New("status index out of range")

type Bitstring struct {
	bits []byte
	size int
}

func New(size int) (*Bitstring, error) {
	if size <= 0 || size%8 != 0 {
		return nil, fmt.Errorf("status list size must be a positive multiple of 8, got %d", size)
	}
	return &Bitstring{bits: make([]byte, size/8), size: size}, nil
}

func (b *Bitstring) Len() int {
	return b.size
}

func (b *Bitstring) Set(index int, value bool) error {
	if index < 0 || index >= b.size {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	mask := byte(0x80) >> (index % 8)
	if value {
		b.bits[index/8] |= mask
	} else {
		b.bits[index/8] &^= mask
	}
	return nil
}

func (b *Bitstring) Get(index int) (bool, error) {
	if index < 0 || index >= b.size {
		return false, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return b.bits[index/8]&(byte(0x80)>>(index%8)) != 0, nil
}

// SetCount returns the number of set bits.
func (b *Bitstring) SetCount() int {
	count := 0
	for _, v := range b.bits {
		for v != 0 {
			v &= v - 1
			count++
		}
	}
	return count
}

func (b *Bitstring) Encode() (string, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(b.bits); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode accepts padded and unpadded base64url input.
func Decode(encoded string) (*Bitstring, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return nil, fmt.Errorf("decode status list: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decompress status list: %w", err)
	}
	defer zr.Close()
	bits, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress status list: %w", err)
	}
	if len(bits) == 0 {
		return nil, errors.New("status list is empty")
	}
	return &Bitstring{bits: bits, size: len(bits) * 8}, nil
}
