// Package state encodes the persisted computation record.
//
// Layout (little-endian, 25 bytes, stable on disk):
//
//	[0:8)   a          previous value of the recurrence
//	[8:16)  b          current value of the recurrence
//	[16:24) remaining  steps left to execute
//	[24]    bump       derivation bump of the record's address
//
// Decode validates length only. Whether a record exists, not what it
// contains, decides between initialization and resume.
package state

import (
	"encoding/binary"
	"fmt"
)

// DataLen is the exact size of an encoded State.
const DataLen = 8 + 8 + 8 + 1

// State is the only persisted entity.
type State struct {
	A         uint64 `json:"a"`
	B         uint64 `json:"b"`
	Remaining uint64 `json:"remaining"`
	Bump      uint8  `json:"bump"`
}

// Initial returns the starting state for n steps.
func Initial(n uint64, bump uint8) State {
	return State{A: 0, B: 1, Remaining: n, Bump: bump}
}

// Terminal reports whether no steps remain.
func (s State) Terminal() bool {
	return s.Remaining == 0
}

// Encode returns the 25-byte encoding of s.
func Encode(s State) []byte {
	buf := make([]byte, DataLen)
	EncodeInto(buf, s)
	return buf
}

// EncodeInto writes s into dst in one contiguous update.
// dst must be exactly DataLen bytes; anything else is a programming error.
func EncodeInto(dst []byte, s State) {
	if len(dst) != DataLen {
		panic(fmt.Sprintf("state: encode into %d-byte buffer, want %d", len(dst), DataLen))
	}
	binary.LittleEndian.PutUint64(dst[0:8], s.A)
	binary.LittleEndian.PutUint64(dst[8:16], s.B)
	binary.LittleEndian.PutUint64(dst[16:24], s.Remaining)
	dst[24] = s.Bump
}

// Decode parses a 25-byte record. Any content is accepted.
func Decode(data []byte) (State, error) {
	if len(data) != DataLen {
		return State{}, fmt.Errorf("decode state: got %d bytes, want %d", len(data), DataLen)
	}
	return State{
		A:         binary.LittleEndian.Uint64(data[0:8]),
		B:         binary.LittleEndian.Uint64(data[8:16]),
		Remaining: binary.LittleEndian.Uint64(data[16:24]),
		Bump:      data[24],
	}, nil
}
