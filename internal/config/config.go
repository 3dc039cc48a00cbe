// Package config implements the persisted configuration layer: two
// independent blobs (SWD settings, network settings), each serialized
// with a version tag and CRC16 checksum, falling back to compiled-in
// defaults when corrupt, absent, or of an unknown version.
//
// A typed accessor wrapping a fixed-offset storage region, with
// internal/crc providing the checksum.
package config

import (
	"encoding/binary"
	"errors"

	"github.com/airfrog/airfrog/internal/crc"
	log "github.com/sirupsen/logrus"
)

// Magic bytes identify a blob's contents so a Store never decodes the
// wrong struct even if both blobs share a region layout.
var (
	MagicSWD     = [4]byte{'A', 'F', 'S', 'W'}
	MagicNetwork = [4]byte{'A', 'F', 'N', 'T'}
)

// BlobVersion is the only version this build knows how to decode. A
// stored blob with a different version is treated the same as a corrupt
// one: defaults are used instead.
const BlobVersion byte = 1

// Backend is the narrow read-modify-write interface a Store needs from
// whatever holds the blob bytes (real flash region, or an in-memory fake
// on boards without a flash driver wired in yet).
type Backend interface {
	ReadRegion(offset, length int) ([]byte, error)
	WriteRegion(offset int, data []byte) error
}

// MemBackend is an in-memory Backend, the default away from real
// flash-bearing boards.
type MemBackend struct {
	data []byte
}

// NewMemBackend allocates a zeroed region of the given size.
func NewMemBackend(size int) *MemBackend {
	return &MemBackend{data: make([]byte, size)}
}

func (b *MemBackend) ReadRegion(offset, length int) ([]byte, error) {
	if offset < 0 || offset+length > len(b.data) {
		return nil, errors.New("config: region out of range")
	}
	out := make([]byte, length)
	copy(out, b.data[offset:offset+length])
	return out, nil
}

func (b *MemBackend) WriteRegion(offset int, data []byte) error {
	if offset < 0 || offset+len(data) > len(b.data) {
		return errors.New("config: region out of range")
	}
	copy(b.data[offset:], data)
	return nil
}

// Codec serializes/deserializes a T to/from the on-disk blob layout:
// [magic:4][version:1][length:2 LE][payload][crc16:2 LE].
type Codec[T any] struct {
	Magic  [4]byte
	Encode func(T) []byte
	Decode func([]byte) (T, error)
}

func (c Codec[T]) blobSize(payloadLen int) int {
	return 4 + 1 + 2 + payloadLen + 2
}

// Marshal produces the framed blob for v.
func (c Codec[T]) Marshal(v T) []byte {
	payload := c.Encode(v)
	buf := make([]byte, c.blobSize(len(payload)))
	copy(buf[0:4], c.Magic[:])
	buf[4] = BlobVersion
	binary.LittleEndian.PutUint16(buf[5:7], uint16(len(payload)))
	copy(buf[7:7+len(payload)], payload)
	sum := crc.Compute(buf[:7+len(payload)])
	binary.LittleEndian.PutUint16(buf[7+len(payload):], sum)
	return buf
}

// Unmarshal decodes buf, returning ok=false for any corruption (bad
// magic, bad CRC, unknown version, truncated payload) so the caller can
// fall back to defaults
func (c Codec[T]) Unmarshal(buf []byte) (v T, ok bool) {
	if len(buf) < 9 {
		return v, false
	}
	if [4]byte(buf[0:4]) != c.Magic {
		return v, false
	}
	if buf[4] != BlobVersion {
		return v, false
	}
	length := int(binary.LittleEndian.Uint16(buf[5:7]))
	if len(buf) < 7+length+2 {
		return v, false
	}
	want := binary.LittleEndian.Uint16(buf[7+length : 7+length+2])
	got := crc.Compute(buf[:7+length])
	if want != got {
		return v, false
	}
	decoded, err := c.Decode(buf[7 : 7+length])
	if err != nil {
		return v, false
	}
	return decoded, true
}

// Store persists one typed blob through a Backend, at a fixed region
// offset, falling back to defaults on any corruption.
type Store[T any] struct {
	backend  Backend
	offset   int
	regionSz int
	codec    Codec[T]
	defaults T
}

// NewStore builds a Store for T at the given backend region.
func NewStore[T any](backend Backend, offset, regionSize int, codec Codec[T], defaults T) *Store[T] {
	return &Store[T]{backend: backend, offset: offset, regionSz: regionSize, codec: codec, defaults: defaults}
}

// Load reads and decodes the blob, returning the compiled-in defaults
// (and logging a warning) if it is absent or corrupt.
func (s *Store[T]) Load() T {
	raw, err := s.backend.ReadRegion(s.offset, s.regionSz)
	if err != nil {
		log.Warnf("[CONFIG] read failed, using defaults: %v", err)
		return s.defaults
	}
	v, ok := s.codec.Unmarshal(raw)
	if !ok {
		log.Warnf("[CONFIG] stored blob missing or corrupt, using compiled-in defaults")
		return s.defaults
	}
	return v
}

// Save encodes and writes v.
func (s *Store[T]) Save(v T) error {
	buf := s.codec.Marshal(v)
	if len(buf) > s.regionSz {
		return errors.New("config: encoded blob exceeds region size")
	}
	return s.backend.WriteRegion(s.offset, buf)
}
