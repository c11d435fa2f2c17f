// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package message

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/luxfi/constants"
	"github.com/luxfi/ids"
)

// Message tags for the availability wire encoding
const (
	tagChunkRequest  = 1
	tagChunkResponse = 2
	tagDataRequest   = 3
	tagDataResponse  = 4
)

// maxProofHashes bounds the proof length a response may claim. A chunk
// root over 2^32 chunks needs at most 32 proof hashes.
const maxProofHashes = 32

var (
	ErrInvalidMessage = errors.New("invalid wire message")
	ErrUnknownTag     = errors.New("unknown message tag")
	ErrOversized      = errors.New("message exceeds size limit")

	maxMessageSize = int(constants.DefaultMaxMessageSize)
)

// Request is the inbound request union. Exactly one field is set.
type Request struct {
	Chunk *ChunkRequest
	Data  *DataRequest
}

// Buffer for encoding
type Buffer struct {
	data   []byte
	offset int
}

func NewBuffer(size int) *Buffer {
	return &Buffer{data: make([]byte, size)}
}

func (b *Buffer) grow(n int) {
	if b.offset+n > len(b.data) {
		newData := make([]byte, (b.offset+n)*2)
		copy(newData, b.data[:b.offset])
		b.data = newData
	}
}

func (b *Buffer) WriteUint8(v uint8) {
	b.grow(1)
	b.data[b.offset] = v
	b.offset++
}

func (b *Buffer) WriteBool(v bool) {
	if v {
		b.WriteUint8(1)
	} else {
		b.WriteUint8(0)
	}
}

func (b *Buffer) WriteUint32(v uint32) {
	b.grow(4)
	binary.BigEndian.PutUint32(b.data[b.offset:], v)
	b.offset += 4
}

func (b *Buffer) WriteBytes(data []byte) {
	b.WriteUint32(uint32(len(data)))
	b.grow(len(data))
	copy(b.data[b.offset:], data)
	b.offset += len(data)
}

func (b *Buffer) WriteID(id ids.ID) {
	b.grow(ids.IDLen)
	copy(b.data[b.offset:], id[:])
	b.offset += ids.IDLen
}

func (b *Buffer) Bytes() []byte {
	return b.data[:b.offset]
}

// Reader for decoding
type Reader struct {
	data   []byte
	offset int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) ReadUint8() (uint8, error) {
	if r.offset+1 > len(r.data) {
		return 0, io.ErrUnexpectedEOF
	}
	v := r.data[r.offset]
	r.offset++
	return v, nil
}

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadUint8()
	return v != 0, err
}

func (r *Reader) ReadUint32() (uint32, error) {
	if r.offset+4 > len(r.data) {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.BigEndian.Uint32(r.data[r.offset:])
	r.offset += 4
	return v, nil
}

func (r *Reader) ReadBytes() ([]byte, error) {
	length, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if int(length) > len(r.data)-r.offset {
		return nil, io.ErrUnexpectedEOF
	}
	data := r.data[r.offset : r.offset+int(length)]
	r.offset += int(length)
	return data, nil
}

func (r *Reader) ReadID() (ids.ID, error) {
	if r.offset+ids.IDLen > len(r.data) {
		return ids.Empty, io.ErrUnexpectedEOF
	}
	id, err := ids.ToID(r.data[r.offset : r.offset+ids.IDLen])
	if err != nil {
		return ids.Empty, err
	}
	r.offset += ids.IDLen
	return id, nil
}

func (r *Reader) finish() error {
	if r.offset != len(r.data) {
		return fmt.Errorf("%w: %d trailing bytes", ErrInvalidMessage, len(r.data)-r.offset)
	}
	return nil
}

func checkSize(b []byte) error {
	if len(b) > maxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrOversized, len(b), maxMessageSize)
	}
	return nil
}

// MarshalChunkRequest encodes a chunk request.
func MarshalChunkRequest(req *ChunkRequest) []byte {
	buf := NewBuffer(1 + ids.IDLen + 4)
	buf.WriteUint8(tagChunkRequest)
	buf.WriteID(req.Blob)
	buf.WriteUint32(uint32(req.Index))
	return buf.Bytes()
}

// MarshalDataRequest encodes a full-data request.
func MarshalDataRequest(req *DataRequest) []byte {
	buf := NewBuffer(1 + ids.IDLen)
	buf.WriteUint8(tagDataRequest)
	buf.WriteID(req.Blob)
	return buf.Bytes()
}

// ParseRequest decodes an inbound request of either kind.
func ParseRequest(b []byte) (*Request, error) {
	if err := checkSize(b); err != nil {
		return nil, err
	}
	r := NewReader(b)
	tag, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagChunkRequest:
		blob, err := r.ReadID()
		if err != nil {
			return nil, err
		}
		index, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		if err := r.finish(); err != nil {
			return nil, err
		}
		return &Request{Chunk: &ChunkRequest{
			Blob:  blob,
			Index: ValidatorIndex(index),
		}}, nil
	case tagDataRequest:
		blob, err := r.ReadID()
		if err != nil {
			return nil, err
		}
		if err := r.finish(); err != nil {
			return nil, err
		}
		return &Request{Data: &DataRequest{Blob: blob}}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownTag, tag)
	}
}

// MarshalChunkResponse encodes a chunk response.
func MarshalChunkResponse(resp *ChunkResponse) ([]byte, error) {
	buf := NewBuffer(256)
	buf.WriteUint8(tagChunkResponse)
	buf.WriteBool(resp.Chunk != nil)
	if chunk := resp.Chunk; chunk != nil {
		buf.WriteUint32(uint32(chunk.Index))
		buf.WriteBytes(chunk.Data)
		buf.WriteUint32(uint32(len(chunk.Proof)))
		for _, h := range chunk.Proof {
			buf.WriteID(h)
		}
	}
	b := buf.Bytes()
	if err := checkSize(b); err != nil {
		return nil, err
	}
	return b, nil
}

// ParseChunkResponse decodes a chunk response.
func ParseChunkResponse(b []byte) (*ChunkResponse, error) {
	if err := checkSize(b); err != nil {
		return nil, err
	}
	r := NewReader(b)
	tag, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if tag != tagChunkResponse {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTag, tag)
	}
	present, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	if !present {
		if err := r.finish(); err != nil {
			return nil, err
		}
		return &ChunkResponse{}, nil
	}
	index, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	data, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	proofLen, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if proofLen > maxProofHashes {
		return nil, fmt.Errorf("%w: proof of %d hashes", ErrInvalidMessage, proofLen)
	}
	var proof []ids.ID
	for i := uint32(0); i < proofLen; i++ {
		h, err := r.ReadID()
		if err != nil {
			return nil, err
		}
		proof = append(proof, h)
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return &ChunkResponse{Chunk: &Chunk{
		Index: ValidatorIndex(index),
		Data:  data,
		Proof: proof,
	}}, nil
}

// MarshalDataResponse encodes a full-data response.
func MarshalDataResponse(resp *DataResponse) ([]byte, error) {
	buf := NewBuffer(256)
	buf.WriteUint8(tagDataResponse)
	buf.WriteBool(resp.Data != nil)
	if resp.Data != nil {
		buf.WriteBytes(resp.Data)
	}
	b := buf.Bytes()
	if err := checkSize(b); err != nil {
		return nil, err
	}
	return b, nil
}

// ParseDataResponse decodes a full-data response.
func ParseDataResponse(b []byte) (*DataResponse, error) {
	if err := checkSize(b); err != nil {
		return nil, err
	}
	r := NewReader(b)
	tag, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if tag != tagDataResponse {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTag, tag)
	}
	present, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	var data []byte
	if present {
		data, err = r.ReadBytes()
		if err != nil {
			return nil, err
		}
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return &DataResponse{Data: data}, nil
}
