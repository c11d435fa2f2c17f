// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package message

import (
	"errors"

	"github.com/luxfi/crypto/hash"
	"github.com/luxfi/ids"
)

var ErrNoChunks = errors.New("no chunks")

// ChunkRoot computes the merkle root over a blob's erasure-coded chunks.
// The root doubles as the blob's identifier. Levels with an odd number of
// nodes promote the last node by pairing it with itself.
func ChunkRoot(chunks [][]byte) ids.ID {
	if len(chunks) == 0 {
		return ids.Empty
	}
	level := make([]ids.ID, len(chunks))
	for i, chunk := range chunks {
		level[i] = leafHash(chunk)
	}
	for len(level) > 1 {
		level = parentLevel(level)
	}
	return level[0]
}

// ChunkProof returns the sibling hashes proving that chunks[index] is part
// of ChunkRoot(chunks), ordered leaf to root.
func ChunkProof(chunks [][]byte, index int) ([]ids.ID, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	if index < 0 || index >= len(chunks) {
		return nil, errors.New("chunk index out of range")
	}

	level := make([]ids.ID, len(chunks))
	for i, chunk := range chunks {
		level[i] = leafHash(chunk)
	}

	var proof []ids.ID
	for len(level) > 1 {
		sibling := index ^ 1
		if sibling >= len(level) {
			sibling = index
		}
		proof = append(proof, level[sibling])
		level = parentLevel(level)
		index /= 2
	}
	return proof, nil
}

// VerifyChunk checks a chunk's proof against the blob's chunk root.
func VerifyChunk(root ids.ID, chunk *Chunk) bool {
	if chunk == nil {
		return false
	}
	acc := leafHash(chunk.Data)
	index := int(chunk.Index)
	for _, sibling := range chunk.Proof {
		if index%2 == 0 {
			acc = nodeHash(acc, sibling)
		} else {
			acc = nodeHash(sibling, acc)
		}
		index /= 2
	}
	return index == 0 && acc == root
}

func parentLevel(level []ids.ID) []ids.ID {
	next := make([]ids.ID, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		j := i + 1
		if j == len(level) {
			j = i
		}
		next = append(next, nodeHash(level[i], level[j]))
	}
	return next
}

func leafHash(data []byte) ids.ID {
	var id ids.ID
	copy(id[:], hash.ComputeHash256(data))
	return id
}

func nodeHash(left ids.ID, right ids.ID) ids.ID {
	preimage := make([]byte, 0, 2*ids.IDLen)
	preimage = append(preimage, left[:]...)
	preimage = append(preimage, right[:]...)

	var id ids.ID
	copy(id[:], hash.ComputeHash256(preimage))
	return id
}
