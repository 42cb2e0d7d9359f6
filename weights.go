package lmvocab

import (
	"encoding/binary"
	"math"
)

// probBackoffSize is the serialized size of one ProbBackoff.
const probBackoffSize = 8

// ProbBackoff is the unigram log10 probability and backoff of one word.
type ProbBackoff struct {
	Prob    float32
	Backoff float32
}

// WeightsSize returns the bytes needed for bound weights.
func WeightsSize(bound int) int { return bound * probBackoffSize }

// Weights is a per-identity array of ProbBackoff viewed over a byte region,
// so it can live on the heap or inside a mapped binary file.
//
// Layout: bound records of [Prob float32_le][Backoff float32_le].
type Weights struct {
	data []byte
}

// NewWeights views data as weights; trailing bytes that do not form a whole
// record are ignored.
func NewWeights(data []byte) Weights {
	return Weights{data: data[:len(data)/probBackoffSize*probBackoffSize]}
}

// Len returns the number of records.
func (w Weights) Len() int { return len(w.data) / probBackoffSize }

// At returns the weights of identity i.
func (w Weights) At(i WordIndex) ProbBackoff {
	rec := w.data[int(i)*probBackoffSize:]
	return ProbBackoff{
		Prob:    math.Float32frombits(binary.LittleEndian.Uint32(rec[0:4])),
		Backoff: math.Float32frombits(binary.LittleEndian.Uint32(rec[4:8])),
	}
}

// Set stores the weights of identity i.
func (w Weights) Set(i WordIndex, pb ProbBackoff) {
	rec := w.data[int(i)*probBackoffSize:]
	binary.LittleEndian.PutUint32(rec[0:4], math.Float32bits(pb.Prob))
	binary.LittleEndian.PutUint32(rec[4:8], math.Float32bits(pb.Backoff))
}

// Swap exchanges two records, so Weights can be reordered by the sorted
// vocabulary.
func (w Weights) Swap(i, j int) {
	a := w.data[i*probBackoffSize : (i+1)*probBackoffSize]
	b := w.data[j*probBackoffSize : (j+1)*probBackoffSize]
	ai, bi := binary.LittleEndian.Uint64(a), binary.LittleEndian.Uint64(b)
	binary.LittleEndian.PutUint64(a, bi)
	binary.LittleEndian.PutUint64(b, ai)
}

// Bytes returns the underlying records.
func (w Weights) Bytes() []byte { return w.data }
