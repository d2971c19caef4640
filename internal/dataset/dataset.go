package dataset

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

var (
	ErrSampleSize = errors.New("invalid example count")
	ErrIndex      = errors.New("example index out of range")
)

// Field is one column of a dataset row.
type Field struct {
	Key   string
	Value string
}

// Record is a dataset row with its columns in source order.
type Record []Field

// Get returns the value stored under key.
func (r Record) Get(key string) (string, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Render formats the record as "key: value" lines.
func (r Record) Render() string {
	var b strings.Builder
	for _, f := range r {
		b.WriteString(f.Key)
		b.WriteString(": ")
		b.WriteString(f.Value)
		b.WriteString("\n")
	}
	return b.String()
}

// Source is an indexable collection of example persona records.
type Source interface {
	Len() int
	Record(i int) (Record, error)
}

// Records is an in-memory Source.
type Records []Record

func (r Records) Len() int { return len(r) }

func (r Records) Record(i int) (Record, error) {
	if i < 0 || i >= len(r) {
		return nil, fmt.Errorf("%w: %d", ErrIndex, i)
	}
	return r[i], nil
}

// SampleIndices draws n distinct indices from [0, size) uniformly at random.
func SampleIndices(size, n int, rng *rand.Rand) ([]int, error) {
	if n < 1 || n > size {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrSampleSize, n, size)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	// partial Fisher-Yates over a sparse swap table
	swapped := make(map[int]int, n)
	at := func(i int) int {
		if v, ok := swapped[i]; ok {
			return v
		}
		return i
	}

	out := make([]int, n)
	for i := 0; i < n; i++ {
		j := i + rng.IntN(size-i)
		out[i] = at(j)
		swapped[j] = at(i)
	}
	return out, nil
}

// Sample returns n distinct records drawn uniformly without replacement.
func Sample(src Source, n int, rng *rand.Rand) ([]Record, error) {
	indices, err := SampleIndices(src.Len(), n, rng)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, n)
	for _, idx := range indices {
		rec, err := src.Record(idx)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
