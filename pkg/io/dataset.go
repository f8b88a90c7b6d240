package io

import (
	"math/rand"
)

// Example is a single labelled sentence, already encoded as vocabulary indices.
type Example struct {
	Label  bool
	Tokens []int
}

// Target returns the label as a 0/1 value.
func (e *Example) Target() float32 {
	if e.Label {
		return 1.0
	}
	return 0.0
}

// Batch is an ordered group of examples.
type Batch []*Example

// Targets returns the 0/1 labels of the batch, in order.
func (b Batch) Targets() []float32 {
	result := make([]float32, len(b))
	for i := range b {
		result[i] = b[i].Target()
	}
	return result
}

// MakeBatches partitions examples into consecutive batches of batchSize elements.
// The last batch holds the remainder and is never empty.
func MakeBatches(examples []*Example, batchSize int) []Batch {
	if batchSize <= 0 {
		panic("io: batch size must be positive")
	}
	var batches []Batch
	batch := make(Batch, 0, batchSize)
	for _, example := range examples {
		if len(batch) == batchSize {
			batches = append(batches, batch)
			batch = make(Batch, 0, batchSize)
		}
		batch = append(batch, example)
	}
	if len(batch) > 0 {
		batches = append(batches, batch)
	}
	return batches
}

type DataSet struct {
	Data         []*Example
	BatchSize    int
	Rand         *rand.Rand
	currentOrder []int
	currentIndex int
}

type DatasetOrder int

const (
	OriginalOrder DatasetOrder = iota
	RandomOrder
)

func NewDataSet(data []*Example, batchSize int, rnd *rand.Rand) *DataSet {
	if batchSize <= 0 {
		panic("io: batch size must be positive")
	}
	ds := &DataSet{Data: data, BatchSize: batchSize, Rand: rnd}
	ds.ResetOrder(OriginalOrder)
	return ds
}

// ResetOrder rewinds the cursor. RandomOrder requires a random source.
func (d *DataSet) ResetOrder(order DatasetOrder) {
	if d.currentOrder == nil {
		d.currentOrder = make([]int, len(d.Data))
	}
	switch order {
	case OriginalOrder:
		for i := range d.currentOrder {
			d.currentOrder[i] = i
		}
	case RandomOrder:
		copy(d.currentOrder, d.Rand.Perm(len(d.currentOrder)))
	}
	d.currentIndex = 0
}

// Next returns the following batch in the current order, or an empty batch once the data is exhausted.
func (d *DataSet) Next() Batch {
	batch := make(Batch, 0, d.BatchSize)
	for ; d.currentIndex < len(d.currentOrder) && len(batch) < d.BatchSize; d.currentIndex++ {
		batch = append(batch, d.Data[d.currentOrder[d.currentIndex]])
	}
	return batch
}

func (d *DataSet) Size() int {
	return len(d.Data)
}
