package io

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v2"
	mat "github.com/nlpodyssey/spago/pkg/mat32"
)

// EmbeddingTable is a dense rows x cols table of embedding vectors, stored row-major.
type EmbeddingTable struct {
	Rows int
	Cols int
	Data []float32
}

func NewEmbeddingTable(rows, cols int) *EmbeddingTable {
	return &EmbeddingTable{Rows: rows, Cols: cols, Data: make([]float32, rows*cols)}
}

// Row returns the i-th embedding vector. The slice aliases the table data.
func (t *EmbeddingTable) Row(i int) []float32 {
	return t.Data[i*t.Cols : (i+1)*t.Cols]
}

// CheckShape fails unless the table is exactly rows x cols.
func (t *EmbeddingTable) CheckShape(rows, cols int) error {
	if t.Rows != rows || t.Cols != cols {
		return fmt.Errorf("embedding table is %dx%d, expected %dx%d", t.Rows, t.Cols, rows, cols)
	}
	if len(t.Data) != rows*cols {
		return fmt.Errorf("embedding table holds %d values, expected %d", len(t.Data), rows*cols)
	}
	return nil
}

// EmbeddingSource resolves a named pretrained embedding table.
type EmbeddingSource interface {
	Load(name string) (*EmbeddingTable, error)
}

// EmbedPrefix is the key prefix of the embedding sub-table inside a parameter store.
const EmbedPrefix = "/embed/"

var shapeKey = []byte(EmbedPrefix + "shape")

func rowKey(row int) []byte {
	return []byte(fmt.Sprintf("%s%d", EmbedPrefix, row))
}

// StoreSource reads embedding tables from badger parameter stores kept under Dir.
type StoreSource struct {
	Dir string
}

func (s StoreSource) Load(name string) (*EmbeddingTable, error) {
	return LoadEmbeddingStore(filepath.Join(s.Dir, name))
}

// LoadEmbeddingStore reads the embedding sub-table of the parameter store at path.
func LoadEmbeddingStore(path string) (*EmbeddingTable, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("error opening embedding store: %w", err)
	}
	db, err := badger.Open(badger.DefaultOptions(path).WithReadOnly(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("error opening embedding store %s: %w", path, err)
	}
	defer db.Close()

	var table *EmbeddingTable
	err = db.View(func(txn *badger.Txn) error {
		shape, err := readValue(txn, shapeKey)
		if err != nil {
			return fmt.Errorf("error reading shape: %w", err)
		}
		dims := make([]float32, 2)
		if err := decodeRow(shape, dims); err != nil {
			return fmt.Errorf("malformed shape record: %w", err)
		}
		table = NewEmbeddingTable(int(dims[0]), int(dims[1]))
		for i := 0; i < table.Rows; i++ {
			value, err := readValue(txn, rowKey(i))
			if err != nil {
				return fmt.Errorf("error reading row %d: %w", i, err)
			}
			if err := decodeRow(value, table.Row(i)); err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error loading embeddings from %s: %w", path, err)
	}
	return table, nil
}

// SaveEmbeddingStore writes table as the embedding sub-table of a parameter store at path.
func SaveEmbeddingStore(path string, table *EmbeddingTable) error {
	if err := table.CheckShape(table.Rows, table.Cols); err != nil {
		return err
	}
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return fmt.Errorf("error creating embedding store %s: %w", path, err)
	}
	defer db.Close()

	wb := db.NewWriteBatch()
	defer wb.Cancel()

	shape, err := encodeRow([]float32{float32(table.Rows), float32(table.Cols)})
	if err != nil {
		return err
	}
	if err := wb.Set(shapeKey, shape); err != nil {
		return fmt.Errorf("error writing shape: %w", err)
	}
	for i := 0; i < table.Rows; i++ {
		value, err := encodeRow(table.Row(i))
		if err != nil {
			return err
		}
		if err := wb.Set(rowKey(i), value); err != nil {
			return fmt.Errorf("error writing row %d: %w", i, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("error flushing embedding store %s: %w", path, err)
	}
	return nil
}

func readValue(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// encodeRow writes row as a spago column vector in the mat32 binary format.
func encodeRow(row []float32) ([]byte, error) {
	var buf bytes.Buffer
	if err := mat.MarshalBinaryMatrix(mat.NewVecDense(row), &buf); err != nil {
		return nil, fmt.Errorf("error encoding vector: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeRow reads a vector written by encodeRow into row, which must have the same size.
func decodeRow(value []byte, row []float32) error {
	m, err := mat.UnmarshalBinaryMatrix(bytes.NewReader(value))
	if err != nil {
		return fmt.Errorf("error decoding vector: %w", err)
	}
	if m == nil {
		return fmt.Errorf("empty vector record")
	}
	if m.Size() != len(row) {
		return fmt.Errorf("expected %d values, got %d", len(row), m.Size())
	}
	copy(row, m.Data())
	return nil
}

// FileSource reads gob encoded embedding tables named <name>.gob from Dir.
type FileSource struct {
	Dir string
}

func (s FileSource) Load(name string) (*EmbeddingTable, error) {
	fileName := filepath.Join(s.Dir, name+".gob")
	f, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("error opening embedding file: %w", err)
	}
	defer f.Close()

	table := EmbeddingTable{}
	if err := gob.NewDecoder(f).Decode(&table); err != nil {
		return nil, fmt.Errorf("error decoding embeddings from %s: %w", fileName, err)
	}
	return &table, nil
}

func SaveEmbeddingFile(fileName string, table *EmbeddingTable) error {
	f, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("error creating embedding file %s: %w", fileName, err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(table); err != nil {
		return fmt.Errorf("error encoding embeddings: %w", err)
	}
	return nil
}
