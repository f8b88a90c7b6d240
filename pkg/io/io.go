package io

import (
	"encoding/gob"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"

	"github.com/nlpodyssey/gopickle/pickle"
	"github.com/nlpodyssey/gopickle/types"
)

const (
	TrainSplit = "train_ix"
	ValidSplit = "valid_ix"
	TestSplit  = "test_ix"
)

// Supported dataset file extensions, in lookup order.
var dataExtensions = []string{".pkl", ".gob"}

// Splits holds the three preprocessed example lists.
type Splits struct {
	Train []*Example
	Valid []*Example
	Test  []*Example
}

// LoadSplits reads the train, validation and test example lists from dir.
func LoadSplits(dir string) (*Splits, error) {
	var err error
	splits := &Splits{}
	if splits.Train, err = LoadSplit(dir, TrainSplit); err != nil {
		return nil, err
	}
	if splits.Valid, err = LoadSplit(dir, ValidSplit); err != nil {
		return nil, err
	}
	if splits.Test, err = LoadSplit(dir, TestSplit); err != nil {
		return nil, err
	}
	return splits, nil
}

// LoadSplit finds the file for the named split in dir and decodes it.
func LoadSplit(dir, name string) ([]*Example, error) {
	for _, ext := range dataExtensions {
		fileName := filepath.Join(dir, name+ext)
		if _, err := os.Stat(fileName); err == nil {
			return LoadData(fileName)
		}
	}
	return nil, fmt.Errorf("no data file for split %s in %s: %w", name, dir, os.ErrNotExist)
}

// LoadData decodes an example list, choosing the codec from the file extension.
func LoadData(fileName string) ([]*Example, error) {
	inputFile, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	defer inputFile.Close()

	switch filepath.Ext(fileName) {
	case ".pkl":
		return ReadPickle(inputFile)
	case ".gob":
		return ReadGob(inputFile)
	default:
		return nil, fmt.Errorf("unsupported data file %s", fileName)
	}
}

// ReadPickle decodes a pickled list of (label, [token, ...]) pairs.
func ReadPickle(r io.Reader) ([]*Example, error) {
	u := pickle.NewUnpickler(r)
	data, err := u.Load()
	if err != nil {
		return nil, fmt.Errorf("error unpickling data: %w", err)
	}
	records, ok := sequence(data)
	if !ok {
		return nil, fmt.Errorf("expected a list of examples, got %T", data)
	}
	result := make([]*Example, len(records))
	for i, record := range records {
		example, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("error parsing example %d: %w", i, err)
		}
		result[i] = example
	}
	return result, nil
}

func parseRecord(record interface{}) (*Example, error) {
	pair, ok := sequence(record)
	if !ok || len(pair) != 2 {
		return nil, fmt.Errorf("expected a (label, tokens) pair, got %T", record)
	}
	label, err := parseLabel(pair[0])
	if err != nil {
		return nil, err
	}
	values, ok := sequence(pair[1])
	if !ok {
		return nil, fmt.Errorf("expected a token list, got %T", pair[1])
	}
	tokens := make([]int, len(values))
	for i, v := range values {
		if tokens[i], err = parseInt(v); err != nil {
			return nil, fmt.Errorf("token %d: %w", i, err)
		}
	}
	return &Example{Label: label, Tokens: tokens}, nil
}

func sequence(v interface{}) ([]interface{}, bool) {
	switch s := v.(type) {
	case *types.List:
		return []interface{}(*s), true
	case *types.Tuple:
		return []interface{}(*s), true
	case []interface{}:
		return s, true
	default:
		return nil, false
	}
}

func parseLabel(v interface{}) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	n, err := parseInt(v)
	if err != nil {
		return false, fmt.Errorf("label: %w", err)
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("label must be 0 or 1, got %d", n)
	}
}

func parseInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case *big.Int:
		if !n.IsInt64() {
			return 0, fmt.Errorf("integer %s out of range", n.String())
		}
		return int(n.Int64()), nil
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
}

func ReadGob(r io.Reader) ([]*Example, error) {
	var result []*Example
	if err := gob.NewDecoder(r).Decode(&result); err != nil {
		return nil, fmt.Errorf("error decoding data: %w", err)
	}
	return result, nil
}

func SaveData(examples []*Example, writer io.Writer) error {
	if err := gob.NewEncoder(writer).Encode(examples); err != nil {
		return fmt.Errorf("error encoding data: %w", err)
	}
	return nil
}

// CheckVocabulary verifies that every example has at least one token and that all tokens
// are valid indices into a vocabulary of vocabSize entries.
func CheckVocabulary(examples []*Example, vocabSize int) error {
	for i, example := range examples {
		if len(example.Tokens) == 0 {
			return fmt.Errorf("example %d has no tokens", i)
		}
		for _, token := range example.Tokens {
			if token < 0 || token >= vocabSize {
				return fmt.Errorf("example %d: token %d outside vocabulary of size %d", i, token, vocabSize)
			}
		}
	}
	return nil
}
