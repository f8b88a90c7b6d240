package io

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// [(1, [3, 4]), (0, [5]), (True, [2, 2, 2])] pickled with protocol 2.
const pickledExamples = "\x80\x02](K\x01](K\x03K\x04e\x86K\x00]K\x05a\x86\x88](K\x02K\x02K\x02e\x86e."

func TestReadPickle(t *testing.T) {
	examples, err := ReadPickle(bytes.NewBufferString(pickledExamples))
	require.NoError(t, err)
	require.Equal(t, []*Example{
		{Label: true, Tokens: []int{3, 4}},
		{Label: false, Tokens: []int{5}},
		{Label: true, Tokens: []int{2, 2, 2}},
	}, examples)
}

func TestReadPickleRejectsBadLabel(t *testing.T) {
	// [(7, [1])]
	_, err := ReadPickle(bytes.NewBufferString("\x80\x02](K\x07]K\x01a\x86e."))
	require.Error(t, err)
}

func TestLoadSplits(t *testing.T) {
	dir := t.TempDir()
	train := makeExamples(5)
	valid := makeExamples(2)
	writeGob(t, filepath.Join(dir, TrainSplit+".gob"), train)
	writeGob(t, filepath.Join(dir, ValidSplit+".gob"), valid)
	require.NoError(t, os.WriteFile(filepath.Join(dir, TestSplit+".pkl"), []byte(pickledExamples), 0o644))

	splits, err := LoadSplits(dir)
	require.NoError(t, err)
	require.Equal(t, train, splits.Train)
	require.Equal(t, valid, splits.Valid)
	require.Equal(t, 3, len(splits.Test))
}

func TestLoadSplitsMissingFile(t *testing.T) {
	dir := t.TempDir()
	writeGob(t, filepath.Join(dir, TrainSplit+".gob"), makeExamples(1))

	_, err := LoadSplits(dir)
	require.Error(t, err)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCheckVocabulary(t *testing.T) {
	require.NoError(t, CheckVocabulary(makeExamples(4), 4))
	require.Error(t, CheckVocabulary(makeExamples(4), 3))
	require.Error(t, CheckVocabulary([]*Example{{Label: true}}, 10))
	require.Error(t, CheckVocabulary([]*Example{{Tokens: []int{-1}}}, 10))
}

func writeGob(t *testing.T, fileName string, examples []*Example) {
	f, err := os.Create(fileName)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, SaveData(examples, f))
}
