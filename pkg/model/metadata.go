package model

import "fmt"

// NameMap implements a bidirectional mapping between a name and an index
type NameMap struct {
	NameToIndex map[string]int
	IndexToName map[int]string
}

func (f NameMap) Set(name string, index int) {
	f.NameToIndex[name] = index
	f.IndexToName[index] = name
}

func NewNameMap(names ...string) NameMap {
	m := NameMap{
		NameToIndex: map[string]int{},
		IndexToName: map[int]string{},
	}
	for i, name := range names {
		m.Set(name, i)
	}
	return m
}

// SentimentClasses maps the binary label to its class name.
var SentimentClasses = NewNameMap("negative", "positive")

// ClassOf returns the class name of a binary label.
func ClassOf(label bool) string {
	if label {
		return SentimentClasses.IndexToName[1]
	}
	return SentimentClasses.IndexToName[0]
}

// PretrainedModel selects the language model whose embeddings initialize the classifier.
// The zero value means no pretrained embeddings.
type PretrainedModel int

const (
	NoPretrainedModel PretrainedModel = 0
	BigramModel       PretrainedModel = 2
	TrigramModel      PretrainedModel = 3
	FourgramModel     PretrainedModel = 4
)

var pretrainedStores = map[PretrainedModel]string{
	BigramModel:   "embeds_baseline_lm_unlabeled",
	TrigramModel:  "embeds_baseline_lm_3gram_unlabeled",
	FourgramModel: "embeds_baseline_lm_4gram_unlabeled",
}

// StoreName returns the name of the parameter store holding the embeddings of p.
func (p PretrainedModel) StoreName() (string, error) {
	if p == NoPretrainedModel {
		return "", fmt.Errorf("no pretrained model selected")
	}
	name, ok := pretrainedStores[p]
	if !ok {
		return "", fmt.Errorf("unknown pretrained model %d", int(p))
	}
	return name, nil
}

// Validate accepts the recognized selectors 0, 2, 3 and 4.
func (p PretrainedModel) Validate() error {
	if p == NoPretrainedModel {
		return nil
	}
	_, err := p.StoreName()
	return err
}
