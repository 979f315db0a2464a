package onnx

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"
)

// Standard BERT special token ids, used when the vocab omits them.
const (
	defaultUnkID = 100
	defaultClsID = 101
	defaultSepID = 102
)

// Tokenizer is a lowercase BERT WordPiece tokenizer.
type Tokenizer struct {
	vocab map[string]int64
	cls   int64
	sep   int64
	unk   int64
}

// LoadTokenizer reads the vocab from a HuggingFace tokenizer.json file.
func LoadTokenizer(path string) (*Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer: %w", err)
	}
	return ParseTokenizer(data)
}

// ParseTokenizer builds a Tokenizer from tokenizer.json contents.
func ParseTokenizer(data []byte) (*Tokenizer, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("tokenizer: invalid json")
	}

	vocabJSON := gjson.GetBytes(data, "model.vocab")
	if !vocabJSON.IsObject() {
		return nil, fmt.Errorf("tokenizer: model.vocab missing")
	}

	vocab := make(map[string]int64)
	vocabJSON.ForEach(func(key, value gjson.Result) bool {
		vocab[key.String()] = value.Int()
		return true
	})

	t := &Tokenizer{vocab: vocab}
	t.cls = t.special("[CLS]", defaultClsID)
	t.sep = t.special("[SEP]", defaultSepID)
	t.unk = t.special("[UNK]", defaultUnkID)
	return t, nil
}

func (t *Tokenizer) special(token string, fallback int64) int64 {
	if id, ok := t.vocab[token]; ok {
		return id
	}
	return fallback
}

// VocabSize returns the number of vocab entries.
func (t *Tokenizer) VocabSize() int {
	return len(t.vocab)
}

// Tokenize converts text to token ids, without [CLS] and [SEP].
func (t *Tokenizer) Tokenize(text string) []int64 {
	var ids []int64
	for _, word := range splitWords(strings.ToLower(text)) {
		if id, ok := t.vocab[word]; ok {
			ids = append(ids, id)
			continue
		}
		ids = append(ids, t.wordPiece(word)...)
	}
	return ids
}

// Encode wraps the tokens of text in [CLS] and [SEP] and pads to maxLen.
// It returns the ids and the attention mask.
func (t *Tokenizer) Encode(text string, maxLen int) ([]int64, []int64) {
	tokens := t.Tokenize(text)
	if len(tokens) > maxLen-2 {
		tokens = tokens[:maxLen-2]
	}

	ids := make([]int64, maxLen)
	mask := make([]int64, maxLen)

	ids[0] = t.cls
	mask[0] = 1
	for i, id := range tokens {
		ids[i+1] = id
		mask[i+1] = 1
	}
	end := len(tokens) + 1
	ids[end] = t.sep
	mask[end] = 1
	return ids, mask
}

// wordPiece splits a word by greedy longest-prefix match. A word with an
// unmatchable piece becomes a single [UNK].
func (t *Tokenizer) wordPiece(word string) []int64 {
	runes := []rune(word)
	var ids []int64
	for start := 0; start < len(runes); {
		end := len(runes)
		var match int64 = -1
		for end > start {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.vocab[piece]; ok {
				match = id
				break
			}
			end--
		}
		if match < 0 {
			return []int64{t.unk}
		}
		ids = append(ids, match)
		start = end
	}
	return ids
}

// splitWords splits on whitespace and isolates punctuation, as BERT's basic
// tokenizer does.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return words
}
