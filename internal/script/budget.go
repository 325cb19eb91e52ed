// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package script

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"

	"github.com/pdiddy/paper-podcast/internal/pipeline"
)

// Budget counts and trims text in cl100k_base tokens.
type Budget struct {
	codec tokenizer.Codec
}

// NewBudget loads the cl100k_base encoding.
func NewBudget() (*Budget, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer: %w", err)
	}
	return &Budget{codec: codec}, nil
}

// Count returns the number of tokens in s.
func (b *Budget) Count(s string) int {
	ids, _, err := b.codec.Encode(s)
	if err != nil {
		return len(s) / 4
	}
	return len(ids)
}

// Truncate keeps the leading max tokens of s. A non-positive max leaves s
// unchanged.
func (b *Budget) Truncate(s string, max int) (string, bool) {
	if max <= 0 {
		return s, false
	}
	ids, _, err := b.codec.Encode(s)
	if err != nil || len(ids) <= max {
		return s, false
	}
	out, err := b.codec.Decode(ids[:max])
	if err != nil {
		return s, false
	}
	return out, true
}

// Tail drops turns from the oldest end until the rest fits in max tokens.
func (b *Budget) Tail(turns []pipeline.Turn, max int) []pipeline.Turn {
	if max <= 0 {
		return turns
	}
	total := 0
	start := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		n := b.Count(turns[i].Content)
		if total+n > max {
			break
		}
		total += n
		start = i
	}
	return turns[start:]
}
