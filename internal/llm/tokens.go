package llm

import (
	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates how many tokens a prompt will cost. The estimate
// uses an OpenAI encoding, so it is approximate for other model families.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

func NewTokenCounter(encoding string) (*TokenCounter, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &TokenCounter{enc: enc}, nil
}

func (t *TokenCounter) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}
