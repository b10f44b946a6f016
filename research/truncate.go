package research

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const truncationEncoding = "cl100k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

// TruncateTokens cuts text to at most limit tokens. Token-based truncation
// keeps multi-byte scripts (judgments often carry Devanagari passages)
// intact where a byte cut would split runes mid-sequence.
func TruncateTokens(text string, limit int) (string, error) {
	if limit <= 0 || text == "" {
		return "", nil
	}

	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding(truncationEncoding)
	})
	if encErr != nil {
		return "", fmt.Errorf("load %s encoding: %w", truncationEncoding, encErr)
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= limit {
		return text, nil
	}
	return enc.Decode(tokens[:limit]), nil
}
