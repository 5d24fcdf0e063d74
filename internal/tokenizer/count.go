package tokenizer

import (
	"errors"

	"github.com/pkoukk/tiktoken-go"
)

var (
	// errNilCounter reports a missing counter.
	errNilCounter = errors.New("nil tokenizer counter")
	// errNilEncoding reports a counter built without a tiktoken encoding.
	errNilEncoding = errors.New("nil tiktoken encoding")
)

// allowAllSpecialTokens lets compiled documents quote special-token text such
// as <|endoftext|> without the encoder rejecting it.
var allowAllSpecialTokens = []string{"all"}

// encodingCounter counts tokens with a tiktoken encoding. name is the model
// or encoding reported in the compile summary.
type encodingCounter struct {
	encoding *tiktoken.Tiktoken
	name     string
}

func (counter encodingCounter) Name() string {
	return counter.name
}

func (counter encodingCounter) CountString(input string) (int, error) {
	if counter.encoding == nil {
		return 0, errNilEncoding
	}
	return len(counter.encoding.Encode(input, allowAllSpecialTokens, nil)), nil
}

// Estimate counts tokens in text. The count is advisory: callers log the error
// and continue with zero.
func Estimate(counter Counter, text string) (int, error) {
	if counter == nil {
		return 0, errNilCounter
	}
	tokens, countError := counter.CountString(text)
	if countError != nil {
		return 0, countError
	}
	return tokens, nil
}
