package llm

import "strings"

// Collect drains a stream and returns the concatenated text. If the stream
// ended with an error chunk, the text received so far is returned together
// with that chunk's error.
func Collect(ch <-chan Chunk) (string, error) {
	var sb strings.Builder
	var err error
	for c := range ch {
		sb.WriteString(c.Text)
		if c.FinishReason == FinishReasonError && err == nil {
			err = c.Err
		}
	}
	return sb.String(), err
}
