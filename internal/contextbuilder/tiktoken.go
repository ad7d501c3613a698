package contextbuilder

import "github.com/pkoukk/tiktoken-go"

// TiktokenEstimator counts tokens using a real tiktoken-go encoding,
// for deployments that need exact budget accounting instead of the
// chars/4 heuristic CharEstimator provides.
type TiktokenEstimator struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenEstimator loads the named encoding (e.g. "cl100k_base").
func NewTiktokenEstimator(encodingName string) (*TiktokenEstimator, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	return &TiktokenEstimator{encoding: enc}, nil
}

func (t *TiktokenEstimator) Estimate(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}
