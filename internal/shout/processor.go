package shout

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Checkpoint is invoked by processors at least once per unit of work. It
// returns an error when the caller wants processing to stop: cooperative
// cancellation, deadline expiry, or a failed lease extension.
type Checkpoint func() error

// Processor transforms a decoded payload into its shouted form.
type Processor interface {
	Process(text string, checkpoint Checkpoint) (string, error)
}

// Upper returns text shouted, with full Unicode case folding.
func Upper(text string) string {
	return cases.Upper(language.Und).String(text)
}

// Transformer is the production processor: a pure uppercase transform.
type Transformer struct{}

// NewTransformer constructs the production processor.
func NewTransformer() *Transformer {
	return &Transformer{}
}

// Process uppercases text. The checkpoint runs once so even instant work
// observes cancellation and expiry.
func (t *Transformer) Process(text string, checkpoint Checkpoint) (string, error) {
	if checkpoint != nil {
		if err := checkpoint(); err != nil {
			return "", err
		}
	}
	return Upper(text), nil
}
