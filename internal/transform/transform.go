// Package transform provides an ordered text-rewrite pipeline applied to
// transcripts after inference and to synthesis text before it reaches the
// engine. The pipeline is empty by default; configuration never populates it,
// it exists for embedders that construct the gateway programmatically.
package transform

// Step rewrites a piece of text. Steps must be pure.
type Step func(string) string

// Pipeline is an ordered list of steps.
type Pipeline []Step

// Apply runs every step in order. A nil or empty pipeline returns text
// unchanged.
func (p Pipeline) Apply(text string) string {
	for _, step := range p {
		text = step(text)
	}
	return text
}
