package synth

import "testing"

func TestSpeakable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text unchanged", "Hello there.", "Hello there."},
		{"emoji stripped", "Great job! \U0001F389\U0001F600", "Great job!"},
		{"emoji between words", "hello \U0001F600 world", "hello world"},
		{"symbols stripped", "price → high ↑", "price high"},
		{"punctuation kept", "Wait, really? Yes; (quite) 100%!", "Wait, really? Yes; (quite) 100%!"},
		{"whitespace collapsed", "a\t\tb\n\nc", "a b c"},
		{"accents kept", "café naïve", "café naïve"},
		{"swahili kept", "habari yako rafiki", "habari yako rafiki"},
		{"only emoji", "\U0001F600\U0001F680\U0001F4A9", ""},
		{"empty input", "", ""},
		{"leading trailing space trimmed", "  hello  ", "hello"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Speakable(tc.in); got != tc.want {
				t.Errorf("Speakable(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
