package identity

import "testing"

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercases",
			input: "Attention Is All You Need",
			want:  "attention is all you need",
		},
		{
			name:  "strips accents",
			input: "Schrödinger Équations Naïve",
			want:  "schrodinger equations naive",
		},
		{
			name:  "drops punctuation",
			input: "BERT: Pre-training of Deep Bidirectional Transformers!",
			want:  "bert pre training of deep bidirectional transformers",
		},
		{
			name:  "hyphen and underscore become spaces",
			input: "state-of-the-art_results",
			want:  "state of the art results",
		},
		{
			name:  "collapses whitespace",
			input: "  deep \t learning \n methods  ",
			want:  "deep learning methods",
		},
		{
			name:  "keeps digits",
			input: "GPT-4 Technical Report",
			want:  "gpt 4 technical report",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "punctuation only",
			input: "!?.,;:",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeTitle(tt.input); got != tt.want {
				t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
