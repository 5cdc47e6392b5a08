package utils

import (
	"testing"
	"unicode/utf8"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "Contact request",
			input: "Quiero hablar con un agente",
			want:  "quiero hablar agente",
		},
		{
			name:  "Punctuation and accents",
			input: "¿Cuánto cuesta el departamento en la González Suárez?",
			want:  "cuánto cuesta departamento gonzález suárez",
		},
		{
			name:  "Only stopwords",
			input: "de la que el en y",
			want:  "",
		},
		{
			name:  "Digits and underscores kept",
			input: "ID: 42, piso_3!!",
			want:  "id 42 piso_3",
		},
		{
			name:  "Collapses whitespace",
			input: "  casa\t\tgrande \n jardín ",
			want:  "casa grande jardín",
		},
		{
			name:  "Punctuation glued to stopword",
			input: "de... casa",
			want:  "casa",
		},
		{
			name:  "Empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Quiero hablar con un agente",
		"¿Tienen casas en Cumbayá con 3 habitaciones?",
		"CANCELAR",
		"Departamento: 120m², $150.000 - alícuota 80",
		"İstanbul ÑANDÚ",
		"",
	}

	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestTruncateTokens(t *testing.T) {
	if got := TruncateTokens("a b c d", 2); got != "a b" {
		t.Errorf("TruncateTokens = %q, want %q", got, "a b")
	}
	if got := TruncateTokens("a b", 5); got != "a b" {
		t.Errorf("TruncateTokens = %q, want unchanged", got)
	}
	if got := TruncateTokens("a b", 0); got != "a b" {
		t.Errorf("TruncateTokens with max 0 = %q, want unchanged", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{name: "Short", input: "hola", max: 10, want: "hola"},
		{name: "Exact", input: "hola", max: 4, want: "hola"},
		{name: "Multibyte", input: "ñandú", max: 3, want: "ñan"},
		{name: "Zero", input: "hola", max: 0, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateRunes(tt.input, tt.max)
			if got != tt.want {
				t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("TruncateRunes produced invalid UTF-8: %q", got)
			}
		})
	}
}
