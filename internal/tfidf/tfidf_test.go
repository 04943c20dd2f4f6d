package tfidf

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func TestFitTransform(t *testing.T) {
	tests := []struct {
		name      string
		documents []string
		wantRows  int
		wantErr   error
	}{
		{
			name:      "empty corpus",
			documents: []string{},
			wantErr:   ErrEmptyVocabulary,
		},
		{
			name:      "only stop words",
			documents: []string{"the and of", "it is a"},
			wantErr:   ErrEmptyVocabulary,
		},
		{
			name:      "single document",
			documents: []string{"compiler design"},
			wantRows:  1,
		},
		{
			name:      "multiple documents",
			documents: []string{"lexical analysis", "syntax analysis", "code generation"},
			wantRows:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewVectorizer().FitTransform(tt.documents)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("FitTransform() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("FitTransform() unexpected error: %v", err)
			}
			if len(m.Rows) != tt.wantRows {
				t.Errorf("FitTransform() rows = %d, want %d", len(m.Rows), tt.wantRows)
			}
			for i, row := range m.Rows {
				if len(row) != len(m.Vocabulary) {
					t.Errorf("row %d has %d columns, vocabulary has %d", i, len(row), len(m.Vocabulary))
				}
			}
		})
	}
}

func TestRowsAreUnitLength(t *testing.T) {
	docs := []string{
		"Explain the phases of a compiler",
		"Define lexical analysis and tokens",
		"lexical analysis",
	}
	m, err := NewVectorizer().FitTransform(docs)
	if err != nil {
		t.Fatalf("FitTransform() error: %v", err)
	}
	for i, row := range m.Rows {
		if norm := floats.Norm(row, 2); math.Abs(norm-1) > 1e-9 {
			t.Errorf("row %d norm = %f, want 1", i, norm)
		}
	}
}

func TestZeroRowForStopWordDocument(t *testing.T) {
	m, err := NewVectorizer().FitTransform([]string{"parsing tables", "the of and"})
	if err != nil {
		t.Fatalf("FitTransform() error: %v", err)
	}
	if norm := floats.Norm(m.Rows[1], 2); norm != 0 {
		t.Errorf("stop-word-only row norm = %f, want 0", norm)
	}
	if got := Cosine(m.Rows[0], m.Rows[1]); got != 0 {
		t.Errorf("Cosine() with zero row = %f, want 0", got)
	}
}

func TestIDFSmoothing(t *testing.T) {
	v := NewVectorizer()
	if _, err := v.FitTransform([]string{"parser lexer", "parser"}); err != nil {
		t.Fatalf("FitTransform() error: %v", err)
	}

	// parser appears in both documents, lexer in one
	wantParser := math.Log(3.0/3.0) + 1
	wantLexer := math.Log(3.0/2.0) + 1
	if got := v.idf[v.vocabulary["parser"]]; math.Abs(got-wantParser) > 1e-9 {
		t.Errorf("idf(parser) = %f, want %f", got, wantParser)
	}
	if got := v.idf[v.vocabulary["lexer"]]; math.Abs(got-wantLexer) > 1e-9 {
		t.Errorf("idf(lexer) = %f, want %f", got, wantLexer)
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		stem bool
		want []string
	}{
		{
			name: "empty string",
			text: "",
			want: []string{},
		},
		{
			name: "stop words and single characters removed",
			text: "What is a compiler? Explain.",
			want: []string{"compiler", "explain"},
		},
		{
			name: "mixed case and numbers",
			text: "LL(1) Parsing Table",
			want: []string{"ll", "parsing", "table"},
		},
		{
			name: "underscores kept inside tokens",
			text: "symbol_table entries",
			want: []string{"symbol_table", "entries"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewVectorizer(WithStemming(tt.stem)).tokenize(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("tokenize() = %q, want %q", got, tt.want)
			}
			for i, token := range got {
				if token != tt.want[i] {
					t.Errorf("tokenize() token[%d] = %s, want %s", i, token, tt.want[i])
				}
			}
		})
	}
}

func TestStemmingSharesColumns(t *testing.T) {
	got := NewVectorizer(WithStemming(true)).tokenize("compilers compiler")
	if len(got) != 2 {
		t.Fatalf("tokenize() = %q, want 2 tokens", got)
	}
	if got[0] != got[1] {
		t.Errorf("stemmed tokens differ: %q vs %q", got[0], got[1])
	}
}

func TestCustomStopWords(t *testing.T) {
	v := NewVectorizer(WithStopWords(nil))
	got := v.tokenize("the system")
	if len(got) != 2 {
		t.Errorf("tokenize() with no stop words = %q, want 2 tokens", got)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"scaled", []float64{1, 1}, []float64{3, 3}, 1},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0},
		{"length mismatch", []float64{1}, []float64{1, 1}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestJointVocabularySimilarity(t *testing.T) {
	questions := []string{
		"Explain the working of a lexical analyzer with tokens",
		"Construct an LR parsing table for the grammar",
	}
	topics := []string{"Lexical analyzer and tokens", "LR parsing"}

	m, err := NewVectorizer().FitTransform(append(append([]string{}, questions...), topics...))
	if err != nil {
		t.Fatalf("FitTransform() error: %v", err)
	}

	q0, q1 := m.Rows[0], m.Rows[1]
	t0, t1 := m.Rows[2], m.Rows[3]
	if Cosine(q0, t0) <= Cosine(q0, t1) {
		t.Errorf("question 0 should be closer to topic 0")
	}
	if Cosine(q1, t1) <= Cosine(q1, t0) {
		t.Errorf("question 1 should be closer to topic 1")
	}
}

func TestTransform(t *testing.T) {
	v := NewVectorizer()
	if _, err := v.Transform([]string{"anything"}); !errors.Is(err, ErrEmptyVocabulary) {
		t.Errorf("Transform() before fit error = %v, want ErrEmptyVocabulary", err)
	}

	if _, err := v.FitTransform([]string{"parsing table", "lexical tokens"}); err != nil {
		t.Fatalf("FitTransform() error: %v", err)
	}
	m, err := v.Transform([]string{"parsing unknownword"})
	if err != nil {
		t.Fatalf("Transform() error: %v", err)
	}
	if len(m.Rows[0]) != len(m.Vocabulary) {
		t.Errorf("Transform() row width = %d, want %d", len(m.Rows[0]), len(m.Vocabulary))
	}
}

func TestTopTerms(t *testing.T) {
	m := Matrix{Vocabulary: []string{"alpha", "beta", "gamma", "delta"}}
	row := []float64{0.1, 0.7, 0, 0.5}

	got := m.TopTerms(row, 2)
	want := []string{"beta", "delta"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("TopTerms() = %q, want %q", got, want)
	}
	if got := m.TopTerms(row, 10); len(got) != 3 {
		t.Errorf("TopTerms() should skip zero weights, got %q", got)
	}
}
