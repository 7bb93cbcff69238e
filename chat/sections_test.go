package chat

import "testing"

func TestSplitSectionsNoHeadings(t *testing.T) {
	for _, text := range []string{"", "Just some prose without headings.", "1. not bold\n2. still not"} {
		got := SplitSections(text)
		if !got.IsZero() {
			t.Fatalf("expected empty sections for %q, got %+v", text, got)
		}
	}
}

func TestSplitSectionsFourHeadings(t *testing.T) {
	text := "Intro ignored\n" +
		"1. **Évaluation** :\n- Symptômes clés : tristesse\n" +
		"2. **Hypothèse Diagnostique** :\n- Épisode dépressif\n" +
		"3. **Recommandations** :\n- Consultation en présentiel : Oui\n" +
		"4. **Disclaimer** : *\"Ceci n’est pas un avis médical définitif.\"*"

	got := SplitSections(text)

	want := Sections{
		Evaluation:      " :\n- Symptômes clés : tristesse\n",
		Diagnosis:       " :\n- Épisode dépressif\n",
		Recommendations: " :\n- Consultation en présentiel : Oui\n",
		Disclaimer:      " : *\"Ceci n’est pas un avis médical définitif.\"*",
	}
	if got != want {
		t.Fatalf("unexpected sections:\n got %#v\nwant %#v", got, want)
	}
}

func TestSplitSectionsDropsExtraSections(t *testing.T) {
	text := "1. **A** a 2. **B** b 3. **C** c 4. **D** d 5. **E** e"

	got := SplitSections(text)
	if got.Disclaimer != " d " {
		t.Fatalf("expected fourth body %q, got %q", " d ", got.Disclaimer)
	}
	if got.Evaluation != " a " || got.Diagnosis != " b " || got.Recommendations != " c " {
		t.Fatalf("unexpected leading bodies %+v", got)
	}
}

func TestSplitSectionsMissingSectionsAreEmpty(t *testing.T) {
	got := SplitSections("1. **Évaluation** only one")
	if got.Evaluation != " only one" {
		t.Fatalf("unexpected evaluation %q", got.Evaluation)
	}
	if got.Diagnosis != "" || got.Recommendations != "" || got.Disclaimer != "" {
		t.Fatalf("expected trailing sections empty, got %+v", got)
	}
}

func TestSplitSectionsHeadingDoesNotSpanLines(t *testing.T) {
	got := SplitSections("1. **broken\nheading** body")
	if !got.IsZero() {
		t.Fatalf("expected no match across newline, got %+v", got)
	}
}

func TestSplitSectionsUnicodeSpacing(t *testing.T) {
	text := "1.\u00A0**Évaluation** e\n2.\u2028**Hypothèse** d\n3.\u202F**Recommandations** r\n4.\uFEFF**Disclaimer** x"
	got := SplitSections(text)
	want := Sections{Evaluation: " e\n", Diagnosis: " d\n", Recommendations: " r\n", Disclaimer: " x"}
	if got != want {
		t.Fatalf("SplitSections() = %+v, want %+v", got, want)
	}
}

func TestSplitSectionsHeadingStopsAtLineSeparator(t *testing.T) {
	for _, sep := range []string{"\r", "\u2028", "\u2029"} {
		if got := SplitSections("1. **broken" + sep + "heading** body"); !got.IsZero() {
			t.Fatalf("expected no match across %q, got %+v", sep, got)
		}
	}
}

func TestAnswerSectionsPrefersKeyedMapping(t *testing.T) {
	keyed := &Sections{Evaluation: "e", Diagnosis: "d", Recommendations: "r", Disclaimer: "x"}
	answer := Answer{Response: "1. **A** positional", Keyed: keyed}
	if got := answer.Sections(); got != *keyed {
		t.Fatalf("expected keyed sections, got %+v", got)
	}

	answer.Keyed = &Sections{}
	if got := answer.Sections(); got.Evaluation != " positional" {
		t.Fatalf("expected positional fallback for empty mapping, got %+v", got)
	}
}
