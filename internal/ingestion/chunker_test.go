package ingestion

import "testing"

func TestSplitByBlankLinesOffsets(t *testing.T) {
	spans := splitByBlankLines("abc\n\n\ndef")
	if len(spans) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d", len(spans))
	}
	if spans[0].text != "abc" || spans[0].start != 0 || spans[0].end != 3 {
		t.Fatalf("unexpected first paragraph: %+v", spans[0])
	}
	if spans[1].text != "\ndef" || spans[1].start != 5 || spans[1].end != 9 {
		t.Fatalf("unexpected second paragraph: %+v", spans[1])
	}
}

func TestSplitByBlankLinesSkipsWhitespaceParagraphs(t *testing.T) {
	spans := splitByBlankLines("first\n\n   \n\nsecond")
	if len(spans) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d", len(spans))
	}
	if spans[0].text != "first" || spans[1].text != "second" {
		t.Fatalf("unexpected paragraphs: %+v", spans)
	}
}

func TestSplitLines(t *testing.T) {
	chunks := splitLines("alpha\n\nbeta\n")
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Text != "alpha" || chunks[0].Start != 0 || chunks[0].End != 5 || chunks[0].Index != 0 {
		t.Fatalf("unexpected first chunk: %+v", chunks[0])
	}
	if chunks[1].Text != "beta" || chunks[1].Start != 7 || chunks[1].End != 11 || chunks[1].Index != 1 {
		t.Fatalf("unexpected second chunk: %+v", chunks[1])
	}
}

func TestSplitSentenceishDropsShortFragments(t *testing.T) {
	chunks := splitSentenceish("Tiny. The user cannot log in. Cache was stale!")
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Text != "The user cannot log in." {
		t.Fatalf("unexpected first sentence: %q", chunks[0].Text)
	}
	if chunks[1].Text != "Cache was stale!" || chunks[1].End != 46 {
		t.Fatalf("unexpected second sentence: %+v", chunks[1])
	}
}

func TestSplitSentenceishFallsBackToWholeText(t *testing.T) {
	chunks := splitSentenceish("Hi.")
	if len(chunks) != 1 {
		t.Fatalf("expected fallback chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "Hi." || chunks[0].Start != 0 || chunks[0].End != 3 {
		t.Fatalf("unexpected fallback chunk: %+v", chunks[0])
	}
}

func TestSplitResolutionBreaksNumberedSteps(t *testing.T) {
	chunks := splitResolution("1. Restart the service. 2. Clear cache.\nDone.")
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].Text != "1. Restart the service." || chunks[0].Start != 0 {
		t.Fatalf("unexpected first step: %+v", chunks[0])
	}
	if chunks[1].Text != "2. Clear cache." || chunks[1].Start != 23 {
		t.Fatalf("unexpected second step: %+v", chunks[1])
	}
	if chunks[2].Text != "Done." || chunks[2].Start != 40 || chunks[2].Index != 2 {
		t.Fatalf("unexpected trailing step: %+v", chunks[2])
	}
}

func TestSplitResolutionBulletMarkers(t *testing.T) {
	chunks := splitResolution("- open settings\n- reset the password flag")
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Text != "- open settings" {
		t.Fatalf("unexpected first bullet: %q", chunks[0].Text)
	}
	if chunks[1].Text != "- reset the password flag" {
		t.Fatalf("unexpected second bullet: %q", chunks[1].Text)
	}
}

func TestSplitScriptTextParagraphsThenLines(t *testing.T) {
	chunks := splitScriptText("run A\nrun B\n\nrun C")
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].Text != "run A" || chunks[0].Start != 0 {
		t.Fatalf("unexpected first line: %+v", chunks[0])
	}
	if chunks[1].Text != "run B" || chunks[1].Start != 6 {
		t.Fatalf("unexpected second line: %+v", chunks[1])
	}
	if chunks[2].Text != "run C" || chunks[2].Start != 13 || chunks[2].Index != 2 {
		t.Fatalf("unexpected third line: %+v", chunks[2])
	}
}

func TestSplitParagraphThenSentenceGlobalOffsets(t *testing.T) {
	chunks := splitParagraphThenSentence("First sentence here.\n\nSecond paragraph text.")
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Text != "First sentence here." || chunks[0].Start != 0 {
		t.Fatalf("unexpected first chunk: %+v", chunks[0])
	}
	if chunks[1].Text != "Second paragraph text." || chunks[1].Start != 22 {
		t.Fatalf("unexpected second chunk: %+v", chunks[1])
	}
}
