package session

import (
	"testing"
)

func collect(b *sentenceBuffer, fragments ...string) []offsetSentence {
	var out []offsetSentence
	for _, f := range fragments {
		out = append(out, b.Add(f)...)
	}
	return out
}

func TestSentenceBuffer_SplitsOnTerminatorPlusSpace(t *testing.T) {
	t.Parallel()

	b := &sentenceBuffer{}
	got := collect(b, "Hi! How are", " you?")
	if len(got) != 1 || got[0].Text != "Hi!" {
		t.Fatalf("mid-stream sentences: want [Hi!], got %v", got)
	}
	final, ok := b.Flush()
	if !ok || final.Text != "How are you?" {
		t.Errorf("flush: want %q, got %q (ok=%v)", "How are you?", final.Text, ok)
	}
}

func TestSentenceBuffer_MinimalPrefix(t *testing.T) {
	t.Parallel()

	b := &sentenceBuffer{}
	got := collect(b, "One. Two. Three")
	if len(got) != 2 || got[0].Text != "One." || got[1].Text != "Two." {
		t.Fatalf("minimal prefix split: got %v", got)
	}
}

func TestSentenceBuffer_DecimalNotSplit(t *testing.T) {
	t.Parallel()

	b := &sentenceBuffer{}
	got := collect(b, "Pi is 3.14 roughly. Yes")
	if len(got) != 1 || got[0].Text != "Pi is 3.14 roughly." {
		t.Fatalf("decimal handling: got %v", got)
	}
}

func TestSentenceBuffer_CJKTerminators(t *testing.T) {
	t.Parallel()

	b := &sentenceBuffer{}
	got := collect(b, "你好。很高兴见到你！")
	if len(got) != 2 {
		t.Fatalf("cjk split: want 2 sentences, got %v", got)
	}
	if got[0].Text != "你好。" || got[1].Text != "很高兴见到你！" {
		t.Errorf("cjk sentences: got %v", got)
	}
}

func TestSentenceBuffer_ClosingQuoteAttached(t *testing.T) {
	t.Parallel()

	b := &sentenceBuffer{}
	got := collect(b, `"Stop!" she said. And`)
	if len(got) != 2 {
		t.Fatalf("quote handling: want 2 sentences, got %v", got)
	}
	if got[0].Text != `"Stop!"` {
		t.Errorf("closing quote not attached: got %q", got[0].Text)
	}
	if got[1].Text != "she said." {
		t.Errorf("second sentence: got %q", got[1].Text)
	}
}

func TestSentenceBuffer_TerminatorAtBufferEndWaits(t *testing.T) {
	t.Parallel()

	b := &sentenceBuffer{}
	if got := collect(b, "Hi!"); len(got) != 0 {
		t.Fatalf("terminator at buffer end split early: %v", got)
	}
	// The next fragment proves the boundary.
	if got := collect(b, " More"); len(got) != 1 || got[0].Text != "Hi!" {
		t.Fatalf("boundary after whitespace arrived: got %v", got)
	}
}

func TestSentenceBuffer_SoleTerminatorFlushes(t *testing.T) {
	t.Parallel()

	b := &sentenceBuffer{}
	if got := collect(b, "?"); len(got) != 0 {
		t.Fatalf("sole terminator split early: %v", got)
	}
	final, ok := b.Flush()
	if !ok || final.Text != "?" {
		t.Errorf("flush sole terminator: want %q, got %q", "?", final.Text)
	}
}

func TestSentenceBuffer_OffsetsTrackFullReply(t *testing.T) {
	t.Parallel()

	b := &sentenceBuffer{}
	got := collect(b, "One. Two. ")
	if len(got) != 2 {
		t.Fatalf("sentences: got %v", got)
	}
	if got[0].Offset != 0 {
		t.Errorf("first offset: want 0, got %d", got[0].Offset)
	}
	if got[1].Offset != 5 {
		t.Errorf("second offset: want 5, got %d", got[1].Offset)
	}
}

func TestSentenceBuffer_EmptyFlush(t *testing.T) {
	t.Parallel()

	b := &sentenceBuffer{}
	if _, ok := b.Flush(); ok {
		t.Error("flush of empty buffer reported a sentence")
	}
}
