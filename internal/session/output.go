package session

import (
	"log/slog"
	"sync"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/internal/expression"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/llm"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/provider/tts"
	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/types"
)

// outputDeps bundles what the output pipeline needs to turn LLM fragments
// into events.
type outputDeps struct {
	tts       tts.Provider
	processor *expression.Processor
	emotions  expression.TagSet
	logger    *slog.Logger
}

// runOutput consumes the turn's LLM fragment stream: it cuts fragments into
// sentences, emits a sentence event per completed sentence, schedules
// synthesis + expression analysis concurrently per sentence, and releases
// the resulting audio_with_expression (or per-sentence error) events in
// sequence order.
//
// runOutput returns the mid-stream LLM error, if any; the caller decides
// the closing control event. Cancellation of the turn abandons all pending
// jobs and drains the provider stream.
func runOutput(turn *Turn, chunks <-chan llm.Chunk, deps outputDeps, emit func(types.OutputEvent)) error {
	ctx := turn.Context()
	rel := newReleaser(emit)
	var wg sync.WaitGroup

	handleSentence := func(os offsetSentence) {
		clean, tags := expression.ExtractTags(os.Text, deps.emotions)
		for i := range tags {
			tags[i].Position += os.Offset
		}
		// A sentence that was all tags has nothing to say or synthesize.
		if clean == "" {
			return
		}

		seq := turn.NextSeq()
		turn.AppendText(clean)
		emit(types.NewSentenceEvent(clean, seq))

		wg.Add(1)
		go func() {
			defer wg.Done()
			rel.deliver(seq, synthesizeOne(turn, seq, clean, tags, deps))
		}()
	}

	buf := &sentenceBuffer{}
	var llmErr error

consume:
	for {
		select {
		case <-ctx.Done():
			go drainChunks(chunks)
			wg.Wait()
			return nil
		case chunk, ok := <-chunks:
			if !ok {
				break consume
			}
			if chunk.Err != nil {
				llmErr = chunk.Err
				break consume
			}
			if chunk.Text != "" {
				for _, s := range buf.Add(chunk.Text) {
					handleSentence(s)
				}
			}
			if chunk.FinishReason != "" {
				break consume
			}
		}
	}

	// Flush the remaining buffered text as the final sentence, then drain
	// pending synthesis jobs in seq order.
	if ctx.Err() == nil {
		if s, ok := buf.Flush(); ok {
			handleSentence(s)
		}
	}
	wg.Wait()
	return llmErr
}

// synthesizeOne runs TTS and expression analysis for one sentence and
// returns the event to release at its seq slot: an audio_with_expression
// event on success, an error event referencing the seq otherwise.
func synthesizeOne(turn *Turn, seq int, clean string, tags []types.EmotionTag, deps outputDeps) types.OutputEvent {
	ctx := turn.Context()

	clip, err := deps.tts.Synthesize(ctx, clean)
	if err != nil {
		if types.KindOf(err) == "" {
			err = types.Wrap(types.KindTTSUnavailable, "synthesize", err)
		}
		deps.logger.Warn("sentence synthesis failed", "seq", seq, "err", err)
		return types.NewErrorEventForSeq(types.KindOf(err), err.Error(), seq)
	}

	res, err := deps.processor.Process(ctx, clean, tags, clip)
	if err != nil {
		if types.KindOf(err) == "" {
			err = types.Wrap(types.KindDecodeFailed, "expression analysis", err)
		}
		deps.logger.Warn("expression analysis failed", "seq", seq, "err", err)
		return types.NewErrorEventForSeq(types.KindOf(err), err.Error(), seq)
	}

	return types.NewAudioExpressionEvent(types.AudioExpressionPayload{
		Audio:         res.Audio,
		Format:        res.Format,
		Volumes:       res.Volumes,
		Timeline:      res.Timeline,
		TotalDuration: res.TotalDuration,
		Text:          res.Text,
		Seq:           seq,
	})
}

// releaser holds completed synthesis results and releases them strictly in
// seq order: an out-of-order completion waits until its predecessors have
// been emitted.
type releaser struct {
	mu      sync.Mutex
	emit    func(types.OutputEvent)
	next    int
	pending map[int]types.OutputEvent
}

func newReleaser(emit func(types.OutputEvent)) *releaser {
	return &releaser{emit: emit, pending: make(map[int]types.OutputEvent)}
}

// deliver stores the event for seq and emits every consecutive event
// starting at the release cursor.
func (r *releaser) deliver(seq int, ev types.OutputEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending[seq] = ev
	for {
		next, ok := r.pending[r.next]
		if !ok {
			return
		}
		delete(r.pending, r.next)
		r.next++
		r.emit(next)
	}
}

// drainChunks discards the remainder of an abandoned LLM stream so the
// provider's goroutine can exit.
func drainChunks(ch <-chan llm.Chunk) {
	for range ch {
	}
}
