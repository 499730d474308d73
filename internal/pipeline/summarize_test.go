package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/booknest/internal/transform"
)

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func (s *sleepRecorder) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.delays)
}

func testRetrier(rec *sleepRecorder) transform.Retrier {
	return transform.Retrier{Attempts: 3, Wait: 10 * time.Second, ShortDelay: 3 * time.Second, Sleep: rec.Sleep}
}

func TestSelectStrategy(t *testing.T) {
	tests := []struct {
		words int
		want  Strategy
	}{
		{0, StrategyDirect},
		{1, StrategyDirect},
		{60000, StrategyDirect},
		{60001, StrategyChunked},
		{250000, StrategyChunked},
	}
	for _, tt := range tests {
		if got := SelectStrategy(tt.words, DefaultLargeDocWords); got != tt.want {
			t.Errorf("SelectStrategy(%d) = %q, want %q", tt.words, got, tt.want)
		}
	}
}

func TestSummarize_ThresholdBoundary(t *testing.T) {
	t.Run("60000 words is direct", func(t *testing.T) {
		fake := &fakeTransformer{}
		s := NewSummarizer(fake, SummarizerOptions{Retry: testRetrier(&sleepRecorder{})}, discardLogger())

		sum := s.Summarize(context.Background(), strings.Repeat("w ", 60000))

		calls := fake.Calls()
		if len(calls) != 1 || calls[0].mode != transform.ModeSummarizeFull {
			t.Fatalf("expected one summarize-full call, got %d calls", len(calls))
		}
		if sum.Strategy != StrategyDirect || sum.Words != 60000 || sum.Chunks != 0 {
			t.Errorf("unexpected summary %+v", sum)
		}
	})

	t.Run("60001 words is chunked", func(t *testing.T) {
		fake := &fakeTransformer{}
		s := NewSummarizer(fake, SummarizerOptions{Retry: testRetrier(&sleepRecorder{})}, discardLogger())

		sum := s.Summarize(context.Background(), strings.Repeat("w ", 60001))

		calls := fake.Calls()
		if sum.Strategy != StrategyChunked || sum.Chunks < 2 {
			t.Fatalf("expected chunked summary with several chunks, got %+v", sum)
		}
		if len(calls) != sum.Chunks+1 {
			t.Fatalf("expected %d calls, got %d", sum.Chunks+1, len(calls))
		}
		for i, c := range calls[:sum.Chunks] {
			if c.mode != transform.ModeSummarizeBrief {
				t.Errorf("call %d: expected summarize-brief, got %q", i, c.mode)
			}
			if n := len([]rune(c.text)); n > 20000 {
				t.Errorf("call %d: chunk of %d runes exceeds window", i, n)
			}
		}
		if last := calls[len(calls)-1]; last.mode != transform.ModeCombine {
			t.Errorf("expected final combine call, got %q", last.mode)
		}
	})
}

func TestSummarize_CombinesPartialsInOrder(t *testing.T) {
	var n int
	fake := &fakeTransformer{fn: func(mode transform.Mode, text string) transform.Result {
		if mode == transform.ModeCombine {
			return transform.Result{Text: "FINAL"}
		}
		n++
		return transform.Result{Text: fmt.Sprintf("S%d", n)}
	}}
	s := NewSummarizer(fake, SummarizerOptions{
		Retry:      testRetrier(&sleepRecorder{}),
		Threshold:  1,
		WindowSize: 10,
	}, discardLogger())

	sum := s.Summarize(context.Background(), strings.Repeat("abcd ", 10))

	if sum.Text != "FINAL" || sum.Chunks != 5 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	calls := fake.Calls()
	combine := calls[len(calls)-1]
	if combine.text != "S1\nS2\nS3\nS4\nS5" {
		t.Errorf("expected partials joined in order, got %q", combine.text)
	}
	prompt, err := transform.BuildPrompt(transform.ModeCombine, combine.text, transform.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(prompt, "S1\nS2\nS3\nS4\nS5") {
		t.Errorf("combine prompt lost the partials: %q", prompt)
	}
}

func TestSummarize_CooldownEveryTenChunks(t *testing.T) {
	cooldown := &sleepRecorder{}
	var progress [][2]int
	s := NewSummarizer(&fakeTransformer{}, SummarizerOptions{
		Retry:      testRetrier(&sleepRecorder{}),
		Throttle:   transform.Throttle{Every: 10, Pause: 45 * time.Second, Sleep: cooldown.Sleep},
		Threshold:  1,
		WindowSize: 10,
	}, discardLogger())
	s.OnChunk = func(done, total int) { progress = append(progress, [2]int{done, total}) }

	// 250 runes in windows of 10 gives 25 chunks.
	sum := s.Summarize(context.Background(), strings.Repeat("abcd ", 50))

	if sum.Chunks != 25 {
		t.Fatalf("expected 25 chunks, got %d", sum.Chunks)
	}
	want := []time.Duration{45 * time.Second, 45 * time.Second}
	if got := cooldown.Delays(); !slices.Equal(got, want) {
		t.Errorf("expected cooldowns %v, got %v", want, got)
	}
	if len(progress) != 25 || progress[24] != [2]int{25, 25} {
		t.Errorf("unexpected progress callbacks %v", progress)
	}
}

func TestSummarize_RetriesQuotaErrors(t *testing.T) {
	var calls int
	fake := &fakeTransformer{fn: func(mode transform.Mode, text string) transform.Result {
		calls++
		if calls == 1 {
			return transform.Result{Err: errors.New("429 quota exceeded")}
		}
		return transform.Result{Text: "ok"}
	}}
	rec := &sleepRecorder{}
	s := NewSummarizer(fake, SummarizerOptions{Retry: testRetrier(rec), Threshold: 1, WindowSize: 10}, discardLogger())

	sum := s.Summarize(context.Background(), strings.Repeat("abcd ", 4))

	if sum.Failed != 0 {
		t.Errorf("expected no failures after retry, got %d", sum.Failed)
	}
	if got := rec.Delays(); !slices.Equal(got, []time.Duration{10 * time.Second}) {
		t.Errorf("expected one quota backoff of 10s, got %v", got)
	}
}

func TestSummarize_ExhaustedCallsDegrade(t *testing.T) {
	fake := &fakeTransformer{fn: func(mode transform.Mode, text string) transform.Result {
		return transform.Result{Err: errors.New("boom")}
	}}
	rec := &sleepRecorder{}
	retry := transform.Retrier{Attempts: 2, Wait: time.Second, ShortDelay: time.Second, Sleep: rec.Sleep}
	s := NewSummarizer(fake, SummarizerOptions{Retry: retry, Threshold: 1, WindowSize: 10}, discardLogger())

	sum := s.Summarize(context.Background(), strings.Repeat("abcd ", 10))

	placeholder := "[Failed after 2 attempts: boom]"
	if sum.Text != placeholder {
		t.Errorf("expected %q, got %q", placeholder, sum.Text)
	}
	if sum.Failed != sum.Chunks+1 {
		t.Errorf("expected %d failures, got %d", sum.Chunks+1, sum.Failed)
	}
	calls := fake.Calls()
	combine := calls[len(calls)-1]
	if combine.mode != transform.ModeCombine || !strings.HasPrefix(combine.text, placeholder+"\n") {
		t.Errorf("expected placeholders fed to combine, got %q", combine.text)
	}
	if len(rec.Delays()) != sum.Chunks+1 {
		t.Errorf("expected one backoff per call, got %v", rec.Delays())
	}
}

func TestSummarize_DirectFailure(t *testing.T) {
	fake := &fakeTransformer{fn: func(mode transform.Mode, text string) transform.Result {
		return transform.Result{Err: errors.New("bad gateway")}
	}}
	rec := &sleepRecorder{}
	s := NewSummarizer(fake, SummarizerOptions{Retry: testRetrier(rec)}, discardLogger())

	sum := s.Summarize(context.Background(), "a short document")

	if sum.Text != "[Failed after 3 attempts: bad gateway]" || sum.Failed != 1 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if len(fake.Calls()) != 3 {
		t.Errorf("expected 3 attempts, got %d", len(fake.Calls()))
	}
}

func TestSummarizeDocument_EmptyText(t *testing.T) {
	fake := &fakeTransformer{}
	s := NewSummarizer(fake, SummarizerOptions{}, discardLogger())

	for _, text := range []string{"", "  \n\t"} {
		if got := s.SummarizeDocument(context.Background(), text); got != "" {
			t.Errorf("expected empty summary for %q, got %q", text, got)
		}
	}
	if len(fake.Calls()) != 0 {
		t.Errorf("expected no remote calls, got %d", len(fake.Calls()))
	}
}
