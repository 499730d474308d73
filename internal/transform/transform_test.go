package transform_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/booknest/internal/llm"
	"github.com/dgallion1/booknest/internal/llm/mocks"
	"github.com/dgallion1/booknest/internal/transform"

	"go.uber.org/mock/gomock"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// recordingSleep captures requested delays without waiting.
type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		mode     transform.Mode
		opts     transform.Options
		contains []string
	}{
		{transform.ModeTranslate, transform.Options{TargetLanguage: "es"}, []string{`"es"`, "line breaks", "hello"}},
		{transform.ModeTranslate, transform.Options{}, []string{`"en"`}},
		{transform.ModeSummarizeFull, transform.Options{}, []string{"one flowing paragraph", "Text:\nhello"}},
		{transform.ModeSummarizeBrief, transform.Options{}, []string{"two or three sentences", "hello"}},
		{transform.ModeCombine, transform.Options{}, []string{"Chunk summaries:\nhello"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			got, err := transform.BuildPrompt(tt.mode, "hello", tt.opts)
			if err != nil {
				t.Fatalf("BuildPrompt: %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("prompt missing %q:\n%s", want, got)
				}
			}
		})
	}

	if _, err := transform.BuildPrompt("poem", "x", transform.Options{}); !errors.Is(err, transform.ErrUnknownMode) {
		t.Errorf("expected ErrUnknownMode, got %v", err)
	}
}

func TestCombineInputKeepsOrderWithRealNewlines(t *testing.T) {
	got := transform.CombineInput([]string{"S1", "S2", "S3"})
	if got != "S1\nS2\nS3" {
		t.Errorf("unexpected combine input %q", got)
	}
}

func TestPlaceholder(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		mode transform.Mode
		err  error
		want string
	}{
		{"translate", transform.ModeTranslate, boom, "[Translation error: boom]"},
		{"summary", transform.ModeSummarizeFull, boom, "[Failed to generate summary: boom]"},
		{"combine", transform.ModeCombine, boom, "[Failed to generate summary: boom]"},
		{"exhausted", transform.ModeSummarizeBrief, &transform.ExhaustedError{Attempts: 3, Err: boom}, "[Failed after 3 attempts: boom]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := transform.Placeholder(tt.mode, tt.err); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if got := (transform.Result{Err: tt.err}).Value(tt.mode); got != tt.want {
				t.Errorf("Value: got %q, want %q", got, tt.want)
			}
		})
	}
	if got := (transform.Result{Text: "fine"}).Value(transform.ModeTranslate); got != "fine" {
		t.Errorf("expected success text, got %q", got)
	}
}

func TestTransformer_Transform(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := mocks.NewMockProvider(ctrl)
	stats := llm.NewCallStats(time.Hour)
	tr := transform.NewTransformer(provider, stats, nil)

	provider.EXPECT().
		Complete(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, prompt string) (string, error) {
			if !strings.Contains(prompt, "Bonjour") || !strings.Contains(prompt, `"de"`) {
				t.Errorf("unexpected prompt %q", prompt)
			}
			return "Guten Tag", nil
		})

	res := tr.Transform(context.Background(), transform.ModeTranslate, "Bonjour", transform.Options{TargetLanguage: "de"})
	if !res.OK() || res.Text != "Guten Tag" {
		t.Fatalf("unexpected result %+v", res)
	}
	if snap := stats.Snapshot(); snap.ByMode["translate"].Calls != 1 {
		t.Errorf("expected one recorded translate call, got %+v", snap.ByMode)
	}
}

func TestTransformer_FailureIsExplicit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := mocks.NewMockProvider(ctrl)
	tr := transform.NewTransformer(provider, nil, nil)

	provider.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("", errors.New("network down"))

	res := tr.Transform(context.Background(), transform.ModeTranslate, "hi", transform.Options{})
	if res.OK() {
		t.Fatal("expected failure")
	}
	if got := res.Value(transform.ModeTranslate); got != "[Translation error: network down]" {
		t.Errorf("unexpected placeholder %q", got)
	}
}

func TestTransformer_RecoversProviderPanic(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := mocks.NewMockProvider(ctrl)
	tr := transform.NewTransformer(provider, nil, nil)

	provider.EXPECT().
		Complete(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string) (string, error) { panic("nil map") })

	res := tr.Transform(context.Background(), transform.ModeCombine, "x", transform.Options{})
	if res.OK() || !strings.Contains(res.Err.Error(), "nil map") {
		t.Errorf("expected panic captured as error, got %+v", res)
	}
}

type ctxKey struct{}

func TestTransformer_InFlightCallOutlivesCancellation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := mocks.NewMockProvider(ctrl)
	tr := transform.NewTransformer(provider, nil, nil)

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "req-7"))
	defer cancel()

	provider.EXPECT().
		Complete(gomock.Any(), gomock.Any()).
		DoAndReturn(func(callCtx context.Context, _ string) (string, error) {
			// Shutdown arrives while the request is on the wire.
			cancel()
			if err := callCtx.Err(); err != nil {
				return "", err
			}
			if callCtx.Value(ctxKey{}) != "req-7" {
				return "", errors.New("request values lost")
			}
			return "translated page", nil
		})

	res := tr.Transform(ctx, transform.ModeTranslate, "hola", transform.Options{TargetLanguage: "en"})
	if !res.OK() || res.Text != "translated page" {
		t.Errorf("expected in-flight call to complete, got %+v", res)
	}
	if ctx.Err() == nil {
		t.Error("expected caller context cancelled")
	}
}

func TestTransformer_UnknownModeSkipsProvider(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tr := transform.NewTransformer(mocks.NewMockProvider(ctrl), nil, nil)
	res := tr.Transform(context.Background(), "poem", "x", transform.Options{})
	if !errors.Is(res.Err, transform.ErrUnknownMode) {
		t.Errorf("expected ErrUnknownMode, got %v", res.Err)
	}
}

func TestRetrier_QuotaTwiceThenSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	provider := mocks.NewMockProvider(ctrl)
	tr := transform.NewTransformer(provider, nil, nil)
	quota := &llm.RateLimitError{StatusCode: 429, Message: "quota exceeded"}

	gomock.InOrder(
		provider.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("", quota),
		provider.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("", quota),
		provider.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("a tense chapter", nil),
	)

	rec := &recordingSleep{}
	r := transform.Retrier{Attempts: 3, Wait: 10 * time.Second, ShortDelay: 3 * time.Second, Sleep: rec.sleep}

	res := r.Do(context.Background(), func(ctx context.Context) transform.Result {
		return tr.Transform(ctx, transform.ModeSummarizeBrief, "chunk", transform.Options{})
	})
	if !res.OK() || res.Text != "a tense chapter" {
		t.Fatalf("expected success on third attempt, got %+v", res)
	}
	want := []time.Duration{10 * time.Second, 20 * time.Second}
	if len(rec.delays) != len(want) {
		t.Fatalf("expected sleeps %v, got %v", want, rec.delays)
	}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Errorf("sleep %d: got %v, want %v", i, rec.delays[i], want[i])
		}
	}
	if rec.delays[1] <= rec.delays[0] {
		t.Errorf("expected strictly increasing waits, got %v", rec.delays)
	}
}

func TestRetrier_OtherErrorsUseShortDelayAndDegrade(t *testing.T) {
	calls := 0
	rec := &recordingSleep{}
	r := transform.Retrier{Attempts: 3, Wait: 10 * time.Second, ShortDelay: 3 * time.Second, Sleep: rec.sleep}

	res := r.Do(context.Background(), func(context.Context) transform.Result {
		calls++
		return transform.Result{Err: errors.New("bad gateway")}
	})

	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(rec.delays) != 2 || rec.delays[0] != 3*time.Second || rec.delays[1] != 3*time.Second {
		t.Errorf("expected two short delays, got %v", rec.delays)
	}
	var ex *transform.ExhaustedError
	if !errors.As(res.Err, &ex) || ex.Attempts != 3 {
		t.Fatalf("expected ExhaustedError after 3 attempts, got %v", res.Err)
	}
	if got := res.Value(transform.ModeSummarizeBrief); got != "[Failed after 3 attempts: bad gateway]" {
		t.Errorf("unexpected placeholder %q", got)
	}
}

func TestRetrier_QuotaExhaustedNoFinalSleep(t *testing.T) {
	rec := &recordingSleep{}
	r := transform.Retrier{Attempts: 3, Wait: time.Second, ShortDelay: time.Millisecond, Sleep: rec.sleep}

	res := r.Do(context.Background(), func(context.Context) transform.Result {
		return transform.Result{Err: errors.New("googleapi: Error 429: Resource exhausted")}
	})
	if res.OK() {
		t.Fatal("expected failure")
	}
	if len(rec.delays) != 2 || rec.delays[0] != time.Second || rec.delays[1] != 2*time.Second {
		t.Errorf("expected linear backoff 1s,2s and no sleep after the last attempt, got %v", rec.delays)
	}
}

func TestRetrier_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	r := transform.Retrier{Attempts: 3, Wait: time.Hour, ShortDelay: time.Hour}
	res := r.Do(ctx, func(context.Context) transform.Result {
		calls++
		return transform.Result{Err: errors.New("flaky")}
	})
	if calls != 1 {
		t.Errorf("expected no retry after cancellation, got %d calls", calls)
	}
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", res.Err)
	}
}

func TestRetrier_SuccessFirstTry(t *testing.T) {
	rec := &recordingSleep{}
	r := transform.DefaultRetrier()
	r.Sleep = rec.sleep
	res := r.Do(context.Background(), func(context.Context) transform.Result {
		return transform.Result{Text: "ok"}
	})
	if res.Text != "ok" || len(rec.delays) != 0 {
		t.Errorf("unexpected result %+v, sleeps %v", res, rec.delays)
	}
}

func TestThrottle_PausesEveryN(t *testing.T) {
	rec := &recordingSleep{}
	th := transform.Throttle{Every: 10, Pause: 45 * time.Second, Sleep: rec.sleep}

	for completed := 1; completed <= 25; completed++ {
		if err := th.After(context.Background(), completed); err != nil {
			t.Fatalf("After(%d): %v", completed, err)
		}
	}
	if len(rec.delays) != 2 {
		t.Fatalf("expected pauses after chunks 10 and 20, got %v", rec.delays)
	}
	for _, d := range rec.delays {
		if d != 45*time.Second {
			t.Errorf("expected 45s pause, got %v", d)
		}
	}
}

func TestThrottle_Disabled(t *testing.T) {
	rec := &recordingSleep{}
	for _, th := range []transform.Throttle{
		{Every: 0, Pause: time.Second, Sleep: rec.sleep},
		{Every: 10, Pause: 0, Sleep: rec.sleep},
	} {
		for completed := 0; completed <= 30; completed++ {
			_ = th.After(context.Background(), completed)
		}
	}
	if len(rec.delays) != 0 {
		t.Errorf("expected no pauses, got %v", rec.delays)
	}
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := transform.SleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if err := transform.SleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}
