package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"captionsync/internal/mode"
	"captionsync/internal/scheduler"
	"captionsync/internal/services"
	"captionsync/internal/testsupport"
	"captionsync/internal/transport"
)

type noticeRecorder struct {
	mu      sync.Mutex
	notices []scheduler.Notice
}

func (r *noticeRecorder) Notify(n scheduler.Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *noticeRecorder) kinds() []scheduler.NoticeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]scheduler.NoticeKind, 0, len(r.notices))
	for _, n := range r.notices {
		out = append(out, n.Kind)
	}
	return out
}

func newScheduler(t *testing.T, tr transport.Transport, opts ...scheduler.Option) (*scheduler.Scheduler, *testsupport.FakeClock) {
	t.Helper()
	clk := testsupport.NewFakeClock()
	o := scheduler.DefaultOptions()
	o.TargetLanguage = "fr"
	all := append([]scheduler.Option{scheduler.WithClock(clk)}, opts...)
	return scheduler.New(tr, o, all...), clk
}

func TestTranslateCachesResult(t *testing.T) {
	scripted := testsupport.NewScriptedTransport()
	s, _ := newScheduler(t, scripted)

	for i := 0; i < 3; i++ {
		got, err := s.Translate(context.Background(), "  Hello   world ")
		if err != nil {
			t.Fatalf("Translate: %v", err)
		}
		if got != "fr:Hello world" {
			t.Fatalf("got %q", got)
		}
	}
	if n := scripted.CallCount(); n != 1 {
		t.Fatalf("expected 1 transport call, got %d", n)
	}
	if cached, ok := s.Cached("Hello world"); !ok || cached != "fr:Hello world" {
		t.Fatalf("expected cache entry, got %q %v", cached, ok)
	}
	if st := s.Stats(); st.CacheHits != 2 || st.TransportCalls != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestConcurrentTranslateIssuesOneCall(t *testing.T) {
	scripted := testsupport.NewScriptedTransport()
	scripted.Gate = make(chan struct{})
	scripted.Started = make(chan string, 8)
	s, _ := newScheduler(t, scripted)

	const callers = 5
	results := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = s.Translate(context.Background(), "Hello")
	}()
	<-scripted.Started
	if !s.InFlight("Hello") {
		t.Fatal("expected Hello to be in flight")
	}
	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.Translate(context.Background(), "Hello")
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(scripted.Gate)
	wg.Wait()

	for i := range results {
		if errs[i] != nil || results[i] != "fr:Hello" {
			t.Fatalf("caller %d got %q, %v", i, results[i], errs[i])
		}
	}
	if n := scripted.CallsFor("Hello"); n != 1 {
		t.Fatalf("expected exactly one transport call, got %d", n)
	}
	if s.InFlight("Hello") {
		t.Fatal("in-flight entry should be cleared")
	}
}

func TestRateLimitedThenSuccessIsCached(t *testing.T) {
	scripted := testsupport.NewScriptedTransport()
	scripted.Script("Hello",
		testsupport.Step{Err: &services.RateLimitError{Provider: "scripted"}},
		testsupport.Step{Result: "Bonjour"},
	)
	clk := testsupport.NewFakeClock()
	paced := transport.NewPaced(scripted, transport.DefaultPacedOptions(), transport.WithClock(clk))
	o := scheduler.DefaultOptions()
	o.TargetLanguage = "fr"
	s := scheduler.New(paced, o, scheduler.WithClock(clk))

	got, err := s.Translate(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "Bonjour" {
		t.Fatalf("got %q", got)
	}
	if n := scripted.CallCount(); n != 2 {
		t.Fatalf("expected 2 transport calls, got %d", n)
	}
	if cached, ok := s.Cached("Hello"); !ok || cached != "Bonjour" {
		t.Fatalf("expected cached Bonjour, got %q %v", cached, ok)
	}
	if st := s.Stats(); st.Failures != 0 {
		t.Fatalf("retried success should not count as failure: %+v", st)
	}
}

func TestFailureReachesOnlyItsWaitersAndIsNotCached(t *testing.T) {
	scripted := testsupport.NewScriptedTransport()
	scripted.Script("bad", testsupport.Step{Err: services.Wrap(services.ErrTransport, "test", "translate", "boom", nil)})
	s, _ := newScheduler(t, scripted)

	if _, err := s.Translate(context.Background(), "bad"); !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport failure, got %v", err)
	}
	if got, err := s.Translate(context.Background(), "good"); err != nil || got != "fr:good" {
		t.Fatalf("unrelated text affected: %q %v", got, err)
	}
	if _, ok := s.Cached("bad"); ok {
		t.Fatal("failure must not be cached")
	}
	if got, err := s.Translate(context.Background(), "bad"); err != nil || got != "fr:bad" {
		t.Fatalf("retry after failure: %q %v", got, err)
	}
}

func TestCooldownAfterConsecutiveFailures(t *testing.T) {
	scripted := testsupport.NewScriptedTransport()
	fail := testsupport.Step{Err: services.Wrap(services.ErrTransport, "test", "translate", "down", nil)}
	for _, text := range []string{"one", "two", "three"} {
		scripted.Script(text, fail)
	}
	notices := &noticeRecorder{}
	s, clk := newScheduler(t, scripted, scheduler.WithNotifier(notices))

	if _, err := s.Translate(context.Background(), "cached line"); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	for _, text := range []string{"one", "two", "three"} {
		if _, err := s.Translate(context.Background(), text); err == nil {
			t.Fatalf("expected %q to fail", text)
		}
	}
	wantKinds := []scheduler.NoticeKind{scheduler.NoticeFailure, scheduler.NoticePaused}
	if got := notices.kinds(); len(got) != 2 || got[0] != wantKinds[0] || got[1] != wantKinds[1] {
		t.Fatalf("notices = %v, want %v", got, wantKinds)
	}

	calls := scripted.CallCount()
	got, err := s.Translate(context.Background(), "four")
	if err != nil || got != "" {
		t.Fatalf("expected empty short-circuit during cooldown, got %q %v", got, err)
	}
	if scripted.CallCount() != calls {
		t.Fatal("cooldown must not call the transport")
	}
	if got, _ := s.Translate(context.Background(), "cached line"); got != "fr:cached line" {
		t.Fatalf("cached translations must keep resolving during cooldown, got %q", got)
	}

	clk.Advance(scheduler.DefaultCooldown)
	if got, err := s.Translate(context.Background(), "four"); err != nil || got != "fr:four" {
		t.Fatalf("expected cooldown to self-clear, got %q %v", got, err)
	}
}

func TestSkipsUntranslatableAndTargetLanguageText(t *testing.T) {
	scripted := testsupport.NewScriptedTransport()
	clk := testsupport.NewFakeClock()
	o := scheduler.DefaultOptions()
	o.TargetLanguage = "zh-CN"
	s := scheduler.New(scripted, o, scheduler.WithClock(clk))

	tests := []struct {
		in   string
		want string
	}{
		{"你好，世界", "你好,世界"},
		{"42", "42"},
		{"♪", "♪"},
	}
	for _, tt := range tests {
		got, err := s.Translate(context.Background(), tt.in)
		if err != nil || got != tt.want {
			t.Errorf("Translate(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
	if n := scripted.CallCount(); n != 0 {
		t.Fatalf("expected no transport calls, got %d", n)
	}
	if !s.Resolvable("99") {
		t.Fatal("numeric text should be resolvable without a call")
	}
}

func TestSetTargetLanguageClearsCache(t *testing.T) {
	scripted := testsupport.NewScriptedTransport()
	s, _ := newScheduler(t, scripted)

	if _, err := s.Translate(context.Background(), "Hello"); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if s.SetTargetLanguage("fr") {
		t.Fatal("same target should not reset")
	}
	if !s.SetTargetLanguage("de") {
		t.Fatal("new target should reset")
	}
	if _, ok := s.Cached("Hello"); ok {
		t.Fatal("cache should be cleared on target change")
	}
	got, err := s.Translate(context.Background(), "Hello")
	if err != nil || got != "de:Hello" {
		t.Fatalf("expected de translation, got %q %v", got, err)
	}
}

func TestResetDropsResultOfRunningRequest(t *testing.T) {
	scripted := testsupport.NewScriptedTransport()
	scripted.Gate = make(chan struct{})
	scripted.Started = make(chan string, 1)
	s, _ := newScheduler(t, scripted)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Translate(context.Background(), "Hello")
	}()
	<-scripted.Started
	s.Reset()
	close(scripted.Gate)
	<-done

	if _, ok := s.Cached("Hello"); ok {
		t.Fatal("result from before Reset must not be cached")
	}
}

func TestSupersededFailuresDoNotPauseNewTarget(t *testing.T) {
	scripted := testsupport.NewScriptedTransport()
	scripted.Gate = make(chan struct{})
	texts := []string{"one", "two", "three"}
	scripted.Started = make(chan string, len(texts))
	fail := testsupport.Step{Err: services.Wrap(services.ErrTransport, "test", "translate", "down", nil)}
	for _, text := range texts {
		scripted.Script(text, fail)
	}
	notices := &noticeRecorder{}
	s, _ := newScheduler(t, scripted, scheduler.WithNotifier(notices))
	s.SetMode(mode.Live)

	var wg sync.WaitGroup
	for _, text := range texts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Translate(context.Background(), text)
		}()
	}
	for range texts {
		<-scripted.Started
	}
	if !s.SetTargetLanguage("de") {
		t.Fatal("expected target change")
	}
	close(scripted.Gate)
	wg.Wait()

	got, err := s.Translate(context.Background(), "fresh text")
	if err != nil || got != "de:fresh text" {
		t.Fatalf("new target should translate normally, got %q %v", got, err)
	}
	st := s.Stats()
	if st.ShortCircuited != 0 || !st.CooldownUntil.IsZero() {
		t.Fatalf("superseded failures opened a cooldown: %+v", st)
	}
	if st.Failures != 0 || st.ConsecutiveErrors != 0 {
		t.Fatalf("superseded failures counted: %+v", st)
	}
	if got := notices.kinds(); len(got) != 0 {
		t.Fatalf("unexpected notices %v", got)
	}
}

func TestSetTransportThenResetUsesNewProvider(t *testing.T) {
	first := testsupport.NewScriptedTransport()
	s, _ := newScheduler(t, first)
	if _, err := s.Translate(context.Background(), "Hello"); err != nil {
		t.Fatalf("Translate: %v", err)
	}

	second := testsupport.NewScriptedTransport()
	second.ProviderName = "second"
	second.Script("Hello", testsupport.Step{Result: "Salut"})
	s.SetTransport(second)
	if got, _ := s.Cached("Hello"); got != "fr:Hello" {
		t.Fatalf("swap alone keeps the cache, got %q", got)
	}
	s.Reset()
	if _, ok := s.Cached("Hello"); ok {
		t.Fatal("Reset should clear the cache")
	}
	if got := s.ProviderName(); got != "second" {
		t.Fatalf("provider = %q", got)
	}
	got, err := s.Translate(context.Background(), "Hello")
	if err != nil || got != "Salut" {
		t.Fatalf("got %q %v", got, err)
	}
	if first.CallCount() != 1 || second.CallCount() != 1 {
		t.Fatalf("calls first=%d second=%d", first.CallCount(), second.CallCount())
	}
}

func TestCallerCancellationDoesNotCancelRequest(t *testing.T) {
	scripted := testsupport.NewScriptedTransport()
	scripted.Gate = make(chan struct{})
	scripted.Started = make(chan string, 1)
	s, _ := newScheduler(t, scripted)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := s.Translate(ctx, "Hello")
		errCh <- err
	}()
	<-scripted.Started
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected caller to see cancellation, got %v", err)
	}
	close(scripted.Gate)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := s.Cached("Hello"); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("detached request should still populate the cache")
}

func TestLivePacingUsesLiveInterval(t *testing.T) {
	scripted := testsupport.NewScriptedTransport()
	s, clk := newScheduler(t, scripted)
	s.SetMode(mode.Live)

	for _, text := range []string{"a1", "b2", "c3"} {
		if _, err := s.Translate(context.Background(), text); err != nil {
			t.Fatalf("Translate: %v", err)
		}
	}
	sleeps := clk.Sleeps()
	if len(sleeps) != 2 {
		t.Fatalf("expected 2 pacing sleeps, got %v", sleeps)
	}
	for _, d := range sleeps {
		if d != scheduler.DefaultLiveInterval {
			t.Fatalf("expected live interval sleeps, got %v", sleeps)
		}
	}
}

func TestEmptyProviderReplyIsMalformed(t *testing.T) {
	scripted := testsupport.NewScriptedTransport()
	scripted.Script("Hello", testsupport.Step{Result: "   "})
	s, _ := newScheduler(t, scripted)

	if _, err := s.Translate(context.Background(), "Hello"); !errors.Is(err, services.ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}
