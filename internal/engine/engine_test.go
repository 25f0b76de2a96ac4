package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"captionsync/internal/config"
	"captionsync/internal/engine"
	"captionsync/internal/scheduler"
	"captionsync/internal/services"
	"captionsync/internal/source"
	"captionsync/internal/testsupport"
	"captionsync/internal/timeline"
)

type fixture struct {
	engine    *engine.Engine
	transport *testsupport.ScriptedTransport
	display   *testsupport.RecordingDisplay
	playback  *testsupport.PlaybackClock
	notices   *noticeRecorder
}

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

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	base := []testsupport.ConfigOption{
		testsupport.WithTargetLanguage("fr"),
		testsupport.WithConfig(func(cfg *config.Config) {
			cfg.Scheduler.StaticIntervalMs = 0
			cfg.Scheduler.LiveIntervalMs = 0
		}),
	}
	cfg := testsupport.NewConfig(t, append(base, opts...)...)

	f := &fixture{
		transport: testsupport.NewScriptedTransport(),
		display:   &testsupport.RecordingDisplay{},
		playback:  &testsupport.PlaybackClock{},
		notices:   &noticeRecorder{},
	}
	e, err := engine.New(cfg, engine.Deps{
		Playback:  f.playback,
		Transport: f.transport,
		Display:   f.display,
		Clock:     testsupport.NewFakeClock(),
		Notifier:  f.notices,
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(e.Close)
	f.engine = e
	return f
}

func (f *fixture) tickAt(ms int64) {
	f.playback.Set(ms)
	f.engine.Tick(context.Background())
	f.engine.Wait()
}

func (f *fixture) last(t *testing.T) testsupport.DisplayEvent {
	t.Helper()
	ev, ok := f.display.Last()
	if !ok {
		t.Fatal("expected a display event")
	}
	return ev
}

var helloWorld = []timeline.RawEvent{
	{StartMs: 0, DurationMs: 1000, Text: "Hello"},
	{StartMs: 1000, DurationMs: 1000, Text: "world."},
}

// spacedSentences are six one-cue groups separated by 1s gaps.
var spacedSentences = []timeline.RawEvent{
	{StartMs: 1000, DurationMs: 1000, Text: "One."},
	{StartMs: 3000, DurationMs: 1000, Text: "Two."},
	{StartMs: 5000, DurationMs: 1000, Text: "Three."},
	{StartMs: 7000, DurationMs: 1000, Text: "Four."},
	{StartMs: 9000, DurationMs: 1000, Text: "Five."},
	{StartMs: 11000, DurationMs: 1000, Text: "Six."},
}

func TestNewRequiresPlaybackAndDisplay(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := engine.New(cfg, engine.Deps{Display: &testsupport.RecordingDisplay{}}); err == nil {
		t.Fatal("expected error without playback clock")
	}
	if _, err := engine.New(nil, engine.Deps{}); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestTickRendersSentenceGroup(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.LoadTimeline(helloWorld); err != nil {
		t.Fatalf("LoadTimeline: %v", err)
	}

	f.tickAt(500)

	ev := f.last(t)
	if !ev.Visible || ev.Translated != "fr:Hello world." || ev.Original != "Hello world." {
		t.Fatalf("unexpected display %+v", ev)
	}
	status := f.engine.Status()
	if status.TimelineCues != 2 || status.Groups != 1 {
		t.Fatalf("status cues=%d groups=%d, want 2 and 1", status.TimelineCues, status.Groups)
	}
	if status.Mode != "static" || status.SessionID == "" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestLoadTimelineRejectsShortTrackAndKeepsPrevious(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.LoadTimeline(helloWorld); err != nil {
		t.Fatalf("LoadTimeline: %v", err)
	}
	err := f.engine.LoadTimeline([]timeline.RawEvent{{StartMs: 0, DurationMs: 500, Text: "alone"}})
	if !errors.Is(err, services.ErrNoTimeline) {
		t.Fatalf("err = %v, want ErrNoTimeline", err)
	}
	if got := f.engine.Status().TimelineCues; got != 2 {
		t.Fatalf("previous timeline lost: %d cues", got)
	}
}

func TestRefreshReadsSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	e, err := engine.New(cfg, engine.Deps{
		Source:    source.NewStatic(helloWorld),
		Playback:  &testsupport.PlaybackClock{},
		Transport: testsupport.NewScriptedTransport(),
		Display:   &testsupport.RecordingDisplay{},
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	defer e.Close()

	if err := e.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := e.Status().TimelineCues; got != 2 {
		t.Fatalf("cues = %d, want 2", got)
	}

	f := newFixture(t)
	if err := f.engine.Refresh(context.Background()); err == nil {
		t.Fatal("expected error without a source")
	}
}

func TestIncrementalSnapshotsSwitchToLiveMode(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.LoadTimeline(helloWorld); err != nil {
		t.Fatalf("LoadTimeline: %v", err)
	}

	f.engine.OnSnapshot("He", 0)
	f.engine.OnSnapshot("Hell", 300)
	f.engine.OnSnapshot("Hello", 600)

	status := f.engine.Status()
	if status.Mode != "live" || status.Scheduler.Mode.String() != "live" {
		t.Fatalf("mode = %q / %q, want live", status.Mode, status.Scheduler.Mode)
	}

	f.tickAt(500)
	if ev := f.last(t); ev.Translated != "fr:Hello" {
		t.Fatalf("live mode should render the raw cue, got %+v", ev)
	}
}

func TestForcedModeIgnoresSnapshots(t *testing.T) {
	f := newFixture(t, testsupport.WithForcedMode("live"))

	status := f.engine.Status()
	if status.Mode != "live" || !status.ForcedMode {
		t.Fatalf("forced status = %+v", status)
	}
	f.engine.OnSnapshot("first line", 0)
	f.engine.OnSnapshot("an unrelated line", 5000)
	f.engine.OnSnapshot("another one", 10000)
	if got := f.engine.Status().Mode; got != "live" {
		t.Fatalf("mode = %q, want pinned live", got)
	}
}

func TestTranslatedTrackBypassesTransport(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.LoadTimeline(helloWorld); err != nil {
		t.Fatalf("LoadTimeline: %v", err)
	}
	err := f.engine.SetTranslatedTrack([]timeline.RawEvent{
		{StartMs: 0, DurationMs: 1000, Text: "Bonjour"},
		{StartMs: 1000, DurationMs: 1000, Text: "monde."},
	})
	if err != nil {
		t.Fatalf("SetTranslatedTrack: %v", err)
	}

	f.tickAt(500)

	if ev := f.last(t); ev.Translated != "Bonjour" {
		t.Fatalf("expected aligned translation, got %+v", ev)
	}
	if n := f.transport.CallCount(); n != 0 {
		t.Fatalf("expected no transport calls with a translated track, got %d", n)
	}
	status := f.engine.Status()
	if !status.ExternalTrack || status.PrefetchPending != 0 {
		t.Fatalf("status = %+v", status)
	}

	if err := f.engine.SetTranslatedTrack(nil); err != nil {
		t.Fatalf("remove track: %v", err)
	}
	if f.engine.Status().ExternalTrack {
		t.Fatal("translated track should be removed")
	}
}

func TestPrefetchQueueFollowsPlayback(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.LoadTimeline(spacedSentences); err != nil {
		t.Fatalf("LoadTimeline: %v", err)
	}

	tests := []struct {
		name string
		at   int64
		want int
	}{
		{name: "before first cue", at: 0, want: 6},
		{name: "seek forward into gap", at: 6500, want: 3},
		{name: "seek backward into gap", at: 2500, want: 5},
		{name: "after last cue", at: 20000, want: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.tickAt(tt.at)
			if got := f.engine.Status().PrefetchPending; got != tt.want {
				t.Fatalf("pending = %d, want %d", got, tt.want)
			}
		})
	}
	if n := f.transport.CallCount(); n != 0 {
		t.Fatalf("ticks in gaps should not translate, got %d calls", n)
	}
}

func TestPrefetchDisabledKeepsQueueEmpty(t *testing.T) {
	f := newFixture(t, testsupport.WithoutPrefetch())
	if err := f.engine.LoadTimeline(spacedSentences); err != nil {
		t.Fatalf("LoadTimeline: %v", err)
	}
	f.tickAt(0)
	if got := f.engine.Status().PrefetchPending; got != 0 {
		t.Fatalf("pending = %d, want 0", got)
	}
}

func TestReconfigureRetranslatesCurrentUnit(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.LoadTimeline(helloWorld); err != nil {
		t.Fatalf("LoadTimeline: %v", err)
	}
	f.tickAt(500)

	if err := f.engine.Reconfigure("de"); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	f.tickAt(600)

	if ev := f.last(t); ev.Translated != "de:Hello world." {
		t.Fatalf("expected re-translation, got %+v", ev)
	}
	if got := f.engine.Status().TargetLanguage; got != "de" {
		t.Fatalf("target = %q, want de", got)
	}
	if n := f.transport.CallCount(); n != 2 {
		t.Fatalf("calls = %d, want 2", n)
	}

	if err := f.engine.Reconfigure("de"); err != nil {
		t.Fatalf("same target: %v", err)
	}
	f.tickAt(700)
	if n := f.transport.CallCount(); n != 2 {
		t.Fatalf("unchanged target should keep the cache, calls = %d", n)
	}

	if err := f.engine.Reconfigure("not a language!"); err == nil {
		t.Fatal("expected invalid target error")
	}
}

func TestReconfigureTransportSwapsProvider(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.LoadTimeline(helloWorld); err != nil {
		t.Fatalf("LoadTimeline: %v", err)
	}
	f.tickAt(500)
	if got := f.last(t).Translated; got != "fr:Hello world." {
		t.Fatalf("unexpected display %q", got)
	}

	remote := testsupport.NewConfig(t, testsupport.WithProvider(config.ProviderOpenAI))
	remote.Translation.APIKey = ""
	if err := f.engine.ReconfigureTransport(remote); !errors.Is(err, services.ErrMissingCredentials) {
		t.Fatalf("err = %v, want ErrMissingCredentials", err)
	}
	if got := f.engine.Status().Provider; got != "scripted" {
		t.Fatalf("failed reconfigure replaced the provider: %q", got)
	}
	if got := f.engine.Status().Scheduler.Cached; got != 1 {
		t.Fatalf("failed reconfigure cleared the cache: %d", got)
	}

	echo := testsupport.NewConfig(t, testsupport.WithTargetLanguage("fr"))
	if err := f.engine.ReconfigureTransport(echo); err != nil {
		t.Fatalf("ReconfigureTransport: %v", err)
	}
	status := f.engine.Status()
	if status.Provider != "echo" || status.Scheduler.Cached != 0 {
		t.Fatalf("status after swap = %+v", status)
	}

	f.tickAt(600)
	if got := f.last(t).Translated; got != "[fr] Hello world." {
		t.Fatalf("expected the new provider to re-resolve the unit, got %q", got)
	}
	if n := f.transport.CallCount(); n != 1 {
		t.Fatalf("old provider called after swap, calls = %d", n)
	}
}

func TestFailureKeepsDisplayAndNotifies(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.LoadTimeline(helloWorld); err != nil {
		t.Fatalf("LoadTimeline: %v", err)
	}
	f.transport.Script("Hello world.", testsupport.Step{Err: services.Wrap(services.ErrTransport, "test", "translate", "boom", nil)})

	f.tickAt(500)

	if shown := f.display.Shown(); len(shown) != 0 {
		t.Fatalf("nothing should be shown after a failure, got %v", shown)
	}
	kinds := f.notices.kinds()
	if len(kinds) != 1 || kinds[0] != scheduler.NoticeFailure {
		t.Fatalf("notices = %v, want one failure", kinds)
	}
	if got := f.engine.Status().Render.Failures; got != 1 {
		t.Fatalf("render failures = %d, want 1", got)
	}
}

func TestCloseTearsDownTimeline(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.LoadTimeline(helloWorld); err != nil {
		t.Fatalf("LoadTimeline: %v", err)
	}
	f.tickAt(500)

	f.engine.Close()

	if ev := f.last(t); ev.Visible {
		t.Fatalf("expected overlay hidden on close, got %+v", ev)
	}
	status := f.engine.Status()
	if status.TimelineCues != 0 || status.Groups != 0 {
		t.Fatalf("status after close = %+v", status)
	}
}

func TestStartRunsTickLoopWithConfiguredTransport(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithTargetLanguage("fr"),
		testsupport.WithConfig(func(cfg *config.Config) {
			cfg.Render.TickIntervalMs = 10
			cfg.Prefetch.IntervalMs = 10
		}),
	)
	display := &testsupport.RecordingDisplay{}
	playback := &testsupport.PlaybackClock{}
	playback.Set(500)
	e, err := engine.New(cfg, engine.Deps{Playback: playback, Display: display})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	defer e.Close()
	if err := e.LoadTimeline(helloWorld); err != nil {
		t.Fatalf("LoadTimeline: %v", err)
	}

	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		if ev, ok := display.Last(); ok && ev.Visible {
			if ev.Translated != "[fr] Hello world." {
				t.Fatalf("unexpected display %+v", ev)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("tick loop never rendered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	status := e.Status()
	if !status.Running || status.Provider != "echo" {
		t.Fatalf("status = %+v", status)
	}
	e.Stop()
	if e.Status().Running {
		t.Fatal("engine still running after Stop")
	}
}

func TestNewTransportFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Translation.APIKey = ""
	if _, err := engine.NewTransport(&cfg, nil, nil, nil); !errors.Is(err, services.ErrMissingCredentials) {
		t.Fatalf("err = %v, want ErrMissingCredentials", err)
	}

	cfg.Translation.Provider = "carrier-pigeon"
	cfg.Translation.APIKey = "key"
	if _, err := engine.NewTransport(&cfg, nil, nil, nil); err == nil {
		t.Fatal("expected unsupported provider error")
	}

	for _, provider := range []string{config.ProviderEcho, config.ProviderOpenAI, config.ProviderLLM} {
		cfg.Translation.Provider = provider
		tr, err := engine.NewTransport(&cfg, nil, nil, nil)
		if err != nil {
			t.Fatalf("%s: %v", provider, err)
		}
		if tr.Name() != provider {
			t.Fatalf("name = %q, want %q", tr.Name(), provider)
		}
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Scheduler.StaticIntervalMs = 300
	cfg.Scheduler.CooldownSeconds = 12
	cfg.Render.HideDebounceMs = 450

	so := engine.SchedulerOptions(&cfg)
	if so.StaticInterval != 300*time.Millisecond || so.Cooldown != 12*time.Second {
		t.Fatalf("scheduler options = %+v", so)
	}
	if so.TargetLanguage != cfg.Translation.TargetLanguage {
		t.Fatalf("target = %q", so.TargetLanguage)
	}
	ro := engine.RenderOptions(&cfg)
	if ro.HideDebounce != 450*time.Millisecond || !ro.Bilingual {
		t.Fatalf("render options = %+v", ro)
	}
	if po := engine.PacedOptions(&cfg); po.RetryMax != 8*time.Second {
		t.Fatalf("paced options = %+v", po)
	}
}
