package source_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"captionsync/internal/source"
	"captionsync/internal/testsupport"
	"captionsync/internal/timeline"
)

const sampleJSON3 = `{
  "wireMagic": "pb3",
  "events": [
    {"tStartMs": 0, "dDurationMs": 1200, "segs": [{"utf8": "Hello"}]},
    {"tStartMs": 1200, "dDurationMs": 800, "aAppend": 1, "segs": [{"utf8": "\n"}]},
    {"tStartMs": 1200, "dDurationMs": 1500, "segs": [{"utf8": "world"}, {"utf8": " again."}]},
    {"tStartMs": 3000, "segs": [{"utf8": "\n"}]},
    {"dDurationMs": 500, "segs": [{"utf8": "no start"}]},
    {"tStartMs": 4000, "segs": [{"utf8": "open ended"}]}
  ]
}`

const sampleSRT = "1\r\n00:00:01,000 --> 00:00:02,500\r\n<i>First</i> line\r\nsecond line\r\n\r\n" +
	"2\r\n00:00:03.000 --> 00:00:04,000\r\nNext cue\r\n\r\n" +
	"3\r\nbroken --> timing\r\nskipped\r\n"

const sampleVTT = `WEBVTT
Kind: captions

NOTE this block is ignored

intro
00:01.000 --> 00:02.000 align:start position:0%
<v Speaker>Hi <c>there</c></v>

00:00:02.000 --> 00:00:03.250
Second
`

func TestParseJSON3(t *testing.T) {
	events, err := source.ParseJSON3([]byte(sampleJSON3))
	if err != nil {
		t.Fatalf("ParseJSON3: %v", err)
	}
	want := []timeline.RawEvent{
		{StartMs: 0, DurationMs: 1200, Text: "Hello"},
		{StartMs: 1200, DurationMs: 1500, Text: "world again."},
		{StartMs: 4000, DurationMs: 0, Text: "open ended"},
	}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("events = %+v, want %+v", events, want)
	}
}

func TestParseJSON3RejectsInvalidJSON(t *testing.T) {
	if _, err := source.ParseJSON3([]byte("{not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestParseSRT(t *testing.T) {
	events, err := source.ParseSRT(sampleSRT)
	if err != nil {
		t.Fatalf("ParseSRT: %v", err)
	}
	want := []timeline.RawEvent{
		{StartMs: 1000, DurationMs: 1500, Text: "First line second line"},
		{StartMs: 3000, DurationMs: 1000, Text: "Next cue"},
	}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("events = %+v, want %+v", events, want)
	}
}

func TestParseSRTWithoutCuesFails(t *testing.T) {
	if _, err := source.ParseSRT("just some text\nwith no timing"); err == nil {
		t.Fatal("expected error for input without cues")
	}
	events, err := source.ParseSRT("   ")
	if err != nil || len(events) != 0 {
		t.Fatalf("blank input = %v, %v; want no events and no error", events, err)
	}
}

func TestParseVTT(t *testing.T) {
	events, err := source.ParseVTT(sampleVTT)
	if err != nil {
		t.Fatalf("ParseVTT: %v", err)
	}
	want := []timeline.RawEvent{
		{StartMs: 1000, DurationMs: 1000, Text: "Hi there"},
		{StartMs: 2000, DurationMs: 1250, Text: "Second"},
	}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("events = %+v, want %+v", events, want)
	}
}

func TestParseVTTRequiresHeader(t *testing.T) {
	if _, err := source.ParseVTT("00:01.000 --> 00:02.000\nHi"); err == nil {
		t.Fatal("expected missing header error")
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		path string
		data string
		want source.Format
	}{
		{name: "json3 extension", path: "a.json3", want: source.FormatJSON3},
		{name: "srt extension", path: "a.SRT", want: source.FormatSRT},
		{name: "vtt extension", path: "a.vtt", want: source.FormatVTT},
		{name: "sniff json", path: "captions", data: ` {"events": []}`, want: source.FormatJSON3},
		{name: "sniff vtt with bom", path: "captions", data: "\uFEFFWEBVTT\n\n", want: source.FormatVTT},
		{name: "sniff srt", path: "captions.txt", data: "1\n00:00:01,000 --> 00:00:02,000\nhi", want: source.FormatSRT},
		{name: "unknown", path: "captions.txt", data: "plain", want: source.FormatAuto},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := source.DetectFormat(tt.path, []byte(tt.data)); got != tt.want {
				t.Fatalf("DetectFormat = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileFetchReadsEachTime(t *testing.T) {
	dir := t.TempDir()
	path := testsupport.WriteFile(t, dir, "talk.srt", "1\n00:00:00,000 --> 00:00:01,000\nOne\n")
	src := source.NewFile(path)

	events, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 1 || events[0].Text != "One" {
		t.Fatalf("events = %+v", events)
	}

	testsupport.WriteFile(t, dir, "talk.srt", "1\n00:00:00,000 --> 00:00:01,000\nOne\n\n2\n00:00:01,000 --> 00:00:02,000\nTwo\n")
	events, err = src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected re-read to see 2 events, got %d", len(events))
	}
}

func TestFileFetchUnknownFormat(t *testing.T) {
	path := testsupport.WriteFile(t, t.TempDir(), "notes.txt", "plain text")
	_, err := source.NewFile(path).Fetch(context.Background())
	if !errors.Is(err, source.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestFileFetchMissing(t *testing.T) {
	if _, err := source.NewFile("/nonexistent/captions.srt").Fetch(context.Background()); err == nil {
		t.Fatal("expected read error")
	}
}

func TestStaticReturnsCopy(t *testing.T) {
	src := source.NewStatic([]timeline.RawEvent{{StartMs: 0, DurationMs: 100, Text: "a"}})
	first, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	first[0].Text = "mutated"
	second, _ := src.Fetch(context.Background())
	if second[0].Text != "a" {
		t.Fatalf("Static leaked its backing slice: %q", second[0].Text)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Fetch(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled Fetch err = %v", err)
	}
}
