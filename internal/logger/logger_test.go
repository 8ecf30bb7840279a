package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func plain(buf *bytes.Buffer, level slog.Level) *PrettyHandler {
	return NewPrettyHandler(buf, &PrettyOptions{Level: level, NoColor: true})
}

func TestDiscardAndDefault(t *testing.T) {
	t.Parallel()
	for _, log := range []Logger{Default(), Discard()} {
		if log == nil {
			t.Fatal("nil logger")
		}
	}
	if Discard().Enabled(slog.LevelError) {
		t.Fatal("Discard should report every level disabled")
	}
}

func TestJSONCarriesLaunchAttrs(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelDebug)
	log.Debug("launching kernel", "routine", "AXPY", "kernel", "XaxpyFast", "global", []int{4096})

	out := buf.String()
	for _, want := range []string{`"msg":"launching kernel"`, `"kernel":"XaxpyFast"`, `"global":[4096]`, `"level":"DEBUG"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %s", want, out)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelWarn)
	log.Info("routine finished")
	log.Debug("launching kernel")
	if buf.Len() > 0 {
		t.Fatalf("info/debug leaked at warn level: %s", buf.String())
	}
	log.Warn("routine failed", "status", "invalid-kernel")
	if !strings.Contains(buf.String(), "routine failed") {
		t.Fatalf("warn missing: %s", buf.String())
	}
	if log.Enabled(slog.LevelInfo) || !log.Enabled(slog.LevelError) {
		t.Fatal("Enabled disagrees with the handler level")
	}
}

func TestPrettyLine(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := New(plain(&buf, slog.LevelDebug))
	log.Debug("launching kernel",
		"kernel", "Xdot",
		"groups", 4,
		"fast", false,
		"elapsed", 1500*time.Microsecond,
		"device", "host avx2",
	)

	line := buf.String()
	if strings.Contains(line, "\033[") {
		t.Fatalf("NoColor output contains escapes: %q", line)
	}
	for _, want := range []string{"DEBUG", "launching kernel", "kernel=Xdot", "groups=4", "fast=false", "elapsed=1.5ms", `device="host avx2"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("missing %q in %q", want, line)
		}
	}
	if !strings.HasSuffix(line, "\n") {
		t.Fatalf("line not terminated: %q", line)
	}
}

func TestPrettyColor(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := New(NewPrettyHandler(&buf, &PrettyOptions{Level: slog.LevelInfo}))
	log.Error("queue closed")
	if !strings.Contains(buf.String(), colorRed) {
		t.Fatalf("error line should be red: %q", buf.String())
	}
}

func TestPrettyGroupsAndAttrs(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := New(plain(&buf, slog.LevelInfo)).With("backend", "host").WithGroup("call").WithGroup("tuning")
	log.Info("params", "WGS", 64)

	line := buf.String()
	if !strings.Contains(line, " backend=host") || strings.Contains(line, "tuning.backend") || !strings.Contains(line, "call.tuning.WGS=64") {
		t.Fatalf("unexpected line %q", line)
	}

	buf.Reset()
	h := plain(&buf, slog.LevelInfo)
	if h.WithGroup("") != h {
		t.Fatal("empty group should return the same handler")
	}
	l := slog.New(h)
	l.Info("geometry", slog.Group("range", slog.Int("global", 256), slog.Int("local", 64)))
	if !strings.Contains(buf.String(), "range.global=256 range.local=64") {
		t.Fatalf("group attr: %q", buf.String())
	}
}

func TestPrettyQuoting(t *testing.T) {
	t.Parallel()
	cases := map[string]bool{
		"XaxpyFast":   false,
		"host-avx2":   false,
		"":            false,
		"two words":   true,
		"k=v":         true,
		"say \"hi\"":  true,
		"line\nbreak": true,
		"tab\tinside": true,
	}
	for in, want := range cases {
		if got := needsQuoting(in); got != want {
			t.Fatalf("needsQuoting(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetup(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	for _, format := range []string{"", "pretty", "json", "text", " JSON "} {
		if _, err := Setup(&buf, "debug", format); err != nil {
			t.Fatalf("Setup(%q): %v", format, err)
		}
	}
	if _, err := Setup(&buf, "info", "xml"); err == nil {
		t.Fatal("unknown format should fail")
	}

	log, err := Setup(&buf, "warn", "pretty")
	if err != nil {
		t.Fatal(err)
	}
	log.Info("hidden")
	log.Warn("shown")
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected output %q", out)
	}
	if strings.Contains(buf.String(), "\033[") {
		t.Fatal("pretty output to a buffer should not be coloured")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext should fall back to a default logger")
	}
	var buf bytes.Buffer
	log := New(plain(&buf, slog.LevelInfo))
	ctx := WithContext(context.Background(), log)
	FromContext(ctx).Info("from context")
	if !strings.Contains(buf.String(), "from context") {
		t.Fatalf("context logger not used: %q", buf.String())
	}
}
