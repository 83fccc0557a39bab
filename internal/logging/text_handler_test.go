package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2024, 1, 19, 10, 30, 0, 0, time.UTC)

func handle(t *testing.T, h slog.Handler, level slog.Level, msg string, attrs ...slog.Attr) {
	t.Helper()
	r := slog.NewRecord(fixedTime, level, msg, 0)
	r.AddAttrs(attrs...)
	require.NoError(t, h.Handle(context.Background(), r))
}

func TestTextHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	h := NewTextHandler(&buf, nil)

	handle(t, h, slog.LevelInfo, "Server started", slog.Int("port", 7512))

	assert.Equal(t, "2024-01-19T10:30:00Z INFO Server started port=7512\n", buf.String())
}

func TestTextHandler_Component(t *testing.T) {
	var buf bytes.Buffer
	h := NewTextHandler(&buf, nil).WithAttrs([]slog.Attr{
		slog.String("component", "matching"),
		slog.String("node", "n1"),
	})

	handle(t, h, slog.LevelWarn, "Room dropped", slog.String("room", "r1"))

	assert.Equal(t, "2024-01-19T10:30:00Z WARN [matching] Room dropped node=n1 room=r1\n", buf.String())
}

func TestTextHandler_ComponentInsideGroupIsAnAttribute(t *testing.T) {
	var buf bytes.Buffer
	h := NewTextHandler(&buf, nil).WithGroup("peer").WithAttrs([]slog.Attr{slog.String("component", "x")})

	handle(t, h, slog.LevelInfo, "msg")

	assert.Contains(t, buf.String(), "INFO msg peer.component=x")
}

func TestTextHandler_Values(t *testing.T) {
	var buf bytes.Buffer
	h := NewTextHandler(&buf, nil)

	handle(t, h, slog.LevelInfo, "values",
		slog.String("plain", "abc"),
		slog.String("spaced", "a b"),
		slog.String("empty", ""),
		slog.Float64("rate", 2.5),
		slog.Bool("ok", true),
		slog.Duration("took", 1500*time.Millisecond),
		slog.Time("at", fixedTime),
		slog.Any("err", errors.New("not found")),
		slog.Group("req", slog.String("id", "r1"), slog.Int("n", 2)),
		slog.Group("none"),
	)

	out := buf.String()
	for _, want := range []string{
		" plain=abc",
		` spaced="a b"`,
		` empty=""`,
		" rate=2.5",
		" ok=true",
		" took=1.5s",
		" at=2024-01-19T10:30:00Z",
		` err="not found"`,
		" req.id=r1 req.n=2",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "none")
}

func TestTextHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	h := NewTextHandler(&buf, nil).WithGroup("").WithGroup("a").WithGroup("b")

	handle(t, h, slog.LevelInfo, "msg", slog.String("k", "v"))

	assert.Contains(t, buf.String(), " a.b.k=v")
}

func TestTextHandler_Level(t *testing.T) {
	h := NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})
	ctx := context.Background()

	assert.False(t, h.Enabled(ctx, slog.LevelInfo))
	assert.True(t, h.Enabled(ctx, slog.LevelWarn))
	assert.True(t, h.Enabled(ctx, slog.LevelError))
}

func TestTextHandler_DerivedHandlersShareLock(t *testing.T) {
	var buf bytes.Buffer
	base := NewTextHandler(&buf, nil)
	derived := base.WithAttrs([]slog.Attr{slog.String("component", "ws")})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); slog.New(base).Info("base") }()
		go func() { defer wg.Done(); slog.New(derived).Info("derived") }()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 100)
	for _, line := range lines {
		assert.True(t, strings.HasSuffix(line, " base") || strings.HasSuffix(line, " derived"), line)
	}
}
