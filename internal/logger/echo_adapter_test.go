package logger

import (
	"bytes"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	echolog "github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
)

var _ echo.Logger = (*EchoAdapter)(nil)

func TestEchoAdapterRoutesLevels(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	a := NewEchoAdapter(NewSlogLogger(buf, LogLevelInfo, time.UTC).Module("echo"))

	a.Debugf("dropped %d", 1)
	a.Infof("listening on %s", ":8000")
	a.Warn("slow", " client")
	a.Errorj(echolog.JSON{"path": "/upload"})

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "listening on :8000")
	assert.Contains(t, out, "slow client")
	assert.Contains(t, out, "/upload")
	assert.Contains(t, out, "module=echo")
}

func TestEchoAdapterPanicsInsteadOfExiting(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	a := NewEchoAdapter(NewSlogLogger(buf, LogLevelInfo, time.UTC))

	assert.PanicsWithValue(t, "boom", func() { a.Fatal("boom") })
	assert.Contains(t, buf.String(), "boom")
}

func TestEchoAdapterNilLogger(t *testing.T) {
	t.Parallel()

	a := NewEchoAdapter(nil)
	assert.NotPanics(t, func() { a.Print("nothing") })
	assert.Equal(t, echolog.INFO, a.Level())
}
