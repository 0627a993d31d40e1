package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sections.ai/internal/sim/grid"
	"sections.ai/internal/sim/host"
	"sections.ai/internal/sim/sections"
	"sections.ai/internal/sim/tuning"
	"sections.ai/internal/transport/ws"
)

func startServer(t *testing.T) (string, *grid.Grid) {
	t.Helper()
	w := grid.NewWorld()
	ship := w.NewGrid("ship")
	for x := 0; x < 3; x++ {
		_, err := ship.PlaceAt(grid.KindArmor, host.Vec3i{X: x})
		require.NoError(t, err)
	}
	tune := tuning.Defaults()
	tune.TickRateHz = 200
	rt := sections.NewRuntime("w1", sections.NewSession(w, tune, sections.Options{}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = rt.Run(ctx)
	}()
	srv := httptest.NewServer(ws.NewServer(rt, tune, nil).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), ship
}

func copyScript(gridID host.GridID, lastExpect string) string {
	return fmt.Sprintf(`player: builder
steps:
  - action: ACTIVATE
    expect: SELECTING_FIRST
  - action: PRIMARY
    aim: {grid: %[1]d, cell: [0, 0, 0]}
    expect: SELECTING_SECOND
  - action: PRIMARY
    aim: {grid: %[1]d, cell: [2, 0, 0]}
    expect: RESIZING
  - action: RESIZE
    expect: E_BAD_INPUT
  - action: PRIMARY
    expect: %[2]s
`, gridID, lastExpect)
}

func TestLoadScript(t *testing.T) {
	s, err := loadScript(strings.NewReader(`
player: p
steps:
  - action: paste
    onto: true
    offset: [0, 1, 0]
    pause: 10ms
`))
	require.NoError(t, err)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, 10*time.Millisecond, s.Steps[0].pause)
	in := s.Steps[0].input(7)
	assert.Equal(t, uint64(7), in.Seq)
	assert.True(t, in.Onto)
	require.NotNil(t, in.Offset)
	assert.Equal(t, 1, in.Offset.Y)

	_, err = loadScript(strings.NewReader("steps: []"))
	assert.ErrorContains(t, err, "no steps")
	_, err = loadScript(strings.NewReader("steps:\n  - expect: INACTIVE\n"))
	assert.ErrorContains(t, err, "missing action")
	_, err = loadScript(strings.NewReader("steps:\n  - action: AIM\n    bogus: 1\n"))
	assert.Error(t, err)
	_, err = loadScript(strings.NewReader("steps:\n  - action: AIM\n    pause: soon\n"))
	assert.ErrorContains(t, err, "pause")
}

func TestPlay_CopiesSelection(t *testing.T) {
	url, ship := startServer(t)
	s, err := loadScript(strings.NewReader(copyScript(ship.ID(), "INACTIVE")))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out bytes.Buffer
	require.NoError(t, play(ctx, url, s, &out, log.New(io.Discard, "", 0)))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[2], `"size":"3 x 1 x 1"`)
	assert.Contains(t, lines[4], `"kind":"COPY"`)
}

func TestPlay_FailsOnUnexpectedState(t *testing.T) {
	url, ship := startServer(t)
	s, err := loadScript(strings.NewReader(copyScript(ship.ID(), "CONFIRMING")))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = play(ctx, url, s, io.Discard, log.New(io.Discard, "", 0))
	assert.ErrorContains(t, err, "state INACTIVE, want CONFIRMING")
}
