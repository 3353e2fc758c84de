package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"hoopscraper/pkg/fetcher"
	"hoopscraper/pkg/subject"
)

func TestProgressDisplayPlainLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "shots", 3, false)

	p.Observe(fetcher.Progress{Index: 0, Total: 3, Subject: subject.Subject{ID: "1", Name: "A"}, Rows: 2})
	p.Observe(fetcher.Progress{Index: 1, Total: 3, Subject: subject.Subject{ID: "2", Name: "B"}, Err: errors.New("timeout")})
	p.Observe(fetcher.Progress{Index: 2, Total: 3, Subject: subject.Subject{ID: "3", Name: "C"}, Rows: 0})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"Count 1, Length 2",
		"Count 2, B failed: timeout",
		"Count 3, Length 0",
	}, lines)
}

func TestProgressDisplayInteractive(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "shots", 2, true)

	p.Observe(fetcher.Progress{Index: 0, Total: 2, Subject: subject.Subject{ID: "1", Name: "LeBron James"}, Rows: 5})
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\r"))
	assert.Contains(t, out, "1/2")
	assert.Contains(t, out, "5 rows")
	assert.Contains(t, out, "LeBron James")
}

func TestProgressDisplayComplete(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "players", 2, false)
	p.Observe(fetcher.Progress{Index: 0, Total: 2, Rows: 1, Resumed: true})
	p.Observe(fetcher.Progress{Index: 1, Total: 2, Err: errors.New("x")})
	buf.Reset()

	p.Complete("players.csv")
	out := buf.String()
	assert.Contains(t, out, "Wrote 1 rows for 1 players to players.csv")
	assert.Contains(t, out, "1 players restored from checkpoint")
	assert.Contains(t, out, "1 players failed")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "5m3s", formatDuration(5*time.Minute+3*time.Second))
	assert.Equal(t, "2h10m", formatDuration(2*time.Hour+10*time.Minute))
}

func TestPrinterQuiet(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf, Quiet: true}

	p.Info("Season", "2022-23")
	p.Success("done")
	p.Warning("careful")
	assert.Empty(t, buf.String())

	p.Error("failed", errors.New("boom"))
	assert.Equal(t, "failed: boom\n", buf.String())
}

func TestIsTerminalNonFile(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}
