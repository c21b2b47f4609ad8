package logx

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestInitLevels(t *testing.T) {
	Init(Config{Debug: true})
	if got := log.Logger.GetLevel(); got != zerolog.DebugLevel {
		t.Fatalf("level = %s, want debug", got)
	}

	Init()
	if got := log.Logger.GetLevel(); got != zerolog.InfoLevel {
		t.Fatalf("level = %s, want info", got)
	}
}

func TestInitBrandsEveryLine(t *testing.T) {
	Init()

	var buf bytes.Buffer
	logger := log.Logger.Output(&buf)
	logger.Info().Msg("arrancando")

	line := buf.String()
	if !strings.Contains(line, `"service":"ventia"`) {
		t.Fatalf("line lacks service field: %s", line)
	}
	if !strings.Contains(line, "arrancando") {
		t.Fatalf("line lacks message: %s", line)
	}
}
