package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewLoggerWithFile_WritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "loadgen.log")

	logger, err := NewLoggerWithFile(path, true)
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("batch_dispatched")
	_ = logger.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	line := string(b)
	if !strings.Contains(line, `"msg":"batch_dispatched"`) || !strings.Contains(line, `"level":"DEBUG"`) {
		t.Errorf("log line = %s", line)
	}
}

func TestNewLoggerWithFile_InfoLevelDropsDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiet.log")
	logger, err := NewLoggerWithFile(path, false)
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("hidden")
	logger.Info("shown")
	_ = logger.Sync()

	b, _ := os.ReadFile(path)
	if strings.Contains(string(b), "hidden") || !strings.Contains(string(b), "shown") {
		t.Errorf("log = %s", b)
	}
}

func TestOrNop(t *testing.T) {
	OrNop(nil).Info("no panic")
}

func TestRealClockTicker(t *testing.T) {
	tk := RealClock{}.NewTicker(time.Millisecond)
	defer tk.Stop()
	select {
	case <-tk.C():
	case <-time.After(time.Second):
		t.Fatal("ticker never fired")
	}
}
