// Package logging sets up the diagnostic log file.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Setup creates a slog.Logger that writes to a dated log file in the user
// state directory. The caller is responsible for closing the file.
func Setup() (*slog.Logger, *os.File, error) {
	name := fmt.Sprintf("wake-%s.log", time.Now().Format("20060102"))
	path, err := xdg.StateFile(filepath.Join("wake", name))
	if err != nil {
		return nil, nil, fmt.Errorf("state dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	handler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(handler), f, nil
}

// Discard returns a logger that drops everything. Used when file logging is
// unavailable and in tests.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
