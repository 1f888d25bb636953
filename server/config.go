package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/javajack/gridsync"
	"github.com/javajack/gridsync/auth"
)

// Config holds the settings of a Server.
type Config struct {
	Addr            string
	Secret          string
	TokenTTL        time.Duration
	Rows            int
	Columns         int
	MaxRows         int
	MaxColumns      int
	Recalculate     bool
	SendBuffer      int
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
}

// DefaultConfig returns the settings used when no flags are given.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8000",
		Secret:          auth.DefaultSecret,
		TokenTTL:        auth.DefaultTokenTTL,
		Rows:            100,
		Columns:         25,
		MaxRows:         gridsync.MaxRows,
		MaxColumns:      gridsync.MaxColumns,
		Recalculate:     true,
		SendBuffer:      256,
		ShutdownTimeout: 10 * time.Second,
		MaxUploadBytes:  10 << 20,
	}
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	switch {
	case c.Addr == "":
		return errors.New("addr must not be empty")
	case c.Secret == "":
		return errors.New("secret must not be empty")
	case c.TokenTTL <= 0:
		return fmt.Errorf("token ttl must be positive, got %s", c.TokenTTL)
	case c.Rows < 1 || c.Columns < 1:
		return fmt.Errorf("sheet size must be at least 1x1, got %dx%d", c.Rows, c.Columns)
	case c.MaxRows < c.Rows || c.MaxRows > gridsync.MaxRows:
		return fmt.Errorf("max rows must be between %d and %d, got %d", c.Rows, gridsync.MaxRows, c.MaxRows)
	case c.MaxColumns < c.Columns || c.MaxColumns > gridsync.MaxColumns:
		return fmt.Errorf("max columns must be between %d and %d, got %d", c.Columns, gridsync.MaxColumns, c.MaxColumns)
	case c.SendBuffer < 1:
		return fmt.Errorf("send buffer must be positive, got %d", c.SendBuffer)
	case c.MaxUploadBytes < 1:
		return fmt.Errorf("max upload bytes must be positive, got %d", c.MaxUploadBytes)
	}
	return nil
}
