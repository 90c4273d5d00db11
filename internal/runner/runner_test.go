package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunFailsFatalStartupOnMissingConfig(t *testing.T) {
	err := Run(context.Background(), Options{ConfigPath: "/nonexistent/path/to/config.toml"})
	assert.ErrorIs(t, err, ErrFatalStartup)
}
