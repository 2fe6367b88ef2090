package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/a3tai/mcp-bom-reader/internal/config"
)

func TestNewService_UnknownRasterizer(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BOMDirectory = t.TempDir()
	cfg.Rasterizer = "ghostscript"

	svc, err := NewService(cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Nil(t, svc)
	assert.Contains(t, err.Error(), "failed to create rasterizer")
	assert.Contains(t, err.Error(), `unknown rasterizer "ghostscript"`)
}

func TestNewService(t *testing.T) {
	tests := []struct {
		name       string
		rasterizer string
	}{
		{name: "embedded", rasterizer: "embedded"},
		{name: "pdftoppm", rasterizer: "pdftoppm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.BOMDirectory = t.TempDir()
			cfg.Rasterizer = tt.rasterizer

			svc, err := NewService(cfg, nil)
			require.NoError(t, err)
			require.NotNil(t, svc)

			info := svc.ServerInfo(t.Context())
			assert.Equal(t, cfg.BOMDirectory, info.BOMDirectory)
			assert.Empty(t, info.Documents)
		})
	}
}
