package scaffold

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipway-sh/slipway/internal/core/domain"
)

func TestFilesPerAppType(t *testing.T) {
	tests := []struct {
		appType domain.AppType
		want    []string
	}{
		{domain.AppTypeBun, []string{"package.json", "index.ts"}},
		{domain.AppTypeNode, []string{"package.json", "index.js"}},
		{domain.AppTypeNextJS, []string{"package.json", "pages/index.js"}},
		{domain.AppTypeStatic, []string{"index.html"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.appType), func(t *testing.T) {
			files, err := Files(domain.AppSpec{
				Name: "demo", Type: tt.appType, Port: 3000,
				Mode: domain.ModeDev, Replicas: 1,
			})
			require.NoError(t, err)

			var names []string
			for _, f := range files {
				names = append(names, f.Name)
				assert.NotEmpty(t, f.Content)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestFilesServeHealthEndpoint(t *testing.T) {
	// runnable app types must answer the probe path baked into the manifests
	for _, appType := range []domain.AppType{domain.AppTypeBun, domain.AppTypeNode} {
		files, err := Files(domain.AppSpec{
			Name: "demo", Type: appType, Port: 3000,
			Mode: domain.ModeDev, Replicas: 1,
		})
		require.NoError(t, err)

		found := false
		for _, f := range files {
			if strings.Contains(string(f.Content), "/health") {
				found = true
			}
		}
		assert.True(t, found, "%s entrypoint must serve /health", appType)
	}
}

func TestFilesRejectsInvalidSpec(t *testing.T) {
	_, err := Files(domain.AppSpec{Name: "Bad Name!", Type: domain.AppTypeBun, Port: 3000, Mode: domain.ModeDev, Replicas: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidSpec)
}
