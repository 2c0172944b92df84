package render

import (
	"fmt"

	"github.com/slipway-sh/slipway/internal/core/domain"
)

// =============================================================================
// Dockerfile Rendering
// =============================================================================

// renderDockerfile produces the image build file for the app type. The build
// context is always the working directory.
func renderDockerfile(spec domain.AppSpec) ([]byte, error) {
	switch spec.Type {
	case domain.AppTypeBun:
		return []byte(fmt.Sprintf(`FROM oven/bun:latest
WORKDIR /app
COPY . .
RUN bun install
EXPOSE %d
CMD ["bun", "start"]
`, spec.Port)), nil

	case domain.AppTypeNode:
		return []byte(fmt.Sprintf(`FROM node:20-alpine
WORKDIR /app
COPY package*.json ./
RUN npm install
COPY . .
EXPOSE %d
CMD ["npm", "start"]
`, spec.Port)), nil

	case domain.AppTypeNextJS:
		return []byte(fmt.Sprintf(`FROM node:20-alpine
WORKDIR /app
COPY package*.json ./
RUN npm install
COPY . .
RUN npm run build
EXPOSE %d
CMD ["npm", "start"]
`, spec.Port)), nil

	case domain.AppTypeStatic:
		return []byte(fmt.Sprintf(`FROM nginx:alpine
COPY . /usr/share/nginx/html
EXPOSE %d
`, spec.Port)), nil
	}

	return nil, fmt.Errorf("no dockerfile template for app type %q", spec.Type)
}
