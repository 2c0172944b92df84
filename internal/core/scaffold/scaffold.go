// Package scaffold produces the starter files for a new project: a minimal
// app entrypoint and manifest per app type. Like render, it is pure; the
// caller writes the files and decides what to do about ones that already
// exist.
package scaffold

import (
	"fmt"

	"github.com/slipway-sh/slipway/internal/core/domain"
	"github.com/slipway-sh/slipway/internal/core/render"
)

// Files returns the starter files for the app type. Existing projects keep
// their own files; the CLI skips any name already present on disk.
func Files(spec domain.AppSpec) ([]render.File, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	switch spec.Type {
	case domain.AppTypeBun:
		return []render.File{
			{Name: "package.json", Content: packageJSON(spec.Name, "bun run index.ts")},
			{Name: "index.ts", Content: bunEntrypoint(spec.Port)},
		}, nil
	case domain.AppTypeNode:
		return []render.File{
			{Name: "package.json", Content: packageJSON(spec.Name, "node index.js")},
			{Name: "index.js", Content: nodeEntrypoint(spec.Port)},
		}, nil
	case domain.AppTypeNextJS:
		return []render.File{
			{Name: "package.json", Content: nextPackageJSON(spec.Name)},
			{Name: "pages/index.js", Content: nextIndexPage(spec.Name)},
		}, nil
	case domain.AppTypeStatic:
		return []render.File{
			{Name: "index.html", Content: staticIndex(spec.Name)},
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown app type %q", domain.ErrInvalidSpec, spec.Type)
}

func packageJSON(name, start string) []byte {
	return []byte(fmt.Sprintf(`{
  "name": %q,
  "version": "0.1.0",
  "scripts": {
    "start": %q
  }
}
`, name, start))
}

func nextPackageJSON(name string) []byte {
	return []byte(fmt.Sprintf(`{
  "name": %q,
  "version": "0.1.0",
  "scripts": {
    "dev": "next dev",
    "build": "next build",
    "start": "next start"
  },
  "dependencies": {
    "next": "latest",
    "react": "latest",
    "react-dom": "latest"
  }
}
`, name))
}

func bunEntrypoint(port int) []byte {
	return []byte(fmt.Sprintf(`const server = Bun.serve({
  port: process.env.PORT ?? %d,
  fetch(req) {
    const url = new URL(req.url);
    if (url.pathname === "/health") {
      return new Response("ok");
    }
    return new Response("Hello from Bun!");
  },
});

console.log("listening on", server.port);
`, port))
}

func nodeEntrypoint(port int) []byte {
	return []byte(fmt.Sprintf(`const http = require("http");

const port = process.env.PORT ?? %d;

http
  .createServer((req, res) => {
    if (req.url === "/health") {
      res.end("ok");
      return;
    }
    res.end("Hello from Node!");
  })
  .listen(port, () => console.log("listening on", port));
`, port))
}

func nextIndexPage(name string) []byte {
	return []byte(fmt.Sprintf(`export default function Home() {
  return <h1>%s</h1>;
}
`, name))
}

func staticIndex(name string) []byte {
	return []byte(fmt.Sprintf(`<!doctype html>
<html>
  <head><title>%s</title></head>
  <body><h1>%s</h1></body>
</html>
`, name, name))
}
