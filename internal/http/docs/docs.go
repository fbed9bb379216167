// Package docs embeds the OpenAPI contract and serves it together with
// a browsable reference UI.
package docs

import (
	_ "embed"
	"fmt"
	"net/http"
)

//go:embed openapi.yaml
var openAPISpec []byte

// GetSpecBytes returns the embedded OpenAPI document. Drift tests in
// cmd compare it against the mounted routes.
func GetSpecBytes() []byte {
	return openAPISpec
}

// OpenAPIHandler serves the raw spec as YAML.
func OpenAPIHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(openAPISpec)
	})
}

// ScalarDocsHandler renders the Scalar API Reference UI pointed at
// specURL. The widget loads from a CDN, so the binary stays free of
// frontend assets.
func ScalarDocsHandler(specURL string) http.Handler {
	page := fmt.Sprintf(`<!doctype html>
<html>
  <head>
    <title>Adboard API Reference</title>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <style>
      body { margin: 0; }
    </style>
  </head>
  <body>
    <script
      id="api-reference"
      data-url="%s"
      data-configuration='{"theme":"purple"}'></script>
    <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
  </body>
</html>`, specURL)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(page))
	})
}
