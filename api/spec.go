// Package api embeds the OpenAPI document describing the HTTP interface.
package api

import _ "embed"

// OpenAPISpec is the raw OpenAPI 3 document in YAML form.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
