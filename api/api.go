// Package api хранит OpenAPI-описание операционного HTTP API.
package api

import _ "embed"

//go:embed openapi.json
var OpenAPISpec []byte
