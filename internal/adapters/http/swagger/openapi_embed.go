package swagger

import _ "embed"

// OpenAPI is the embedded OpenAPI document of the HTTP API.
//
//go:embed openapi.yaml
var OpenAPI []byte
