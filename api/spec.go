// Package api embeds the service's HTTP and event contracts.
package api

import _ "embed"

// OpenAPI is the HTTP contract
//
//go:embed openapi.yaml
var OpenAPI []byte

// AsyncAPI is the event contract for outbox payloads
//
//go:embed asyncapi.yaml
var AsyncAPI []byte
