// SPDX-License-Identifier: MIT

// Package api embeds the OpenAPI contract for the v1 JSON API.
package api

import _ "embed"

// Spec is the raw OpenAPI document. The web server parses it at startup
// and serves it at /api/v1/openapi.json.
//
//go:embed openapi.yaml
var Spec []byte
