// Portunus - Trusted Proxy Authentication Gateway
// Copyright 2026 The Portunus Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portunus-gw/portunus

package api

import (
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/portunus-gw/portunus/internal/models"
	"github.com/portunus-gw/portunus/internal/validation"
)

// maxRequestBody caps decoded bodies. Gateway control requests are small;
// anything larger is a client bug or abuse.
const maxRequestBody = 1 << 20

// decodeRequest reads, decodes, and validates a JSON request body into dst.
// On failure it writes the error response and returns false.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	data, err := io.ReadAll(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST",
			"Failed to read request body", nil)
		return false
	}

	if err := json.Unmarshal(data, dst); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST",
			"Request body is not valid JSON", nil)
		return false
	}

	if verr := validation.ValidateStruct(dst); verr != nil {
		respondJSON(w, http.StatusBadRequest, &models.APIResponse{
			Status: "error",
			Metadata: models.Metadata{
				Timestamp: time.Now().UTC(),
			},
			Error: verr.ToAPIError(),
		})
		return false
	}
	return true
}
