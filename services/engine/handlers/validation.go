// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"github.com/go-playground/validator/v10"
)

const (
	// MaxDocumentBytes caps analyze payloads. Byte length, not rune
	// count, so oversized multi-byte payloads cannot slip through.
	MaxDocumentBytes = 1 << 20 // 1MB

	// MaxMessageBytes caps a single chat message.
	MaxMessageBytes = 32 * 1024 // 32KB
)

// requestValidate is the shared validator for request bodies,
// initialized with the size-limit rules.
var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
	_ = requestValidate.RegisterValidation("maxdocbytes", validateMaxDocBytes)
	_ = requestValidate.RegisterValidation("maxmsgbytes", validateMaxMsgBytes)
}

func validateMaxDocBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxDocumentBytes
}

func validateMaxMsgBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageBytes
}
