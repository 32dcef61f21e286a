// Copyright (C) 2026 JurisDesk (dev@jurisdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation for security-critical
// identifiers.
//
// Saved filter keys and table IDs arrive as URL path parameters and
// end up embedded in storage keys. Validating them here prevents key
// injection, where a crafted identifier collides with another record's
// key space or smuggles a prefix separator.
package validation

import (
	"fmt"
	"regexp"
)

// identifierPattern matches storage-safe identifiers.
// Allows: letters, digits, hyphens, underscores. Must start with a
// letter or digit. Max length: 64 characters.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-]{0,63}$`)

// ValidateIdentifier validates a client-supplied identifier before it
// is used in a storage key.
//
// Valid identifiers:
//   - 1-64 characters
//   - Letters A-Z a-z, digits 0-9
//   - Hyphens and underscores after the first character
//
// Notably absent: ":" (the storage key prefix separator), "/", "..",
// and whitespace.
//
// Example:
//
//	if err := validation.ValidateIdentifier(tableID); err != nil {
//	    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
//	    return
//	}
func ValidateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("invalid identifier %q: must be 1-64 alphanumeric characters, hyphens or underscores", id)
	}
	return nil
}

// ValidateIdentifiers validates several identifiers, reporting every
// invalid one.
func ValidateIdentifiers(ids []string) error {
	var invalid []string
	for _, id := range ids {
		if err := ValidateIdentifier(id); err != nil {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid identifiers: %q", invalid)
	}
	return nil
}
