// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks user-provided names before they reach remote
// storage: bucket names and object prefixes for archives.
//
// Catching a bad name locally gives a clear message instead of a 400 from
// the storage API halfway through an upload.
package validation

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

// bucketPattern matches Google Cloud Storage bucket names: 3-63 characters
// of lowercase letters, digits, dashes, underscores and dots, starting and
// ending with a letter or digit.
var bucketPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._\-]{1,61}[a-z0-9]$`)

// prefixSegmentPattern matches one "/"-separated part of an object prefix.
var prefixSegmentPattern = regexp.MustCompile(`^[A-Za-z0-9._\-]+$`)

// ValidateBucketName validates a GCS bucket name.
//
// Example:
//
//	if err := validation.ValidateBucketName(bucket); err != nil {
//	    return fmt.Errorf("invalid --bucket: %w", err)
//	}
func ValidateBucketName(name string) error {
	if name == "" {
		return fmt.Errorf("bucket name cannot be empty")
	}
	if !bucketPattern.MatchString(name) {
		return fmt.Errorf("invalid bucket name: %q (must be 3-63 lowercase letters, digits, dashes, underscores or dots)", name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("invalid bucket name: %q (no consecutive dots)", name)
	}
	if net.ParseIP(name) != nil {
		return fmt.Errorf("invalid bucket name: %q (cannot be an IP address)", name)
	}
	if strings.HasPrefix(name, "goog") {
		return fmt.Errorf("invalid bucket name: %q (cannot start with goog)", name)
	}
	return nil
}

// ValidateObjectPrefix validates a "/"-separated object name prefix. Each
// segment is letters, digits, dots, dashes or underscores; "." and ".."
// segments are rejected. An empty prefix is valid.
func ValidateObjectPrefix(prefix string) error {
	if prefix == "" {
		return nil
	}
	if strings.HasPrefix(prefix, "/") || strings.HasSuffix(prefix, "/") {
		return fmt.Errorf("invalid object prefix: %q (no leading or trailing slash)", prefix)
	}
	var invalid []string
	for _, seg := range strings.Split(prefix, "/") {
		if seg == "." || seg == ".." || !prefixSegmentPattern.MatchString(seg) {
			invalid = append(invalid, seg)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid object prefix %q: bad segments %q", prefix, invalid)
	}
	return nil
}
