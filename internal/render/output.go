// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ChangeURL returns the web URL of a change on its server.
func ChangeURL(baseURL, project string, number int) string {
	return strings.TrimRight(baseURL, "/") + "/c/" + project + "/+/" + strconv.Itoa(number)
}

// JSON writes v as indented JSON followed by a newline.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// YAML writes v as a YAML document.
func YAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(v); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Structured writes v in the named format, "json" or "yaml".
// Any other name falls through to JSON.
func Structured(w io.Writer, format string, v any) error {
	if format == "yaml" {
		return YAML(w, v)
	}
	return JSON(w, v)
}
