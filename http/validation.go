package http

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// feedSchema describes the parts of a Neynar feed response the service
// relies on. Unknown fields are allowed.
const feedSchema = `{
  "type": "object",
  "properties": {
    "casts": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["hash", "author"],
        "properties": {
          "hash": {"type": "string", "minLength": 1},
          "text": {"type": "string"},
          "timestamp": {"type": "string"},
          "author": {
            "type": "object",
            "required": ["fid"],
            "properties": {
              "fid": {"type": "integer"},
              "username": {"type": "string"},
              "custody_address": {"type": ["string", "null"]},
              "verifications": {
                "type": ["array", "null"],
                "items": {"type": "string"}
              }
            }
          },
          "embeds": {"type": ["array", "null"]},
          "reactions": {"type": ["object", "null"]},
          "replies": {"type": ["object", "null"]}
        }
      }
    }
  }
}`

var feedSchemaLoader = gojsonschema.NewStringLoader(feedSchema)

// ValidateFeedResponse checks a feed response body against the feed schema
func ValidateFeedResponse(body []byte) error {
	result, err := gojsonschema.Validate(feedSchemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid feed response: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var errors []string
	for _, desc := range result.Errors() {
		errors = append(errors, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
	}
	return fmt.Errorf("invalid feed response: %s", strings.Join(errors, "; "))
}
