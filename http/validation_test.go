package http

import (
	"strings"
	"testing"
)

func TestValidateFeedResponse(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		expectedError string
	}{
		{
			name: "valid feed",
			body: `{"casts":[{"hash":"0xabc","text":"gm","author":{"fid":3,"username":"dwr","custody_address":"0x1111111111111111111111111111111111111111","verifications":[]}}],"next":{"cursor":null}}`,
		},
		{
			name: "missing casts",
			body: `{"next":{"cursor":null}}`,
		},
		{
			name: "null custody and verifications",
			body: `{"casts":[{"hash":"0xabc","author":{"fid":3,"custody_address":null,"verifications":null}}]}`,
		},
		{
			name:          "casts is not an array",
			body:          `{"casts":"nope"}`,
			expectedError: "casts",
		},
		{
			name:          "cast without hash",
			body:          `{"casts":[{"author":{"fid":3}}]}`,
			expectedError: "hash",
		},
		{
			name:          "author without fid",
			body:          `{"casts":[{"hash":"0xabc","author":{}}]}`,
			expectedError: "fid",
		},
		{
			name:          "not json",
			body:          `<html>`,
			expectedError: "invalid feed response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFeedResponse([]byte(tt.body))
			if tt.expectedError == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got none", tt.expectedError)
			}
			if !strings.Contains(err.Error(), tt.expectedError) {
				t.Errorf("expected error containing %q, got %q", tt.expectedError, err.Error())
			}
		})
	}
}
