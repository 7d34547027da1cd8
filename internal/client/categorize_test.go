package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"testing"
)

// TestCategorizeError verifies that CategorizeError maps errors to the correct ErrorCategory
// for metrics labeling, including typed errors, wrapped errors, and message-based heuristics.
func TestCategorizeError(t *testing.T) {
	var syntaxErr error
	if err := json.Unmarshal([]byte("{"), new(json.RawMessage)); err != nil {
		syntaxErr = err
	}

	// name: test case description; err: input error; want: expected ErrorCategory.
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"upstream status", &UpstreamError{StatusCode: 502}, ErrorCategoryUpstreamStatus},
		{"wrapped upstream status", fmt.Errorf("fetch: %w", &UpstreamError{StatusCode: 404}), ErrorCategoryUpstreamStatus},
		{"deadline", context.DeadlineExceeded, ErrorCategoryTimeout},
		{"canceled", context.Canceled, ErrorCategoryTimeout},
		{"dial error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, ErrorCategoryNetwork},
		{"json syntax", syntaxErr, ErrorCategoryParsing},
		{"network in message", errors.New("network down"), ErrorCategoryNetwork},
		{"timeout in message", errors.New("read timeout"), ErrorCategoryTimeout},
		{"json in message", errors.New("bad json"), ErrorCategoryParsing},
		{"unknown", errors.New("something else"), ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CategorizeError(tt.err)
			if got != tt.want {
				t.Errorf("CategorizeError() = %v, want %v", got, tt.want)
			}
		})
	}
}
