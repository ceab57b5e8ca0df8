package ec2

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"

	"github.com/stagepool/stagepool/internal/gateway"
)

// Error codes the remote API uses to signal throttling. These calls may
// be retried with backoff; everything else is permanent.
var rateLimitCodes = map[string]bool{
	"RequestLimitExceeded":      true,
	"RequestThrottled":          true,
	"RequestThrottledException": true,
	"Throttling":                true,
	"ThrottlingException":       true,
	"EC2ThrottledException":     true,
}

// classify maps a raw SDK error onto the orchestrator's error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if rateLimitCodes[apiErr.ErrorCode()] {
			return &gateway.RateLimitError{Op: op, Err: err}
		}
		return &gateway.PermanentAPIError{Op: op, Code: apiErr.ErrorCode(), Err: err}
	}
	return &gateway.PermanentAPIError{Op: op, Err: err}
}

// isNotFound reports whether the error is the API's way of saying the
// named entity does not exist.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return strings.HasSuffix(apiErr.ErrorCode(), ".NotFound")
	}
	return false
}
