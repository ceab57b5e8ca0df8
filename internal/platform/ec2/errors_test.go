package ec2

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagepool/stagepool/internal/gateway"
	"github.com/stagepool/stagepool/internal/util/retry"
)

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: "simulated"}
}

func TestClassifyThrottlingCodes(t *testing.T) {
	t.Parallel()
	for code := range rateLimitCodes {
		err := classify("RunInstances", apiError(code))
		assert.True(t, gateway.IsRateLimited(err), "code %s must classify as rate limited", code)
	}
}

func TestClassifyPermanentAPIError(t *testing.T) {
	t.Parallel()
	err := classify("RunInstances", apiError("UnauthorizedOperation"))

	require.False(t, gateway.IsRateLimited(err))
	var perm *gateway.PermanentAPIError
	require.ErrorAs(t, err, &perm)
	assert.Equal(t, "RunInstances", perm.Op)
	assert.Equal(t, "UnauthorizedOperation", perm.Code)
}

func TestClassifyNonAPIError(t *testing.T) {
	t.Parallel()
	raw := errors.New("connection reset")
	err := classify("DescribeInstances", raw)

	var perm *gateway.PermanentAPIError
	require.ErrorAs(t, err, &perm)
	assert.Empty(t, perm.Code)
	assert.ErrorIs(t, err, raw)
}

func TestClassifyNil(t *testing.T) {
	t.Parallel()
	assert.NoError(t, classify("DescribeInstances", nil))
}

func TestIsNotFoundSurvivesRetryWrapping(t *testing.T) {
	t.Parallel()
	// The retry wrapper marks permanent errors fatal and wraps them; the
	// NotFound check must still see the original API code through the chain.
	classified := classify("KeyPairExists", apiError("InvalidKeyPair.NotFound"))
	wrapped := fmt.Errorf("not retrying: %w", retry.Fatal(classified))

	assert.True(t, isNotFound(wrapped))
	assert.False(t, gateway.IsRateLimited(wrapped))
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()
	assert.True(t, isNotFound(apiError("InvalidInstanceID.NotFound")))
	assert.True(t, isNotFound(apiError("InvalidGroup.NotFound")))
	assert.False(t, isNotFound(apiError("UnauthorizedOperation")))
	assert.False(t, isNotFound(errors.New("plain")))
}
