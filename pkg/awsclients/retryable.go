package awsclients

import (
	"errors"

	"github.com/aws/smithy-go"
)

// IsTransient classifies an AWS API error as worth retrying: the
// throttling, internal-error, unavailable and timeout codes listed below,
// plus any error that carries no API error code at all. Any other API
// error code (validation errors, not-found, access-denied) is terminal.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		// Transport-level errors (timeouts, connection resets) surface
		// without an APIError wrapper; treat them as transient too.
		return true
	}
	switch apiErr.ErrorCode() {
	case "Throttling", "ThrottlingException", "RequestLimitExceeded",
		"TooManyRequestsException", "InternalFailure", "InternalError",
		"ServiceUnavailable", "RequestTimeout":
		return true
	default:
		return false
	}
}

// IsUnsupportedHibernation reports whether err is EC2's
// UnsupportedHibernationConfiguration error: the instance was tagged for
// a hibernate action but never had hibernation enabled at launch.
func IsUnsupportedHibernation(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.ErrorCode() == "UnsupportedHibernationConfiguration"
}
