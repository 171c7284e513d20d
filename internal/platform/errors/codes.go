// Package errors provides structured errors for the header service.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeDataSourceUnavailable marks a failed fetch from a backend collaborator.
	CodeDataSourceUnavailable Code = "DATA_SOURCE_UNAVAILABLE"
	// CodeConfigurationInvalid marks malformed auth or documentation config.
	CodeConfigurationInvalid Code = "CONFIGURATION_INVALID"

	// Validation errors
	CodeLinkURLMissing  Code = "LINK_URL_MISSING"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// GRPCCode maps header codes onto the canonical gRPC code space.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeLinkURLMissing, CodeInvalidArgument:
		return codes.InvalidArgument
	case CodeConfigurationInvalid:
		return codes.FailedPrecondition
	case CodeDataSourceUnavailable:
		return codes.Unavailable
	case CodeNotFound:
		return codes.NotFound
	default:
		return codes.Internal
	}
}
