package feeder

import (
	"github.com/pkg/errors"
)

var (
	// ErrConfig reports a missing or malformed configuration key, or an
	// unknown transport kind. It is always raised before any I/O.
	ErrConfig = errors.New("configuration error")

	// ErrConnection reports that Configure could not reach or initialise
	// the backend.
	ErrConnection = errors.New("connection error")

	// ErrDelivery reports a failed Send.
	ErrDelivery = errors.New("delivery error")

	// ErrVerify reports that the read-side count of a Verifier could not be
	// taken.
	ErrVerify = errors.New("verification error")
)

var (
	errNegative = errors.New("must not be negative")
	errFraction = errors.New("must be a whole number")
)

func missingKey(key string) error {
	return errors.Wrapf(ErrConfig, "configuration incomplete: %q is required", key)
}

func invalidKey(key string, err error) error {
	return errors.Wrapf(ErrConfig, "invalid value for %q: %s", key, err)
}

func connectionFailed(cause error, what string) error {
	if cause == nil {
		return errors.Wrap(ErrConnection, what)
	}
	return errors.Wrapf(ErrConnection, "%s: %v", what, cause)
}

func deliveryFailed(cause error, what string) error {
	if cause == nil {
		return errors.Wrap(ErrDelivery, what)
	}
	return errors.Wrapf(ErrDelivery, "%s: %v", what, cause)
}

func foreignClient(kind string, c Client) error {
	return errors.Wrapf(ErrDelivery, "%s: unexpected client %T", kind, c)
}
