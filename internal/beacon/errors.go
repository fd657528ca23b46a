package beacon

import "errors"

var (
	// ErrInvalidEndpoint is returned by NewSender for a non-HTTP endpoint.
	ErrInvalidEndpoint = errors.New("invalid endpoint: must be an absolute http(s) URL")

	// ErrEncodePayload is returned by Sender.Send when the payload cannot be
	// marshaled. No request is issued in that case.
	ErrEncodePayload = errors.New("failed to encode payload")

	// ErrUnexpectedStatus is returned by Sender.Send for a non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)
