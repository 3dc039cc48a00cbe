package wire

import "github.com/airfrog/airfrog"

// statusFor classifies err into one of the response status codes.
func statusFor(err error) byte {
	if err == nil {
		return StatusOK
	}
	apiErr := airfrog.WrapAPIError(err)
	switch apiErr.Code {
	case airfrog.ErrTimeout:
		return ErrTimeout
	case airfrog.ErrNotConnected:
		return ErrConnection
	case airfrog.ErrAlignment, airfrog.ErrTooLarge, airfrog.ErrBadRequest:
		return ErrInvalidParameter
	default:
		if apiErr.Cause != nil {
			return ErrRegisterOrSWD
		}
		return ErrRegisterOrSWD
	}
}
