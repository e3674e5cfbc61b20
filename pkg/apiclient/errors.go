package apiclient

import (
	"errors"
	"fmt"
)

// ErrNoRefreshToken is reported by a forced refresh when the credential store
// holds no refresh token. The automatic 401 path never returns it: there, the
// original rejection is propagated unchanged.
var ErrNoRefreshToken = errors.New("no refresh token in credential store")

// MissingPathParamError is returned before any network call when a supplied
// path parameter has a nil value, which would leave an unresolved placeholder
// in the URL.
type MissingPathParamError struct {
	Param string
}

func (e *MissingPathParamError) Error() string {
	return fmt.Sprintf("path parameter %q was supplied with no value", e.Param)
}

// RefreshError replaces the original request failure when the token refresh
// itself fails: the refresh endpoint answered non-2xx, the success body had no
// access token, or the call did not complete.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("refreshing access token: %s", e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}
