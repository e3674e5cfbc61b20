package apiclient

// type ApiAuth service

type AuthService service

// RefreshToken forces a credential refresh outside the automatic 401 path.
// It goes through the same single-flight coordinator, so a forced refresh
// and an interception-triggered one can never run concurrently.
func (s *AuthService) RefreshToken() (string, error) {
	return s.client.refresher.onAuthFailure(ErrNoRefreshToken)
}
