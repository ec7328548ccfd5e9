package auth

// AnonymousMechanism implements SASL ANONYMOUS authentication
// WARNING: brokers only accept this when explicitly configured to
type AnonymousMechanism struct{}

// Name returns the mechanism name
func (a *AnonymousMechanism) Name() string {
	return MechanismAnonymous
}

// Response is empty; the broker maps the connection to its anonymous user.
func (a *AnonymousMechanism) Response() ([]byte, error) {
	return []byte{}, nil
}

// Challenge always fails; ANONYMOUS is a single round trip.
func (a *AnonymousMechanism) Challenge(challenge []byte) ([]byte, error) {
	return nil, noChallenge(MechanismAnonymous)
}
