package authcheck

// Verdict is the terminal output of the decision engine
type Verdict int

const (
	// OK allows the original request through
	OK Verdict = iota
	// Unauthorized denies the request for lack of an authenticated identity;
	// the proxy turns it into a login redirect
	Unauthorized
	// Forbidden denies the request on permission grounds for an
	// authenticated identity
	Forbidden
)

// String returns the verdict name
func (v Verdict) String() string {
	switch v {
	case OK:
		return "ok"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}
