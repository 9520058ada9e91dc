package oauth

import "fmt"

// Result is the terminal outcome of a Flow: exactly one of Success, Failure,
// or Cancel.
type Result interface {
	isResult()
}

// Success carries the granted access token and the account it belongs to.
type Success struct {
	Token  string
	UserID uint64
}

// Failure carries the error code the service redirected with.
type Failure struct {
	Code ErrorCode
}

// Cancel reports that the user (or the caller) abandoned the flow.
type Cancel struct{}

func (Success) isResult() {}
func (Failure) isResult() {}
func (Cancel) isResult()  {}

func (f Failure) Error() string {
	return fmt.Sprintf("oauth: authorization failed: %s", f.Code)
}
