package server

import "fmt"

// Error is a protocol-level error carried inside the result object, the
// way rippled reports method failures.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func errUnknownCommand(method string) *Error {
	return &Error{Code: "unknownCmd", Message: fmt.Sprintf("Unknown method: %s", method)}
}

func errInvalidParams(msg string) *Error {
	return &Error{Code: "invalidParams", Message: msg}
}

func errActMalformed(address string) *Error {
	return &Error{Code: "actMalformed", Message: fmt.Sprintf("Account malformed: %s", address)}
}

func errInternal(msg string) *Error {
	return &Error{Code: "internal", Message: msg}
}
