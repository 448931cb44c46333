package core

import (
	"github.com/rikardbq/serf/internal/serfproto"
)

// Default error messages surfaced to clients.
const (
	MsgUndefined        = "Undefined server error"
	MsgUserNotExist     = "User doesn't exist"
	MsgUserNotAllowed   = "User privilege too low"
	MsgHeaderMissing    = "Request is missing a required header"
	MsgHeaderMalformed  = "Request header value is malformed"
	MsgResourceNotExist = "Database does not exist"
)

// Error is the wire-facing error taxonomy: a message plus a source kind that
// converts 1:1 into the envelope's ServerError.
type Error struct {
	Message string
	Source  serfproto.ErrorSource
}

func (e *Error) Error() string {
	return e.Message
}

// Proto converts the error into its wire representation.
func (e *Error) Proto() *serfproto.ServerError {
	return &serfproto.ServerError{
		Source:  e.Source,
		Message: e.Message,
	}
}

func NewError(source serfproto.ErrorSource, message string) *Error {
	return &Error{Message: message, Source: source}
}

func UndefinedError() *Error {
	return NewError(serfproto.ErrorSourceUndefined, MsgUndefined)
}

// DatabaseError carries the engine's message verbatim.
func DatabaseError(message string) *Error {
	return NewError(serfproto.ErrorSourceDatabase, message)
}

func UserNotExistError() *Error {
	return NewError(serfproto.ErrorSourceUserNotExist, MsgUserNotExist)
}

func UserNotAllowedError() *Error {
	return NewError(serfproto.ErrorSourceUserNotAllowed, MsgUserNotAllowed)
}

func HeaderMissingError() *Error {
	return NewError(serfproto.ErrorSourceHeaderMissing, MsgHeaderMissing)
}

func HeaderMalformedError() *Error {
	return NewError(serfproto.ErrorSourceHeaderMalformed, MsgHeaderMalformed)
}

func ResourceNotExistError() *Error {
	return NewError(serfproto.ErrorSourceResourceNotExist, MsgResourceNotExist)
}

func ProtoPackageError(message string) *Error {
	return NewError(serfproto.ErrorSourceProtoPackage, message)
}
