package bridge

import "github.com/samvad-hq/httpbridge/internal/domain"

// Code is the status every bridge call returns. Zero is success; failures
// are negative so they never collide with byte counts.
type Code int32

const (
	OK                  Code = 0
	CodeInvalidArgument Code = -1
	CodeTransport       Code = -2
	CodeTimeout         Code = -3
	CodeNotFound        Code = -4
	CodeAlreadyShutdown Code = -5
	CodeInternal        Code = -6
)

// CodeOf maps an engine error to its code. A nil error is OK.
func CodeOf(err error) Code {
	switch domain.KindOf(err) {
	case 0:
		return OK
	case domain.KindInvalidArgument:
		return CodeInvalidArgument
	case domain.KindTransport:
		return CodeTransport
	case domain.KindTimeout:
		return CodeTimeout
	case domain.KindNotFound:
		return CodeNotFound
	case domain.KindAlreadyShutdown:
		return CodeAlreadyShutdown
	default:
		return CodeInternal
	}
}

func (c Code) String() string {
	switch c {
	case OK:
		return "ok"
	case CodeInvalidArgument:
		return domain.KindInvalidArgument.String()
	case CodeTransport:
		return domain.KindTransport.String()
	case CodeTimeout:
		return domain.KindTimeout.String()
	case CodeNotFound:
		return domain.KindNotFound.String()
	case CodeAlreadyShutdown:
		return domain.KindAlreadyShutdown.String()
	default:
		return domain.KindInternal.String()
	}
}
