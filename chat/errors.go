package chat

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies a turn failure.
type Kind int

const (
	// KindClient is malformed input or a misused method. Never retried.
	KindClient Kind = iota + 1
	// KindQuota means the daily cap is spent.
	KindQuota
	// KindUpstream is a store, context or inference fault.
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindClient:
		return "client"
	case KindQuota:
		return "quota"
	case KindUpstream:
		return "upstream"
	}
	return "unknown"
}

// Error is returned by Service operations. Message is the stable English
// text; Localized, when set, is the Vietnamese text shown to end users.
type Error struct {
	Kind      Kind
	Code      int
	Message   string
	Localized string
	// ResetAt is set on quota errors to the next UTC midnight.
	ResetAt time.Time
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

const (
	msgRequired         = "Message is required"
	msgRequiredVI       = "Vui lòng nhập câu hỏi của bạn."
	msgTooLong          = "Message too long"
	msgTooLongVI        = "Câu hỏi của bạn quá dài. Vui lòng giới hạn trong %d ký tự."
	msgRateLimited      = "Rate limit exceeded"
	msgRateLimitedVI    = "Bạn đã vượt quá giới hạn %d câu hỏi mỗi ngày. Vui lòng thử lại vào ngày mai."
	msgInternal         = "Internal server error"
	msgMethodNotAllow   = "Method not allowed"
	msgMethodNotAllowVI = "Phương thức không được hỗ trợ."
)

func errMessageRequired() *Error {
	return &Error{
		Kind:      KindClient,
		Code:      http.StatusBadRequest,
		Message:   msgRequired,
		Localized: msgRequiredVI,
	}
}

func errMessageTooLong(limit int) *Error {
	return &Error{
		Kind:      KindClient,
		Code:      http.StatusBadRequest,
		Message:   msgTooLong,
		Localized: fmt.Sprintf(msgTooLongVI, limit),
	}
}

func errRateLimited(dailyCap int, resetAt time.Time) *Error {
	return &Error{
		Kind:      KindQuota,
		Code:      http.StatusTooManyRequests,
		Message:   msgRateLimited,
		Localized: fmt.Sprintf(msgRateLimitedVI, dailyCap),
		ResetAt:   resetAt,
	}
}

func errUpstream(err error) *Error {
	return &Error{Kind: KindUpstream, Code: http.StatusInternalServerError, Message: msgInternal, Err: err}
}

// ErrMethodNotAllowed is the client error for an unsupported method.
func ErrMethodNotAllowed() *Error {
	return &Error{
		Kind:      KindClient,
		Code:      http.StatusMethodNotAllowed,
		Message:   msgMethodNotAllow,
		Localized: msgMethodNotAllowVI,
	}
}
