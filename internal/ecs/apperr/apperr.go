// Package apperr 도메인 오류 분류
package apperr

import (
	"errors"
	"net/http"
)

// Kind 오류 종류
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindIncompatibleBatch
	KindAlreadyComplete
	KindAuthorization
	KindConflict
	KindUpstreamUnavailable
	KindState
	KindNotFound
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindValidation:          "validation",
	KindIncompatibleBatch:   "incompatible_batch",
	KindAlreadyComplete:     "already_complete",
	KindAuthorization:       "authorization",
	KindConflict:            "conflict",
	KindUpstreamUnavailable: "upstream_unavailable",
	KindState:               "state",
	KindNotFound:            "not_found",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error 사용자에게 노출 가능한 메시지를 가진 도메인 오류
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is kind만 비교한다. errors.Is(err, apperr.ErrAuthorization) 형태로 사용
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// kind 비교용 sentinel
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrIncompatibleBatch   = &Error{Kind: KindIncompatibleBatch}
	ErrAlreadyComplete     = &Error{Kind: KindAlreadyComplete}
	ErrAuthorization       = &Error{Kind: KindAuthorization}
	ErrConflict            = &Error{Kind: KindConflict}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}
	ErrState               = &Error{Kind: KindState}
	ErrNotFound            = &Error{Kind: KindNotFound}
)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error    { return New(KindValidation, message) }
func Authorization(message string) *Error { return New(KindAuthorization, message) }
func Conflict(message string) *Error      { return New(KindConflict, message) }
func State(message string) *Error         { return New(KindState, message) }
func NotFound(message string) *Error      { return New(KindNotFound, message) }

// Upstream 원격 서비스 오류. message는 사용자에게 그대로 보여줄 수 있어야 한다
func Upstream(message string, err error) *Error {
	return Wrap(KindUpstreamUnavailable, message, err)
}

// KindOf err 체인에서 첫 번째 도메인 오류의 kind를 찾는다
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf 사용자 메시지, 도메인 오류가 아니면 fallback
func MessageOf(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}

// HTTPStatus kind별 HTTP 상태코드
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindIncompatibleBatch, KindAlreadyComplete, KindState:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// FromHTTPStatus 원격 응답 상태코드를 kind로 되돌린다
func FromHTTPStatus(status int) Kind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuthorization
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	default:
		return KindUpstreamUnavailable
	}
}

// 응답 envelope의 code 값. 상위 3자리는 HTTP 상태코드
var kindCodes = map[Kind]int{
	KindValidation:          40000,
	KindIncompatibleBatch:   40001,
	KindAlreadyComplete:     40002,
	KindState:               40003,
	KindAuthorization:       40300,
	KindNotFound:            40400,
	KindConflict:            40900,
	KindUpstreamUnavailable: 50200,
}

// Code kind에 대응하는 envelope code
func Code(kind Kind) int {
	if code, ok := kindCodes[kind]; ok {
		return code
	}
	return 50000
}

// KindFromCode envelope code로부터 kind 복원. 모르는 code는 HTTP 상태로 판단
func KindFromCode(code int) Kind {
	for kind, c := range kindCodes {
		if c == code {
			return kind
		}
	}
	return FromHTTPStatus(code / 100)
}
