package model

import "errors"

// Kind classifies an error so callers can branch without matching messages.
type Kind string

const (
	KindInternal     Kind = "internal"
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindExternal     Kind = "external"
	KindDataCorrupt  Kind = "data_corrupt"
)

// Error tags an underlying error with a Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the outermost tagged error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func wrap(k Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Err: err}
}

// Validation tags err as a validation failure.
func Validation(err error) error { return wrap(KindValidation, err) }

// NotFound tags err as a missing or not-owned resource.
func NotFound(err error) error { return wrap(KindNotFound, err) }

// Conflict tags err as a state conflict.
func Conflict(err error) error { return wrap(KindConflict, err) }

// Unauthorized tags err as an authentication failure.
func Unauthorized(err error) error { return wrap(KindUnauthorized, err) }

// External tags err as a failure of a remote service.
func External(err error) error { return wrap(KindExternal, err) }

// DataCorrupt tags err as bad local data.
func DataCorrupt(err error) error { return wrap(KindDataCorrupt, err) }

// Sentinel errors. Each carries a message ID in the i18n bundle of the same name.
var (
	ErrNotFound            = errors.New("not found")
	ErrUnsupportedBoard    = errors.New("unsupported exam board")
	ErrMissingFields       = errors.New("missing required fields")
	ErrInvalidCount        = errors.New("number of questions must be at least 1")
	ErrTooManyQuestions    = errors.New("number of questions exceeds the allowed maximum")
	ErrTopicNotFound       = errors.New("topic not found")
	ErrTopicBoardMismatch  = errors.New("topic does not belong to exam board")
	ErrSubTopicNotFound    = errors.New("subtopic not found")
	ErrSubTopicMismatch    = errors.New("subtopic does not belong to topic")
	ErrSubCategoryNeedsSub = errors.New("subcategory requires a subtopic")
	ErrSubCategoryNotFound = errors.New("subcategory not found")
	ErrSubCategoryMismatch = errors.New("subcategory does not belong to subtopic")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionFinalized    = errors.New("session already submitted")
	ErrNegativeScore       = errors.New("score must not be negative")
	ErrFallbackCorrupt     = errors.New("fallback data corrupt")
	ErrGeneratorResponse   = errors.New("invalid response from question generator")
	ErrMarkerResponse      = errors.New("invalid response from marker")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrPasswordMismatch    = errors.New("passwords do not match")
	ErrPasswordTooShort    = errors.New("password needs to be at least 8 characters")
	ErrEmailTaken          = errors.New("email already registered")
)
