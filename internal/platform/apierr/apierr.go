package apierr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Kind classifies a failure independently of the HTTP status it maps to.
type Kind int

const (
	KindUnknown Kind = iota
	// KindTransport covers unreachable AI services and non-2xx replies.
	KindTransport
	// KindValidation covers malformed AI responses and bad request input.
	KindValidation
	// KindDuplicateKey is a unique-constraint violation. Expected in two
	// places: achievement grants (idempotent no-op) and question inserts
	// (user-facing rejection).
	KindDuplicateKey
	// KindPersistence is any other database failure.
	KindPersistence
)

type Error struct {
	Status int
	Code   string
	Kind   Kind
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Transport(code string, err error) *Error {
	return &Error{Status: 502, Code: code, Kind: KindTransport, Err: err}
}

func Validation(code string, err error) *Error {
	return &Error{Status: 400, Code: code, Kind: KindValidation, Err: err}
}

func Persistence(code string, err error) *Error {
	kind := KindPersistence
	if IsDuplicateKey(err) {
		kind = KindDuplicateKey
	}
	return &Error{Status: 500, Code: code, Kind: kind, Err: err}
}

// IsDuplicateKey reports whether err is a unique-constraint violation.
// gorm translates driver errors when TranslateError is on; the pgconn check
// catches raw pgx errors that bypass the translation (SQLSTATE 23505).
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindDuplicateKey
}

// KindOf walks the error chain for a tagged *Error and returns its Kind.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	if IsDuplicateKey(err) {
		return KindDuplicateKey
	}
	return KindUnknown
}
