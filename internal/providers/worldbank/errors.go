package worldbank

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Kind int

const (
	KindNetwork Kind = iota + 1
	KindHTTP
	KindMalformedResponse
	KindPageCapExceeded
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindMalformedResponse:
		return "malformed response"
	case KindPageCapExceeded:
		return "page cap exceeded"
	case KindInvalidInput:
		return "invalid input"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is; every *FetchError matches the sentinel of its Kind.
var (
	ErrNetwork           = errors.New("worldbank: network error")
	ErrHTTP              = errors.New("worldbank: http error")
	ErrMalformedResponse = errors.New("worldbank: malformed response")
	ErrPageCapExceeded   = errors.New("worldbank: page cap exceeded")
	ErrInvalidInput      = errors.New("worldbank: invalid input")
)

// FetchError carries enough context to locate a failure without re-running
// the request: the stage ("data" or "units"), indicator, countries and page.
type FetchError struct {
	Kind      Kind
	Status    int
	Message   string
	Stage     string
	Indicator string
	Countries string
	Page      int
	Err       error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString("worldbank: ")
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d %s)", e.Status, http.StatusText(e.Status))
	}

	details := make([]string, 0, 4)
	if e.Stage != "" {
		details = append(details, "stage="+e.Stage)
	}
	if e.Indicator != "" {
		details = append(details, "indicator="+e.Indicator)
	}
	if e.Countries != "" {
		details = append(details, "countries="+e.Countries)
	}
	if e.Page > 0 {
		details = append(details, fmt.Sprintf("page=%d", e.Page))
	}
	if len(details) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(details, " "))
		b.WriteString("]")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrHTTP:
		return e.Kind == KindHTTP
	case ErrMalformedResponse:
		return e.Kind == KindMalformedResponse
	case ErrPageCapExceeded:
		return e.Kind == KindPageCapExceeded
	case ErrInvalidInput:
		return e.Kind == KindInvalidInput
	default:
		return false
	}
}

// Transient reports whether a retry may succeed: transport failures
// (timeouts included), 5xx responses and 429.
func (e *FetchError) Transient() bool {
	switch e.Kind {
	case KindNetwork:
		return true
	case KindHTTP:
		return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
	default:
		return false
	}
}

func invalidInput(format string, args ...any) *FetchError {
	return &FetchError{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// target identifies the request an error belongs to.
type target struct {
	stage     string
	indicator string
	countries string
	page      int
}

func (t target) fail(kind Kind, status int, message string, err error) *FetchError {
	return &FetchError{
		Kind:      kind,
		Status:    status,
		Message:   message,
		Stage:     t.stage,
		Indicator: t.indicator,
		Countries: t.countries,
		Page:      t.page,
		Err:       err,
	}
}
