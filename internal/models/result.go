package models

// ResultStatus is the outcome reported back to the invocation transport.
type ResultStatus string

const (
	StatusOK    ResultStatus = "OK"
	StatusError ResultStatus = "ERROR"

	SkipResult = "Skip"
)

func (s ResultStatus) String() string {
	return string(s)
}

// CallbackResult is the only value the initializer ever returns to its caller.
// Results is set on OK; Err and Message are set on ERROR.
type CallbackResult struct {
	Status  ResultStatus `json:"status"`
	Results string       `json:"results,omitempty"`
	Err     *ResultError `json:"err,omitempty"`
	Message string       `json:"message,omitempty"`
}

type ResultError struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func NewOKResult(results string) CallbackResult {
	return CallbackResult{Status: StatusOK, Results: results}
}

func NewSkipResult() CallbackResult {
	return NewOKResult(SkipResult)
}

// NewErrorResult builds an ERROR result. detail is a short machine-readable kind.
func NewErrorResult(err error, detail, message string) CallbackResult {
	msg := message
	if err != nil {
		msg = err.Error()
	}
	return CallbackResult{
		Status:  StatusError,
		Err:     &ResultError{Message: msg, Detail: detail},
		Message: message,
	}
}

func (r CallbackResult) IsOK() bool {
	return r.Status == StatusOK
}

func (r CallbackResult) IsSkip() bool {
	return r.Status == StatusOK && r.Results == SkipResult
}
