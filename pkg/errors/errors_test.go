package errors

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		httpStatus int
		code       int
		subcode    int
		want       ErrorType
	}{
		{"http 429", 429, 0, 0, ErrorTypeRateLimit},
		{"app request limit", 400, 4, 0, ErrorTypeRateLimit},
		{"user request limit", 400, 17, 0, ErrorTypeRateLimit},
		{"page request limit", 400, 32, 0, ErrorTypeRateLimit},
		{"custom throttle", 400, 613, 0, ErrorTypeRateLimit},
		{"expired token", 400, 190, 0, ErrorTypeAuth},
		{"missing permission", 400, 10, 0, ErrorTypePermission},
		{"insights unsupported", 400, 100, 33, ErrorTypeUnavailable},
		{"not found", 404, 0, 0, ErrorTypeNotFound},
		{"server error", 500, 0, 0, ErrorTypeServerError},
		{"unknown 4xx", 400, 999, 0, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		if got := Classify(tt.httpStatus, tt.code, tt.subcode); got != tt.want {
			t.Errorf("%s: Classify(%d, %d, %d) = %s, want %s",
				tt.name, tt.httpStatus, tt.code, tt.subcode, got, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := []ErrorType{ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError}
	for _, et := range retryable {
		if !IsRetryable(et) {
			t.Errorf("expected %s to be retryable", et)
		}
	}

	permanent := []ErrorType{ErrorTypeAuth, ErrorTypePermission, ErrorTypeNotFound, ErrorTypeUnavailable, ErrorTypeParsing}
	for _, et := range permanent {
		if IsRetryable(et) {
			t.Errorf("expected %s to not be retryable", et)
		}
	}
}

func TestIsUnavailable(t *testing.T) {
	if !IsUnavailable(&Error{Type: ErrorTypeUnavailable}) {
		t.Error("unavailable type should be unavailable")
	}
	if !IsUnavailable(&Error{Type: ErrorTypeUnknown, Code: 100, Subcode: 33}) {
		t.Error("subcode 33 should be unavailable")
	}
	if IsUnavailable(&Error{Type: ErrorTypeServerError, Code: 1}) {
		t.Error("server error should not be unavailable")
	}
	if IsUnavailable(nil) {
		t.Error("nil should not be unavailable")
	}
}

func TestErrorString(t *testing.T) {
	e := &Error{Type: ErrorTypeRateLimit, Message: "limit reached", Code: 4}
	want := "rate_limit error (code 4): limit reached"
	if e.Error() != want {
		t.Errorf("got %q, want %q", e.Error(), want)
	}

	e = &Error{Type: ErrorTypeUnavailable, Message: "no insights", Code: 100, Subcode: 33}
	want = "unavailable error (code 100, subcode 33): no insights"
	if e.Error() != want {
		t.Errorf("got %q, want %q", e.Error(), want)
	}
}
