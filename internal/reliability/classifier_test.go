package reliability

import (
	"testing"
	"time"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		if !IsRetryableHTTPStatus(code) {
			t.Fatalf("status %d should be retryable", code)
		}
	}
	for _, code := range []int{200, 201, 400, 401, 404} {
		if IsRetryableHTTPStatus(code) {
			t.Fatalf("status %d should not be retryable", code)
		}
	}
}

func TestIsAuthExpiredHTTPStatus(t *testing.T) {
	if !IsAuthExpiredHTTPStatus(401) {
		t.Fatalf("401 should classify as auth expired")
	}
	if IsAuthExpiredHTTPStatus(403) {
		t.Fatalf("403 should not classify as auth expired")
	}
}

func TestExponentialBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	cap := time.Second

	if got := ExponentialBackoff(0, base, cap); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := ExponentialBackoff(2, base, cap); got != 400*time.Millisecond {
		t.Fatalf("attempt 2 = %v, want 400ms", got)
	}
	if got := ExponentialBackoff(10, base, cap); got != cap {
		t.Fatalf("attempt 10 = %v, want cap %v", got, cap)
	}
}
