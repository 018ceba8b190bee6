package delivery

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	connRefused := errors.New("dial tcp 127.0.0.1:80: connect: connection refused")

	tests := []struct {
		name   string
		status int
		err    error
		kind   Kind
		reason Reason
	}{
		{"transport error", 0, connRefused, KindRetriable, ReasonUnknown},
		{"transport error with status ignored", 500, connRefused, KindRetriable, ReasonUnknown},
		{"ok", 200, nil, KindSuccess, ReasonNone},
		{"accepted", 202, nil, KindSuccess, ReasonNone},
		{"informational", 100, nil, KindSuccess, ReasonNone},
		{"edge of success", 299, nil, KindSuccess, ReasonNone},
		{"redirect", 301, nil, KindRetriable, ReasonUnexpectedCode},
		{"redirect upper edge", 399, nil, KindRetriable, ReasonUnexpectedCode},
		{"rate limited", 429, nil, KindRetriable, ReasonServerLimited},
		{"bad request", 400, nil, KindTerminal, ReasonUnexpectedCode},
		{"unauthorized", 401, nil, KindTerminal, ReasonServerRejected},
		{"not found", 404, nil, KindTerminal, ReasonServerRejected},
		{"server error", 500, nil, KindTerminal, ReasonServerRejected},
		{"unavailable", 503, nil, KindTerminal, ReasonServerRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Classify(tt.status, tt.err)
			if out.Kind != tt.kind {
				t.Fatalf("kind = %v, want %v", out.Kind, tt.kind)
			}
			if out.Reason != tt.reason {
				t.Fatalf("reason = %v, want %v", out.Reason, tt.reason)
			}
			if tt.err != nil {
				if out.Err == nil || out.Status != 0 {
					t.Fatalf("transport outcome should carry err and no status: %+v", out)
				}
			} else if out.Status != tt.status {
				t.Fatalf("status = %d, want %d", out.Status, tt.status)
			}
		})
	}
}

func TestOutcomePredicates(t *testing.T) {
	if !Classify(200, nil).Success() {
		t.Fatal("200 should be a success")
	}
	if Classify(200, nil).Retriable() {
		t.Fatal("200 should not be retriable")
	}
	if !Classify(429, nil).Retriable() {
		t.Fatal("429 should be retriable")
	}
	if Classify(503, nil).Retriable() {
		t.Fatal("503 is terminal, not retriable")
	}
}

func TestReasonString(t *testing.T) {
	cases := map[Reason]string{
		ReasonNone:           "none",
		ReasonUnknown:        "unknown",
		ReasonUnexpectedCode: "unexpected_code",
		ReasonServerLimited:  "server_limited",
		ReasonServerRejected: "server_rejected",
		Reason(99):           "reason(99)",
	}
	for r, want := range cases {
		if got := r.String(); got != want {
			t.Fatalf("Reason(%d).String() = %q, want %q", int(r), got, want)
		}
	}
}
