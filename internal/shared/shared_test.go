package shared

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestParseDay(t *testing.T) {
	tc := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain date", input: "2024-03-09", want: "2024-03-09"},
		{name: "surrounding whitespace", input: "  2024-03-09 ", want: "2024-03-09"},
		{name: "wrong format", input: "03/09/2024", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDay(tt.input, nil)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if FormatDay(got) != tt.want {
				t.Errorf("ParseDay() = %v, want %v", FormatDay(got), tt.want)
			}
		})
	}
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("test", 2*3600)
	in := time.Date(2024, 5, 1, 17, 45, 3, 99, loc)
	got := StartOfDay(in)

	if got.Hour() != 0 || got.Minute() != 0 || got.Second() != 0 || got.Nanosecond() != 0 {
		t.Errorf("expected midnight, got %v", got)
	}
	if got.Location() != loc {
		t.Error("expected location to be preserved")
	}
}

func TestLoadLocation(t *testing.T) {
	if LoadLocation("") != time.UTC {
		t.Error("empty name should map to UTC")
	}
	if LoadLocation("Not/AZone") != time.UTC {
		t.Error("unknown name should map to UTC")
	}
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := GenerateState()

	if a == b {
		t.Error("expected distinct state tokens")
	}
	if strings.ContainsAny(a, "+/=") {
		t.Errorf("state should be URL safe, got %s", a)
	}
}

func TestHTTPStatus(t *testing.T) {
	tc := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("%w: bad day", ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("%w: google", ErrTokenExpired), http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("wrapped: %w", ErrNotFound), http.StatusNotFound},
		{ErrAPIRequest, http.StatusBadGateway},
		{ErrTimeout, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tc {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	t.Run("Input Errors Keep Detail", func(t *testing.T) {
		err := fmt.Errorf("%w: cycle length 90 out of range", ErrInvalidInput)
		if got := UserMessage(err); !strings.Contains(got, "cycle length 90") {
			t.Errorf("expected detail in message, got %q", got)
		}
	})

	t.Run("Upstream Errors Are Generic", func(t *testing.T) {
		err := fmt.Errorf("%w: status 500 body: secret", ErrAPIRequest)
		if got := UserMessage(err); strings.Contains(got, "secret") {
			t.Errorf("upstream body leaked into message: %q", got)
		}
	})
}
