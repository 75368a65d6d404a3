package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFromPassesThroughTaxonomyErrors(t *testing.T) {
	err := NewForbidden("nope")
	appErr := From(err)
	if appErr.Code != CodeForbidden || appErr.HTTPStatus != http.StatusForbidden {
		t.Errorf("unexpected conversion: %+v", appErr)
	}

	wrapped := fmt.Errorf("handler: %w", err)
	if From(wrapped).Code != CodeForbidden {
		t.Error("From should unwrap to the taxonomy error")
	}
}

func TestFromWrapsUnknownCauses(t *testing.T) {
	cause := errors.New("disk on fire")
	appErr := From(cause)
	if appErr.Code != CodeInternal || appErr.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("unexpected conversion: %+v", appErr)
	}
	if !errors.Is(appErr, cause) {
		t.Error("the original cause must remain reachable")
	}
}

func TestIsCodeHelpers(t *testing.T) {
	notFound := NewNotFound("request", map[string]any{"id": "r1"})
	if !IsNotFound(notFound) {
		t.Error("IsNotFound on a NOT_FOUND error")
	}
	if IsNetworkFailure(notFound) {
		t.Error("NOT_FOUND must never read as NETWORK_FAILURE")
	}

	network := NewNetworkFailure("dial failed", errors.New("refused"))
	if !IsNetworkFailure(network) {
		t.Error("IsNetworkFailure on a NETWORK_FAILURE error")
	}
	if IsNotFound(network) {
		t.Error("NETWORK_FAILURE must never read as NOT_FOUND")
	}

	if IsCode(errors.New("plain"), CodeInternal) {
		t.Error("plain errors carry no code")
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := NewInternal(errors.New("boom"))
	if got := err.Error(); got != "internal error: boom" {
		t.Errorf("unexpected message %q", got)
	}
	if got := NewForbidden("admin only").Error(); got != "admin only" {
		t.Errorf("unexpected message %q", got)
	}
}
