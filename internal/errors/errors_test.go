package errors

import (
	"errors"
	"testing"
)

func TestError(t *testing.T) {
	err := New(KindUnknownInterface, "Invalid Interface Name")
	if err.Error() != "Invalid Interface Name" {
		t.Errorf("expected 'Invalid Interface Name', got '%s'", err.Error())
	}

	wrapped := Wrap(errors.New("connection refused"), KindUpstreamUnavailable, "router request failed")
	if wrapped.Error() != "router request failed: connection refused" {
		t.Errorf("unexpected message %q", wrapped.Error())
	}
	if Message(wrapped) != "router request failed" {
		t.Errorf("expected bare message, got %q", Message(wrapped))
	}
}

func TestGetKind(t *testing.T) {
	err := New(KindNoDefaultRoute, "no default route")
	if GetKind(err) != KindNoDefaultRoute {
		t.Errorf("expected KindNoDefaultRoute, got %v", GetKind(err))
	}

	wrapped := Wrap(err, KindInternal, "failed")
	if GetKind(wrapped) != KindInternal {
		t.Errorf("expected KindInternal, got %v", GetKind(wrapped))
	}
	if !HasKind(wrapped, KindNoDefaultRoute) {
		t.Error("expected HasKind to find inner kind")
	}

	if GetKind(errors.New("std error")) != KindUnknown {
		t.Errorf("expected KindUnknown, got %v", GetKind(errors.New("std error")))
	}
	if Wrap(nil, KindInternal, "x") != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindUpstreamUnavailable:  "upstream_unavailable",
		KindUnknownInterface:     "unknown_interface",
		KindNoDefaultRoute:       "no_default_route",
		KindPartialSwitchFailure: "partial_switch_failure",
		KindRefreshFailed:        "refresh_failed",
		KindRateLimited:          "rate_limited",
		KindUnknown:              "unknown",
	}
	for k, want := range cases {
		if k.String() != want {
			t.Errorf("%d: expected %s, got %s", k, want, k.String())
		}
	}
}

func TestAttributes(t *testing.T) {
	err := New(KindRefreshFailed, "refresh failed")
	err = Attr(err, "step", "enable")
	err = Attr(err, "interface", "PPPoE-ISP1")

	attrs := GetAttributes(err)
	if attrs["step"] != "enable" {
		t.Errorf("expected enable, got %v", attrs["step"])
	}

	wrapped := Wrap(err, KindInternal, "failed")
	wrapped = Attr(wrapped, "operation", "refresh")

	allAttrs := GetAttributes(wrapped)
	if allAttrs["interface"] != "PPPoE-ISP1" || allAttrs["operation"] != "refresh" {
		t.Errorf("missing attributes: %v", allAttrs)
	}

	plain := Attr(errors.New("boom"), "k", 1)
	if GetKind(plain) != KindInternal {
		t.Errorf("plain errors should become KindInternal, got %v", GetKind(plain))
	}
}
