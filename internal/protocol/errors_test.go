package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrNotFound,
		ErrNoPermission,
		ErrRateLimit,
		ErrConflict,
		ErrInternal,
		ReasonQueueActive,
		ReasonPrerequisitesNotMet,
		ReasonLabLevelInsufficient,
		ReasonShipyardLevelInsufficient,
		ReasonInsufficientResources,
		ReasonInvalidQuantity,
		ReasonInvalidBuilding,
		ReasonInvalidTech,
		ReasonInvalidShip,
		ReasonNoActiveQueue,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[string]int{
		"":                          200,
		ReasonQueueActive:           409,
		ReasonInsufficientResources: 400,
		ReasonLabLevelInsufficient:  400,
		ErrNotFound:                 404,
		ReasonNoActiveQueue:         404,
		ErrRateLimit:                429,
		ErrInternal:                 500,
	}
	for code, want := range cases {
		if got := HTTPStatus(code); got != want {
			t.Fatalf("HTTPStatus(%q)=%d want %d", code, got, want)
		}
	}
}
