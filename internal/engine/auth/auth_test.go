package auth

import (
	"errors"
	"testing"

	"civicdesk/internal/config"
)

func TestPolicyPermissions(t *testing.T) {
	p := NewPolicy(config.Default())
	perms := p.Permissions([]string{"citizen"})
	if err := Require(perms, PermGrievanceCreate); err != nil {
		t.Fatalf("citizen should create grievances: %v", err)
	}
	err := Require(perms, PermFileMove)
	var fe ForbiddenError
	if !errors.As(err, &fe) || fe.Permission != PermFileMove {
		t.Fatalf("expected forbidden file.move, got %v", err)
	}
	if !p.KnownRole("justice") || p.KnownRole("ghost") {
		t.Fatalf("unexpected role lookup")
	}
	if got := p.Permissions([]string{"ghost"}); len(got) != 0 {
		t.Fatalf("unknown role should grant nothing, got %v", got)
	}
}
