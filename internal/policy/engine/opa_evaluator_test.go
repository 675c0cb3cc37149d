package engine

import (
	"context"
	"testing"
)

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	e, err := NewOPAEvaluator(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOPAEvaluator_DefaultPolicy(t *testing.T) {
	ctx := context.Background()
	e, err := NewOPAEvaluator(ctx, nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	tests := []struct {
		name string
		in   Input
		want bool
	}{
		{"admin on admin route", Input{Role: "ADMIN", Method: "GET", Path: "/api/admin/users/u1/sessions"}, true},
		{"user on admin route", Input{Role: "USER", Method: "GET", Path: "/api/admin/users/u1/sessions"}, false},
		{"user on own sessions", Input{Role: "USER", Method: "GET", Path: "/api/auth/sessions"}, true},
		{"admin on user route", Input{Role: "ADMIN", Method: "POST", Path: "/api/auth/logout"}, true},
		{"missing role", Input{Method: "GET", Path: "/api/auth/sessions"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Authorize(ctx, tt.in)
			if err != nil {
				t.Fatalf("Authorize: %v", err)
			}
			if got != tt.want {
				t.Errorf("Authorize(%+v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestOPAEvaluator_CustomModules(t *testing.T) {
	ctx := context.Background()
	readOnly := `package fieldbook.access

default allow := false

allow if input.method == "GET"
`
	e, err := NewOPAEvaluator(ctx, map[string]string{"readonly.rego": readOnly})
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	if ok, _ := e.Authorize(ctx, Input{Role: "ADMIN", Method: "DELETE", Path: "/api/auth/sessions/x"}); ok {
		t.Error("DELETE should be denied by custom policy")
	}
	if ok, _ := e.Authorize(ctx, Input{Role: "USER", Method: "GET", Path: "/api/admin/users/u1/sessions"}); !ok {
		t.Error("GET should be allowed by custom policy")
	}
}

func TestOPAEvaluator_UndefinedRuleDenies(t *testing.T) {
	ctx := context.Background()
	e, err := NewOPAEvaluator(ctx, map[string]string{"other.rego": "package fieldbook.other\n\nx := 1\n"})
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	ok, err := e.Authorize(ctx, Input{Role: "ADMIN", Path: "/api/auth/sessions"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if ok {
		t.Error("undefined allow must deny")
	}
}

func TestNewOPAEvaluator_InvalidRego(t *testing.T) {
	if _, err := NewOPAEvaluator(context.Background(), map[string]string{"bad.rego": "package x\nallow if {"}); err == nil {
		t.Fatal("expected compile error")
	}
}
