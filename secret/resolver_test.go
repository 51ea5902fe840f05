package secret

import (
	"context"
	"errors"
	"testing"
)

type stubProvider struct {
	name   string
	values map[string]string
	err    error
	closed bool
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Resolve(_ context.Context, ref string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.values[ref], nil
}

func (s *stubProvider) Close() error {
	s.closed = true
	return nil
}

func TestParseSecretRef(t *testing.T) {
	tests := []struct {
		in       string
		provider string
		ref      string
		ok       bool
	}{
		{in: "secretref:env:TOKEN", provider: "env", ref: "TOKEN", ok: true},
		{in: "secretref:file:/run/secrets/a:b", provider: "file", ref: "/run/secrets/a:b", ok: true},
		{in: "secretref:env:", ok: false},
		{in: "secretref::x", ok: false},
		{in: "plain", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			provider, ref, ok := ParseSecretRef(tt.in)
			if ok != tt.ok || provider != tt.provider || ref != tt.ref {
				t.Errorf("ParseSecretRef() = %q, %q, %v", provider, ref, ok)
			}
		})
	}
}

func TestResolver_ResolveValue(t *testing.T) {
	t.Setenv("BG_RES_PROVIDER", "stub")
	r := NewResolver(true, &stubProvider{name: "stub", values: map[string]string{"a": "one", "b": "two", "empty": ""}})

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{name: "plain", in: "hello", want: "hello"},
		{name: "full ref", in: "secretref:stub:a", want: "one"},
		{name: "inline refs", in: "Bearer secretref:stub:a and secretref:stub:b", want: "Bearer one and two"},
		{name: "env then ref", in: "secretref:${BG_RES_PROVIDER}:b", want: "two"},
		{name: "strict empty", in: "secretref:stub:empty", wantErr: ErrEmptyValue},
		{name: "unknown provider", in: "secretref:vault:a", wantErr: ErrProviderNotFound},
		{name: "missing env", in: "${BG_RES_UNSET}", wantErr: ErrMissingEnv},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveValue(context.Background(), tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("ResolveValue() = %q, %v, want %q", got, err, tt.want)
			}
		})
	}
}

func TestResolver_NilOnlyExpandsEnv(t *testing.T) {
	t.Setenv("BG_RES_X", "x")
	var r *Resolver
	got, err := r.ResolveValue(context.Background(), "${BG_RES_X} secretref:env:Y")
	if err != nil || got != "x secretref:env:Y" {
		t.Fatalf("ResolveValue() = %q, %v", got, err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestResolver_ResolveSliceAndInto(t *testing.T) {
	stub := &stubProvider{name: "stub", values: map[string]string{"a": "one"}}
	r := NewResolver(false, stub)

	got, err := r.ResolveSlice(context.Background(), []string{"x", "secretref:stub:a"})
	if err != nil || got[0] != "x" || got[1] != "one" {
		t.Fatalf("ResolveSlice() = %v, %v", got, err)
	}

	token, empty := "secretref:stub:a", ""
	if err := r.ResolveInto(context.Background(), map[string]*string{"token": &token, "empty": &empty, "nil": nil}); err != nil {
		t.Fatalf("ResolveInto() error = %v", err)
	}
	if token != "one" {
		t.Errorf("token = %q", token)
	}

	if err := r.Close(); err != nil || !stub.closed {
		t.Errorf("Close() = %v, closed = %v", err, stub.closed)
	}
}

func TestResolver_ProviderErrorPropagates(t *testing.T) {
	boom := errors.New("explode")
	r := NewResolver(false, &stubProvider{name: "stub", err: boom})

	if _, err := r.ResolveValue(context.Background(), "secretref:stub:x"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if _, err := r.ResolveSlice(context.Background(), []string{"secretref:stub:x"}); !errors.Is(err, boom) {
		t.Errorf("slice err = %v, want %v", err, boom)
	}
}
