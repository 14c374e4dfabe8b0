package livetail

import (
	"crypto/tls"
	"net/http"
	"testing"
)

func TestEnforceTLS13_NilConfigGetsDefaults(t *testing.T) {
	cfg := enforceTLS13(nil)

	if cfg.MinVersion != tls.VersionTLS13 {
		t.Fatalf("expected MinVersion TLS 1.3, got %d", cfg.MinVersion)
	}

	if len(cfg.NextProtos) == 0 || cfg.NextProtos[0] != "h3" {
		t.Fatalf("expected NextProtos to include h3, got %v", cfg.NextProtos)
	}
}

func TestEnforceTLS13_UpgradesOlderMinVersion(t *testing.T) {
	cfg := enforceTLS13(&tls.Config{MinVersion: tls.VersionTLS12})

	if cfg.MinVersion != tls.VersionTLS13 {
		t.Fatalf("expected MinVersion upgraded to TLS 1.3, got %d", cfg.MinVersion)
	}
}

func TestEnforceTLS13_LeavesAlreadyCompliantConfigUntouched(t *testing.T) {
	in := &tls.Config{MinVersion: tls.VersionTLS13, NextProtos: []string{"h3"}}

	out := enforceTLS13(in)
	if out != in {
		t.Fatalf("expected an already-compliant config to be returned unchanged")
	}
}

func TestNew_BuildsServerWithoutStarting(t *testing.T) {
	h := http.NewServeMux()

	s := New("127.0.0.1:0", nil, h, Options{})
	if s == nil {
		t.Fatalf("expected New to return a non-nil Server")
	}

	select {
	case err := <-s.Error():
		t.Fatalf("expected no error channel activity before Start, got %v", err)
	default:
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("expected Stop on an unstarted server to be a no-op, got %v", err)
	}
}
