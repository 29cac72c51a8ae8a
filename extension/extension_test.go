package extension

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestMergeConfigurations(t *testing.T) {
	tests := []struct {
		name        string
		yaml, prog  Config
		wantRetries int
		wantCost    int
		wantRoutes  bool
		wantSecret  string
	}{
		{"defaults", Config{}, Config{}, 5, bcrypt.DefaultCost, false, ""},
		{"yaml wins", Config{ReconcileRetries: 2, SessionSecret: "y"}, Config{ReconcileRetries: 9, SessionSecret: "p"}, 2, bcrypt.DefaultCost, false, "y"},
		{"programmatic fills gaps", Config{}, Config{BcryptCost: 4, SessionSecret: "p"}, 5, 4, false, "p"},
		{"bool flags override", Config{}, Config{DisableRoutes: true}, 5, bcrypt.DefaultCost, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeConfigurations(tt.yaml, tt.prog)
			if got.ReconcileRetries != tt.wantRetries {
				t.Errorf("ReconcileRetries = %d, want %d", got.ReconcileRetries, tt.wantRetries)
			}
			if got.BcryptCost != tt.wantCost {
				t.Errorf("BcryptCost = %d, want %d", got.BcryptCost, tt.wantCost)
			}
			if got.DisableRoutes != tt.wantRoutes {
				t.Errorf("DisableRoutes = %v, want %v", got.DisableRoutes, tt.wantRoutes)
			}
			if got.SessionSecret != tt.wantSecret {
				t.Errorf("SessionSecret = %q, want %q", got.SessionSecret, tt.wantSecret)
			}
		})
	}
}

func TestBuildRequiresSessionSecret(t *testing.T) {
	e := New(WithConfig(Config{}))
	if err := e.build(); err == nil {
		t.Fatal("expected error without a session secret")
	}

	e = New(WithDisableRoutes())
	if err := e.build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	if e.Tracker() == nil || e.Server() != nil {
		t.Fatal("expected tracker only when routes are disabled")
	}

	e = New(WithSessionSecret("s3cret"))
	if err := e.build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	if e.Server() == nil {
		t.Fatal("expected API server")
	}
}
