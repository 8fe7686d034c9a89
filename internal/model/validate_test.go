package model

import "testing"

func TestValidateSponsor(t *testing.T) {
	tests := []struct {
		name    string
		sponsor Sponsor
		wantErr string
	}{
		{"valid", Sponsor{Name: "Alice", Email: "alice@example.com"}, ""},
		{"missing name", Sponsor{Email: "alice@example.com"}, "name is required"},
		{"missing email", Sponsor{Name: "Alice"}, "email is required"},
		{"bad email", Sponsor{Name: "Alice", Email: "not-an-email"}, "email must be a valid email address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.sponsor)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidEmail(t *testing.T) {
	if !ValidEmail("bob@example.org") {
		t.Error("expected valid")
	}
	for _, s := range []string{"", "bob", "bob@", "@example.org"} {
		if ValidEmail(s) {
			t.Errorf("%q should be invalid", s)
		}
	}
}

func TestSponsorNormalize(t *testing.T) {
	s := Sponsor{Name: "  Alice ", Email: " alice@example.com\n"}.Normalize()
	if s.Name != "Alice" || s.Email != "alice@example.com" {
		t.Errorf("normalize = %+v", s)
	}
}
