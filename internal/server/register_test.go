package server

import "testing"

func TestValidateEmail(t *testing.T) {
	valid := []string{"a@b.co", "user.name+tag@example.org", "x_1@sub.domain.io"}
	for _, e := range valid {
		if !validateEmail(e) {
			t.Errorf("expected %q to be valid", e)
		}
	}
	invalid := []string{"", "plainaddress", "@no-local.com", "user@", "user@host", "user @host.com"}
	for _, e := range invalid {
		if validateEmail(e) {
			t.Errorf("expected %q to be invalid", e)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		password string
		ok       bool
	}{
		{"short1", false},
		{"onlyletters", false},
		{"12345678", false},
		{"letters9", true},
		{"A1b2c3d4", true},
	}
	for _, c := range cases {
		ok, msg := validatePassword(c.password)
		if ok != c.ok {
			t.Errorf("validatePassword(%q) = %v (%s), want %v", c.password, ok, msg, c.ok)
		}
	}

	long := make([]byte, 129)
	for i := range long {
		long[i] = 'a'
	}
	long[0] = '1'
	if ok, _ := validatePassword(string(long)); ok {
		t.Fatalf("expected over-long password to be rejected")
	}
}

func TestValidateUsername(t *testing.T) {
	cases := []struct {
		username string
		ok       bool
	}{
		{"ab", false},
		{"bob", true},
		{"user_42", true},
		{"with space", false},
		{"dash-ed", false},
		{"name@host", false},
	}
	for _, c := range cases {
		ok, msg := validateUsername(c.username)
		if ok != c.ok {
			t.Errorf("validateUsername(%q) = %v (%s), want %v", c.username, ok, msg, c.ok)
		}
	}
}

func TestHashPasswordRoundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("bcrypt cost 12 is slow")
	}
	hash, err := hashPassword("correct horse 1")
	if err != nil {
		t.Fatalf("hashPassword error: %v", err)
	}
	if hash == "correct horse 1" {
		t.Fatalf("hash equals plaintext")
	}
}
