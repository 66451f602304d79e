package server

import (
	"database/sql"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// validateEmail checks if an email address is valid
func validateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// validatePassword checks password strength requirements
func validatePassword(password string) (bool, string) {
	if len(password) < 8 {
		return false, "Password must be at least 8 characters long"
	}
	if len(password) > 128 {
		return false, "Password must be less than 128 characters"
	}
	hasNumber := regexp.MustCompile(`[0-9]`).MatchString(password)
	hasLetter := regexp.MustCompile(`[a-zA-Z]`).MatchString(password)
	if !hasNumber || !hasLetter {
		return false, "Password must contain both letters and numbers"
	}
	return true, ""
}

// validateUsername checks username requirements
func validateUsername(username string) (bool, string) {
	if len(username) < 3 {
		return false, "Username must be at least 3 characters long"
	}
	if len(username) > 50 {
		return false, "Username must be less than 50 characters"
	}
	if !regexp.MustCompile(`^[a-zA-Z0-9_]+$`).MatchString(username) {
		return false, "Username can only contain letters, numbers, and underscores"
	}
	return true, ""
}

// hashPassword generates a bcrypt hash of the password
func hashPassword(password string) (string, error) {
	// bcrypt cost of 12 is a good balance of security and performance
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *Server) registerPageHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "register.html", nil)
}

// registerHandler creates a new account from a form post and redirects to
// the login page on success.
func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("username"))
	email := strings.TrimSpace(strings.ToLower(r.FormValue("email")))
	password := strings.TrimSpace(r.FormValue("password"))

	if !validateEmail(email) {
		s.flash(w, r, flashError, "Invalid email address")
		http.Redirect(w, r, "/register", http.StatusSeeOther)
		return
	}
	if ok, msg := validateUsername(username); !ok {
		s.flash(w, r, flashError, msg)
		http.Redirect(w, r, "/register", http.StatusSeeOther)
		return
	}
	if ok, msg := validatePassword(password); !ok {
		s.flash(w, r, flashError, msg)
		http.Redirect(w, r, "/register", http.StatusSeeOther)
		return
	}

	var exists bool
	err := s.cfg.DB.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 OR username = $2)`,
		email, username,
	).Scan(&exists)
	if err != nil {
		Error("register_check_failed", nil, err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	if exists {
		s.flash(w, r, flashError, "Username or email already exists")
		http.Redirect(w, r, "/register", http.StatusSeeOther)
		return
	}

	passwordHash, err := hashPassword(password)
	if err != nil {
		Error("register_hash_failed", nil, err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	userID := uuid.New()
	_, err = s.cfg.DB.Exec(
		`INSERT INTO users (id, username, email, password_hash) VALUES ($1, $2, $3, $4)`,
		userID, username, email, passwordHash,
	)
	if err != nil {
		Error("register_insert_failed", nil, err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	Info("user_registered", map[string]interface{}{"username": username})

	s.flash(w, r, flashSuccess, "Registration successful! Please log in.")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) changePasswordPageHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "password.html", nil)
}

// changePasswordHandler verifies the current password before updating.
func (s *Server) changePasswordHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := s.cfg.Auth.currentUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	current := r.FormValue("current_password")
	newPass := r.FormValue("new_password")
	confirm := r.FormValue("confirm_password")

	if current == "" || newPass == "" || confirm == "" {
		s.flash(w, r, flashError, "All fields are required")
		http.Redirect(w, r, "/password", http.StatusSeeOther)
		return
	}
	if newPass != confirm {
		s.flash(w, r, flashError, "New passwords do not match")
		http.Redirect(w, r, "/password", http.StatusSeeOther)
		return
	}
	if ok, msg := validatePassword(newPass); !ok {
		s.flash(w, r, flashError, msg)
		http.Redirect(w, r, "/password", http.StatusSeeOther)
		return
	}

	var currentHash string
	err = s.cfg.DB.QueryRow(`SELECT password_hash FROM users WHERE id = $1`, userID).Scan(&currentHash)
	if err != nil {
		if err == sql.ErrNoRows {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		Error("password_query_failed", nil, err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(currentHash), []byte(current)) != nil {
		s.flash(w, r, flashError, "Current password is incorrect")
		http.Redirect(w, r, "/password", http.StatusSeeOther)
		return
	}

	newHash, err := hashPassword(newPass)
	if err != nil {
		Error("password_hash_failed", nil, err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	if _, err := s.cfg.DB.Exec(`UPDATE users SET password_hash = $1 WHERE id = $2`, newHash, userID); err != nil {
		Error("password_update_failed", nil, err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	s.flash(w, r, flashSuccess, "Password changed successfully!")
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}
