package handler

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

var phoneRegexp = regexp.MustCompile(`^[\d\s\+\-\(\)]+$`)

const (
	minNameLen     = 2
	maxNameLen     = 100
	minPasswordLen = 6
	minPhoneLen    = 10
	maxPhoneLen    = 20
)

type registerRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// normalize trims the free-text fields in place.
func (req *registerRequest) normalize() {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
}

// validate returns a field → message map, empty when the request is valid.
func (req registerRequest) validate() map[string]string {
	errs := map[string]string{}

	if n := utf8.RuneCountInString(req.FullName); n < minNameLen {
		errs["full_name"] = "Name must be at least 2 characters"
	} else if n > maxNameLen {
		errs["full_name"] = "Name must be less than 100 characters"
	}
	if !validEmail(req.Email) {
		errs["email"] = "Please enter a valid email address"
	}
	if req.Phone != "" {
		if msg := phoneError(req.Phone); msg != "" {
			errs["phone"] = msg
		}
	}
	if len(req.Password) < minPasswordLen {
		errs["password"] = "Password must be at least 6 characters"
	}
	return errs
}

func validEmail(s string) bool {
	if len(s) > 255 {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s && strings.Contains(s[strings.LastIndexByte(s, '@'):], ".")
}

// phoneError returns a user-facing message, or "" for an acceptable number.
func phoneError(phone string) string {
	switch n := utf8.RuneCountInString(phone); {
	case n < minPhoneLen:
		return "Phone number must be at least 10 digits"
	case n > maxPhoneLen:
		return "Phone number is too long"
	case !phoneRegexp.MatchString(phone):
		return "Please enter a valid phone number"
	}
	return ""
}
