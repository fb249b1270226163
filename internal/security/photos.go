// Package security provides photo URL validation utilities.
package security

import (
	"errors"
	"net/url"
	"strings"
)

// Validation errors
var (
	ErrTooManyPhotos    = errors.New("too many photos")
	ErrPhotoURLTooLong  = errors.New("photo URL exceeds maximum length")
	ErrInvalidPhotoURL  = errors.New("invalid photo URL format")
	ErrUntrustedOrigin  = errors.New("photo URL origin is not allowed")
	ErrInvalidExtension = errors.New("photo URL extension is not allowed")
	ErrSuspiciousPath   = errors.New("photo URL path is suspicious")
	ErrEmptyPhotoURL    = errors.New("photo URL cannot be empty")
)

// allowedExtensions contains the image formats clients may reference.
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// PhotoConfig holds photo validator configuration.
type PhotoConfig struct {
	MaxPhotos      int      // Maximum photos per visit
	MaxURLLength   int      // Maximum allowed URL length
	AllowedOrigins []string // URL prefixes photos must start with
}

// DefaultPhotoConfig returns the default photo validator configuration.
func DefaultPhotoConfig() PhotoConfig {
	return PhotoConfig{
		MaxPhotos:    3,
		MaxURLLength: 2048,
		AllowedOrigins: []string{
			"https://storage.vistly.app/photos/",
		},
	}
}

// PhotoValidator validates user-supplied photo URLs before they are stored.
type PhotoValidator struct {
	config PhotoConfig
}

// NewPhotoValidator creates a new photo URL validator.
func NewPhotoValidator(cfg PhotoConfig) *PhotoValidator {
	return &PhotoValidator{config: cfg}
}

// ValidateAll checks a batch of photo URLs.
func (v *PhotoValidator) ValidateAll(rawURLs []string) error {
	if len(rawURLs) > v.config.MaxPhotos {
		return ErrTooManyPhotos
	}
	for _, raw := range rawURLs {
		if err := v.Validate(raw); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks a single photo URL.
func (v *PhotoValidator) Validate(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ErrEmptyPhotoURL
	}
	if len(rawURL) > v.config.MaxURLLength {
		return ErrPhotoURLTooLong
	}

	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return ErrInvalidPhotoURL
	}

	if !v.allowedOrigin(rawURL) {
		return ErrUntrustedOrigin
	}

	if strings.Contains(u.Path, "..") || strings.ContainsAny(rawURL, " <>\"'\\") {
		return ErrSuspiciousPath
	}

	ext := strings.ToLower(u.Path)
	if idx := strings.LastIndex(ext, "."); idx >= 0 {
		ext = ext[idx:]
	} else {
		ext = ""
	}
	if !allowedExtensions[ext] {
		return ErrInvalidExtension
	}

	return nil
}

func (v *PhotoValidator) allowedOrigin(rawURL string) bool {
	for _, prefix := range v.config.AllowedOrigins {
		if strings.HasPrefix(rawURL, prefix) {
			return true
		}
	}
	return false
}
