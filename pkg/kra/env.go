package kra

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	envAPIURL    = "KRA_API_URL"
	envUploadURL = "KRA_UPLOAD_URL"
	envTimeout   = "KRA_TIMEOUT"
)

// NewFromEnv initialises a client from KRA_API_URL, KRA_UPLOAD_URL and
// KRA_TIMEOUT (a Go duration such as "30s"). Unset variables keep the
// defaults. opts are applied after the environment.
func NewFromEnv(opts ...Option) (*Client, error) {
	var envOpts []Option
	if v := strings.TrimSpace(os.Getenv(envAPIURL)); v != "" {
		envOpts = append(envOpts, WithBaseURL(v))
	}
	if v := strings.TrimSpace(os.Getenv(envUploadURL)); v != "" {
		envOpts = append(envOpts, WithUploadURL(v))
	}
	if v := strings.TrimSpace(os.Getenv(envTimeout)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("kra: invalid %s %q: %w", envTimeout, v, err)
		}
		envOpts = append(envOpts, WithTimeout(d))
	}

	client, err := New(append(envOpts, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("kra: init HTTP client: %w", err)
	}
	return client, nil
}
