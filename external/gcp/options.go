package gcp

import (
	"fmt"
	"strings"

	"cloud.google.com/go/auth/credentials"
	"google.golang.org/api/option"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// ClientOptions builds client options from an inline service account JSON.
// With empty JSON it returns no options so clients fall back to Application
// Default Credentials.
func ClientOptions(credentialsJSON string) ([]option.ClientOption, error) {
	if strings.TrimSpace(credentialsJSON) == "" {
		return nil, nil
	}
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(credentialsJSON),
		Scopes:          []string{cloudPlatformScope},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}
	return []option.ClientOption{option.WithAuthCredentials(creds)}, nil
}
