package ai

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Credentials holds the token source and project used to call Vertex AI.
type Credentials struct {
	ProjectID   string
	TokenSource oauth2.TokenSource
}

// LoadCredentials reads a service account file and prepares a cached token source.
// A failure here means the server must not accept capture requests.
func LoadCredentials(ctx context.Context, path, projectOverride string) (*Credentials, error) {
	if path == "" {
		return nil, fmt.Errorf("GOOGLE_APPLICATION_CREDENTIALS environment variable not set")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("service account file not found: %s: %w", path, err)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, cloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account file: %w", err)
	}

	projectID := creds.ProjectID
	if projectOverride != "" {
		projectID = projectOverride
	}
	if projectID == "" {
		return nil, fmt.Errorf("no project id in %s", path)
	}

	return &Credentials{
		ProjectID:   projectID,
		TokenSource: oauth2.ReuseTokenSource(nil, creds.TokenSource),
	}, nil
}
