package secrets

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Google resolves secrets from Google Secret Manager, always at the
// latest version.
type Google struct {
	project string
	client  *secretmanager.Client
}

// NewGoogle opens a Secret Manager client for the given project using
// ambient application credentials.
func NewGoogle(ctx context.Context, project string) (*Google, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("secret manager client: %w", err)
	}
	return &Google{project: project, client: client}, nil
}

func (g *Google) Resolve(ctx context.Context, name string) (string, error) {
	req := &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", g.project, name),
	}
	resp, err := g.client.AccessSecretVersion(ctx, req)
	if err != nil {
		switch status.Code(err) {
		case codes.NotFound:
			return "", fmt.Errorf("secret %q not found in project %s", name, g.project)
		case codes.PermissionDenied:
			return "", fmt.Errorf("access to secret %q denied", name)
		}
		return "", fmt.Errorf("access secret %q: %w", name, err)
	}
	return string(resp.GetPayload().GetData()), nil
}

// Close releases the underlying client connection.
func (g *Google) Close() error {
	return g.client.Close()
}
