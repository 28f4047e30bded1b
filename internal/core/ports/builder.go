package ports

import "context"

// ImageBuilder builds a custom game-server image from a git repository
// containing a Dockerfile. It returns the name of the built image.
type ImageBuilder interface {
	BuildImage(ctx context.Context, repoURL string, imageName string) (string, error)
}
