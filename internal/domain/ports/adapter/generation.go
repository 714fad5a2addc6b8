package adapter

import "context"

// SceneWriter turns a pack theme into count short scene descriptions.
type SceneWriter interface {
	Name() string
	Scenes(ctx context.Context, theme string, count int) ([]string, error)
}

// ImageRenderer renders one scene and returns a publicly reachable image URL.
type ImageRenderer interface {
	Render(ctx context.Context, scene string) (string, error)
}
