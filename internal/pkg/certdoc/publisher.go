package certdoc

import (
	"context"
	"fmt"

	"github.com/yigit/coursecred/internal/app/models"
)

// Store persists rendered documents and resolves them again.
type Store interface {
	SaveBytes(subPath, ext string, data []byte) (string, error)
	Exists(relPath string) bool
	DeleteFile(relPath string) error
}

// Publisher renders a certificate and stores the result, returning a stable
// storage reference.
type Publisher struct {
	renderer Renderer
	store    Store
	subPath  string
}

// NewPublisher creates a Publisher storing documents under subPath.
func NewPublisher(renderer Renderer, store Store, subPath string) *Publisher {
	return &Publisher{renderer: renderer, store: store, subPath: subPath}
}

// Publish renders payload and stores it.
func (p *Publisher) Publish(ctx context.Context, payload models.CertificatePayload) (string, error) {
	data, err := p.renderer.Render(ctx, payload)
	if err != nil {
		return "", err
	}
	ref, err := p.store.SaveBytes(p.subPath, ".pdf", data)
	if err != nil {
		return "", fmt.Errorf("failed to store certificate document: %w", err)
	}
	return ref, nil
}

// Available reports whether a previously published reference still resolves.
func (p *Publisher) Available(ref string) bool {
	return ref != "" && p.store.Exists(ref)
}

// Discard removes a published document that ended up unused.
func (p *Publisher) Discard(ref string) error {
	if ref == "" {
		return nil
	}
	return p.store.DeleteFile(ref)
}
