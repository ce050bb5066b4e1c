package render

import "context"

// Renderer is the headless render backend contract: render the URL and return
// the resulting HTML after a fixed settle delay. Implementations are only
// required to be safe for sequential use.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
	Close()
}
