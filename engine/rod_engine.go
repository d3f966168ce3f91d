package engine

import (
	"context"
	"fmt"
)

// RenderFunc renders a URL in a browser and returns the final markup.
// It is injected from main to avoid an import cycle with the scraper.
type RenderFunc func(ctx context.Context, url string) (string, error)

// RodEngine is the browser-backed engine. It runs the page's JavaScript, so
// it is the last tier of the dispatcher.
type RodEngine struct {
	render RenderFunc
}

// NewRodEngine creates a RodEngine around render.
func NewRodEngine(render RenderFunc) *RodEngine {
	return &RodEngine{render: render}
}

func (e *RodEngine) Name() string { return "rod" }

func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.render == nil {
		return nil, fmt.Errorf("rod: render func not configured")
	}

	markup, err := e.render(ctx, req.URL)
	if err != nil {
		return nil, fmt.Errorf("rod: %w", err)
	}
	return &FetchResult{HTML: markup, FinalURL: req.URL, EngineName: e.Name()}, nil
}
