package runtime

import (
	"context"
	"net/url"
)

// Request is the request object a page renders with.
type Request struct {
	URL          *url.URL `json:"url"`
	CanonicalURL *url.URL `json:"canonicalURL"`
}

// RenderInput is the argument of a page's __renderPage.
type RenderInput struct {
	Request Request
	// Collection is nil for pages without createCollection.
	Collection *PaginationState
	// CSS holds the stylesheets of the page module.
	CSS []string
}

// Module is one loaded page module.
type Module interface {
	// CreateCollection calls the exported createCollection. It returns nil
	// when the module exports none.
	CreateCollection(ctx context.Context) (*Collection, error)
	// RenderPage calls the exported __renderPage.
	RenderPage(ctx context.Context, in RenderInput) (string, error)
	// Stylesheets are hrefs to link from the rendered page.
	Stylesheets() []string
	// CSS returns the styles of the module and its imports.
	CSS() []string
	// Close releases the module.
	Close() error
}

// ModuleLoader loads a page module from its source file.
type ModuleLoader interface {
	Load(ctx context.Context, file string) (Module, error)
}

// Asset is a non-page response body.
type Asset struct {
	ContentType string
	Contents    []byte
}

// AssetLoader serves generated assets such as component stylesheets. ok is
// false when path is not one of its assets.
type AssetLoader interface {
	LoadAsset(ctx context.Context, path string) (asset Asset, ok bool, err error)
}
