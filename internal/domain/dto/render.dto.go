package dto

import "net/url"

// RenderContext is the data the render entry template executes against.
type RenderContext struct {
	URL   string
	Path  string
	Query url.Values
}
