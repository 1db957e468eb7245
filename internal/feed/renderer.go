package feed

import "ai-newsletter/internal/model"

type State string

const (
	// StateLoading is the state before any load has completed.
	StateLoading State = "loading"
	// StateReady means the filtered view has at least one article.
	StateReady State = "ready"
	// StateEmptyFilter means articles are loaded but none match the filter.
	StateEmptyFilter State = "empty_filter"
	// StateError means the most recent load failed.
	StateError State = "error"
)

// Snapshot is everything a renderer needs to draw the dashboard.
type Snapshot struct {
	Articles    []model.ArticleView `json:"articles"`
	Filter      model.FilterState   `json:"filter"`
	State       State               `json:"state"`
	Error       string              `json:"error,omitempty"`
	LastUpdated string              `json:"lastUpdated"`
	Sources     []string            `json:"sources"`
	Total       int                 `json:"total"`
	SavedCount  int                 `json:"savedCount"`
}

// Renderer consumes controller output. Render is called after every
// successful load and every filter or save change. LoadFailed is called
// once per failed load, and that load is never followed by a Render.
//
// Both are called without the controller lock held, so a renderer may call
// back into the controller.
type Renderer interface {
	Render(s Snapshot)
	LoadFailed(message string)
}

// RendererFuncs adapts plain functions to Renderer. Nil fields are skipped.
type RendererFuncs struct {
	OnRender     func(Snapshot)
	OnLoadFailed func(string)
}

func (f RendererFuncs) Render(s Snapshot) {
	if f.OnRender != nil {
		f.OnRender(s)
	}
}

func (f RendererFuncs) LoadFailed(message string) {
	if f.OnLoadFailed != nil {
		f.OnLoadFailed(message)
	}
}
