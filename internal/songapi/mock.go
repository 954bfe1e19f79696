package songapi

import "context"

// MockProvider serves canned records; used in tests and when no upstream is
// configured.
type MockProvider struct {
	Songs   map[string]*Song
	Err     error
	Lookups int
}

var _ Provider = (*MockProvider)(nil)

func NewMockProvider() *MockProvider {
	return &MockProvider{Songs: map[string]*Song{}}
}

func (p *MockProvider) GetSong(ctx context.Context, videoID string) (*Song, error) {
	p.Lookups++
	if p.Err != nil {
		return nil, p.Err
	}
	if s, ok := p.Songs[videoID]; ok {
		return s, nil
	}
	return &Song{
		Title:   "Mock Song",
		Artists: []Artist{{Name: "Mock Artist"}},
	}, nil
}

func (p *MockProvider) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	results := []SearchResult{
		{
			VideoID:  "mock1",
			Title:    "Mock Song",
			Artists:  []Artist{{Name: "Mock Artist"}},
			Duration: "3:00",
		},
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
