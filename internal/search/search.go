package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultItem   ResultType = "item"
	ResultAction ResultType = "action"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
	RetroID   string     `json:"retroId"`
	RetroName string     `json:"retroName"`
	Section   string     `json:"section"`
}

// Query describes a search request.
type Query struct {
	Text          string
	FilterType    ResultType // empty = all types
	FilterRetroID string
	Limit         int
	Offset        int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexItem(item ItemRecord) error
	IndexAction(a ActionRecord) error
	DeleteItem(id string) error
	DeleteAction(id string) error
}

// ItemRecord is the data we index for a retro item.
type ItemRecord struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Section   string `json:"section"`
	RetroID   string `json:"retroId"`
	RetroName string `json:"retroName"`
}

// ActionRecord is the data we index for an action item.
type ActionRecord struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Owner       string `json:"owner"`
	Priority    string `json:"priority"`
	RetroID     string `json:"retroId"`
	RetroName   string `json:"retroName"`
}
