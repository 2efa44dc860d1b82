package serper

// newsResponse represents the Serper /news endpoint response.
type newsResponse struct {
	News []newsArticle `json:"news"`
}

type newsArticle struct {
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
	Source   string `json:"source"`
	Date     string `json:"date"`
	Link     string `json:"link"`
	Section  string `json:"section"`
	Location string `json:"location"`
}

// searchResponse represents the Serper /search endpoint response.
type searchResponse struct {
	Organic []organicResult `json:"organic"`
}

type organicResult struct {
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
	Link     string `json:"link"`
	Date     string `json:"date"`
	Position int    `json:"position"`
}

type searchRequest struct {
	Query string `json:"q"`
	Num   int    `json:"num"`
}
