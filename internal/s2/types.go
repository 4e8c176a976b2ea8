package s2

// S2Paper is the Semantic Scholar Graph API paper shape, limited to the
// fields the pipeline requests.
type S2Paper struct {
	PaperID       string     `json:"paperId"`
	Title         string     `json:"title"`
	Abstract      string     `json:"abstract"`
	Venue         string     `json:"venue"`
	Year          int        `json:"year"`
	URL           string     `json:"url"`
	CitationCount int        `json:"citationCount"`
	Authors       []S2Author `json:"authors"`
	ExternalIDs   struct {
		DOI           string `json:"DOI"`
		PubMed        string `json:"PubMed"`
		PubMedCentral string `json:"PubMedCentral"`
		ArXiv         string `json:"ArXiv"`
	} `json:"externalIds"`
	OpenAccessPDF struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
}

// S2Author is one author entry in a paper response.
type S2Author struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

// searchResponse is the /paper/search response envelope.
type searchResponse struct {
	Total int       `json:"total"`
	Data  []S2Paper `json:"data"`
}
