package kanoon

import "fmt"

// Case is a single search hit from the case-law index.
type Case struct {
	DocID   int    `json:"doc_id"`
	Title   string `json:"title"`
	Court   string `json:"court"`
	Year    string `json:"year"`
	Snippet string `json:"snippet"`
}

// FormatLine renders the case in the compact form handed to the LLM.
func (c Case) FormatLine() string {
	return fmt.Sprintf("%s | %s | %s | id=%d", c.Title, c.Court, c.Year, c.DocID)
}

// Document is a full judgment as returned by the document endpoint.
type Document struct {
	Title       string `json:"title"`
	Text        string `json:"text"`
	Court       string `json:"docsource"`
	PublishDate string `json:"publishdate"`
}

// PlainText returns the judgment text with HTML markup stripped.
func (d *Document) PlainText() string {
	return StripTags(d.Text)
}

// OriginalDocument is the scanned/original filing (usually a PDF).
type OriginalDocument struct {
	DocID       int
	Data        []byte
	ContentType string
}

// Error is a structured upstream API failure.
type Error struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("indiankanoon: status=%d %s", e.StatusCode, e.Message)
}

// searchResponse mirrors the search endpoint payload.
type searchResponse struct {
	Docs []searchDoc `json:"docs"`
}

type searchDoc struct {
	Tid         int    `json:"tid"`
	Title       string `json:"title"`
	DocSource   string `json:"docsource"`
	PublishDate string `json:"publishdate"`
	Headline    string `json:"headline"`
}

// origDocResponse mirrors the original-document endpoint payload. The doc
// field is base64; it is absent when no original exists.
type origDocResponse struct {
	Doc         string `json:"doc"`
	ContentType string `json:"Content-Type"`
}
