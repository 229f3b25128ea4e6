package isbndb

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Book is the normalized form of an ISBNdb book record.
type Book struct {
	Title         string   `json:"title"`
	TitleLong     string   `json:"title_long,omitempty"`
	ISBN          string   `json:"isbn,omitempty"`
	ISBN13        string   `json:"isbn13,omitempty"`
	ISBN10        string   `json:"isbn10,omitempty"`
	Authors       []string `json:"authors,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
	Language      string   `json:"language,omitempty"`
	DatePublished string   `json:"date_published,omitempty"`
	Edition       string   `json:"edition,omitempty"`
	Binding       string   `json:"binding,omitempty"`
	Pages         int      `json:"pages,omitempty"`
	Overview      string   `json:"overview,omitempty"`
	Synopsis      string   `json:"synopsis,omitempty"`
	Excerpt       string   `json:"excerpt,omitempty"`
	Image         string   `json:"image,omitempty"`
	ImageOriginal string   `json:"image_original,omitempty"`
	Subjects      []string `json:"subjects,omitempty"`
	Prices        []Price  `json:"prices,omitempty"`
}

// Price is a merchant offer, present only when prices were requested.
type Price struct {
	Condition string `json:"condition,omitempty"`
	Merchant  string `json:"merchant,omitempty"`
	Price     string `json:"price,omitempty"`
	Total     string `json:"total,omitempty"`
	Link      string `json:"link,omitempty"`
}

// BookSearchResult is a page of book search results.
type BookSearchResult struct {
	Total int    `json:"total"`
	Books []Book `json:"books"`
}

// AuthorDetails lists the books attributed to an author.
type AuthorDetails struct {
	Author string `json:"author"`
	Books  []Book `json:"books"`
}

// AuthorSearchResult is a page of matching author names.
type AuthorSearchResult struct {
	Total   int      `json:"total"`
	Authors []string `json:"authors"`
}

// PublisherDetails lists the books issued by a publisher.
type PublisherDetails struct {
	Publisher string `json:"publisher"`
	Books     []Book `json:"books"`
}

// PublisherSearchResult is a page of matching publisher names.
type PublisherSearchResult struct {
	Total      int      `json:"total"`
	Publishers []string `json:"publishers"`
}

// PageOptions controls pagination on list endpoints. Zero values are omitted.
type PageOptions struct {
	Page     int
	PageSize int
}

// Search columns accepted by SearchBooks.
const (
	ColumnAny           = ""
	ColumnTitle         = "title"
	ColumnAuthor        = "author"
	ColumnDatePublished = "date_published"
	ColumnSubjects      = "subjects"
)

// SearchBooksOptions narrows a book search. Zero values are omitted from the request.
type SearchBooksOptions struct {
	PageOptions
	Column         string
	Year           int
	Edition        int
	Language       string
	ShouldMatchAll bool
}

// Search indexes accepted by SearchAll.
const (
	IndexBooks      = "books"
	IndexAuthors    = "authors"
	IndexPublishers = "publishers"
	IndexSubjects   = "subjects"
)

// Raw API response types (internal)

type rawBook struct {
	Title         string     `json:"title"`
	TitleLong     string     `json:"title_long"`
	ISBN          flexString `json:"isbn"`
	ISBN13        flexString `json:"isbn13"`
	ISBN10        flexString `json:"isbn10"`
	Authors       []string   `json:"authors"`
	Publisher     string     `json:"publisher"`
	Language      string     `json:"language"`
	DatePublished flexString `json:"date_published"`
	Edition       flexString `json:"edition"`
	Binding       string     `json:"binding"`
	Pages         flexInt    `json:"pages"`
	Overview      string     `json:"overview"`
	Synopsis      string     `json:"synopsis"`
	Excerpt       string     `json:"excerpt"`
	Image         string     `json:"image"`
	ImageOriginal string     `json:"image_original"`
	Subjects      []string   `json:"subjects"`
	Prices        []rawPrice `json:"prices"`
}

type rawPrice struct {
	Condition string     `json:"condition"`
	Merchant  string     `json:"merchant"`
	Price     flexString `json:"price"`
	Total     flexString `json:"total"`
	Link      string     `json:"link"`
}

type rawBookResponse struct {
	Book rawBook `json:"book"`
}

type rawBooksResponse struct {
	Total flexInt   `json:"total"`
	Books []rawBook `json:"books"`
}

type rawAuthorResponse struct {
	Author string    `json:"author"`
	Books  []rawBook `json:"books"`
}

type rawAuthorsResponse struct {
	Total   flexInt  `json:"total"`
	Authors []string `json:"authors"`
}

type rawPublisherResponse struct {
	Publisher string    `json:"publisher"`
	Books     []rawBook `json:"books"`
}

type rawPublishersResponse struct {
	Total      flexInt  `json:"total"`
	Publishers []string `json:"publishers"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(string(data))
	return nil
}

// flexInt accepts a JSON number or a numeric string; anything else decodes as 0.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(s)))
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(n)
	return nil
}
