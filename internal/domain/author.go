package domain

// Author is a name-keyed author record, created the first time a name is seen.
type Author struct {
	Record
	Name string `json:"name"`
}

// Publisher is a name-keyed publisher record.
type Publisher struct {
	Record
	Name string `json:"name"`
}
