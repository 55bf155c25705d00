package library

// Book is a catalogue entry. PublishedYear is nil when the year is unknown.
type Book struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	PublishedYear *int64 `json:"published_year"`
}

// Member represents a registered library member.
type Member struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"` // Don't serialize password hash
}

// BookFields carries the writable columns of a book. Update replaces every
// column with these values, so a nil PublishedYear clears the stored year.
type BookFields struct {
	Title         string
	Author        string
	PublishedYear *int64
}
