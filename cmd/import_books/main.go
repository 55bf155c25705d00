// Command import_books seeds the catalogue from a JSON file of the form
// [{"title": "...", "author": "...", "published_year": 1965}, ...].
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"library-api/auth"
	"library-api/library"
)

type bookRecord struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	PublishedYear *int64 `json:"published_year"`
}

func main() {
	dbPath := flag.String("db", "library.db", "path to the SQLite database file")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: import_books [--db library.db] books.json")
		os.Exit(2)
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening book list: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	records, err := readBooks(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading book list: %v\n", err)
		os.Exit(1)
	}

	db, err := library.NewDatabase(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	manager := library.NewLibraryManager(db, auth.NewHasher(0))
	defer manager.Close()

	ctx := context.Background()
	successCount, errorCount := importBooks(ctx, manager, records, os.Stdout)

	fmt.Printf("\nImport complete!\n")
	fmt.Printf("Successfully imported: %d books\n", successCount)
	fmt.Printf("Errors: %d\n", errorCount)

	// Display summary of imported books
	if successCount > 0 {
		fmt.Println("\nCatalogue:")
		books, err := manager.ListBooks(ctx)
		if err != nil {
			fmt.Printf("Error retrieving books: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%-5s %-50s %-30s %-4s\n", "ID", "Title", "Author", "Year")
		fmt.Println(strings.Repeat("-", 92))
		for _, book := range books {
			year := "-"
			if book.PublishedYear != nil {
				year = fmt.Sprint(*book.PublishedYear)
			}
			fmt.Printf("%-5d %-50s %-30s %-4s\n", book.ID, truncateString(book.Title, 50), truncateString(book.Author, 30), year)
		}
	}
	if errorCount > 0 {
		os.Exit(1)
	}
}

func readBooks(r io.Reader) ([]bookRecord, error) {
	var records []bookRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, err
	}
	return records, nil
}

type bookCreator interface {
	CreateBook(ctx context.Context, f library.BookFields) (*library.Book, error)
}

// importBooks adds each record, skipping ones without a title or author.
func importBooks(ctx context.Context, store bookCreator, records []bookRecord, out io.Writer) (successCount, errorCount int) {
	for i, rec := range records {
		title := strings.TrimSpace(rec.Title)
		author := strings.TrimSpace(rec.Author)
		if title == "" || author == "" {
			fmt.Fprintf(out, "Skipping entry %d: title and author are required\n", i+1)
			errorCount++
			continue
		}

		fmt.Fprintf(out, "Importing: %s by %s... ", title, author)
		book, err := store.CreateBook(ctx, library.BookFields{Title: title, Author: author, PublishedYear: rec.PublishedYear})
		if err != nil {
			fmt.Fprintf(out, "ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Fprintf(out, "SUCCESS (ID: %d)\n", book.ID)
		successCount++
	}
	return successCount, errorCount
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
