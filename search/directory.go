// Package search maintains a Bluge full-text index of public rooms so they
// can be discovered by name. Only public rooms are listed; demoting or
// deleting a room drops its entry.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blugelabs/bluge"
)

// Entry is one public room in the directory.
type Entry struct {
	Token string
	Name  string
}

type Directory struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewDirectory(writer *bluge.Writer, log *slog.Logger) *Directory {
	return &Directory{writer: writer, log: log}
}

// Index upserts a public room under its token. The display name is indexed
// rather than the raw name so auto-named rooms stay findable.
func (d *Directory) Index(token, displayName string) error {
	doc := bluge.NewDocument(token).
		AddField(bluge.NewTextField("name", displayName).StoreValue()).
		AddField(bluge.NewStoredOnlyField("token", []byte(token)))
	if err := d.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("index room %s: %w", token, err)
	}
	return nil
}

// Remove drops a room from the directory. Removing an unlisted room is fine.
func (d *Directory) Remove(token string) error {
	if err := d.writer.Delete(bluge.Identifier(token)); err != nil {
		return fmt.Errorf("deindex room %s: %w", token, err)
	}
	return nil
}

// Search returns up to limit rooms whose indexed name matches the query.
func (d *Directory) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	reader, err := d.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("directory reader: %w", err)
	}
	defer func() {
		if cerr := reader.Close(); cerr != nil {
			d.log.Warn("closing directory reader", "error", cerr)
		}
	}()

	match := bluge.NewMatchQuery(query).SetField("name")
	req := bluge.NewTopNSearch(limit, match)
	dmi, err := reader.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("directory search: %w", err)
	}

	var entries []Entry
	for {
		next, err := dmi.Next()
		if err != nil {
			return nil, err
		}
		if next == nil {
			break
		}
		var entry Entry
		if err := next.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "token":
				entry.Token = string(value)
			case "name":
				entry.Name = string(value)
			}
			return true
		}); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
