// Package locale supplies the phrase templates the naming engine consumes.
// Templates live in an x/text catalog so pluralization follows CLDR rules
// instead of hand-rolled "s" suffixing.
package locale

import (
	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Catalog renders the handful of phrases room naming needs. It satisfies
// naming.Localizer.
type Catalog struct {
	printer *message.Printer
}

// NewEnglish builds the default English catalog.
func NewEnglish() *Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))

	b.SetString(language.English, "You", "You")
	b.SetString(language.English, "list_separator", ", ")
	_ = b.Set(language.English, "%d guest", plural.Selectf(1, "",
		plural.One, "%d guest",
		plural.Other, "%d guests"))
	_ = b.Set(language.English, "%d other guest", plural.Selectf(1, "",
		plural.One, "%d other guest",
		plural.Other, "%d other guests"))

	return &Catalog{printer: message.NewPrinter(language.English, message.Catalog(b))}
}

// You is the placeholder label representing the caller itself.
func (c *Catalog) You() string {
	return c.printer.Sprintf("You")
}

// ListSeparator joins participant labels into a display name.
func (c *Catalog) ListSeparator() string {
	return c.printer.Sprintf("list_separator")
}

// Guests phrases an active-guest count for an authenticated caller.
func (c *Catalog) Guests(n int) string {
	return c.printer.Sprintf("%d guest", n)
}

// OtherGuests phrases the count of guests besides the anonymous caller.
func (c *Catalog) OtherGuests(n int) string {
	return c.printer.Sprintf("%d other guest", n)
}
