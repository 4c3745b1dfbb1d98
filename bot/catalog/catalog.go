// Package catalog defines the fixed set of promotion packages offered by the bot.
package catalog

// Package describes a single promotion offer: a boost duration and its
// price in SOL. Label is the exact text shown on the selection button
// and in the payment confirmation.
type Package struct {
	ID    string
	Hours int
	Label string
}

// packages is ordered by duration; the menu renders them in this order.
var packages = []Package{
	{ID: "package_2h", Hours: 2, Label: "2 hours | 0.3 SOL"},
	{ID: "package_4h", Hours: 4, Label: "4 hours | 0.6 SOL"},
	{ID: "package_8h", Hours: 8, Label: "8 hours | 1.4 SOL"},
	{ID: "package_12h", Hours: 12, Label: "12 hours | 2 SOL"},
	{ID: "package_15h", Hours: 15, Label: "15 hours | 2.4 SOL"},
	{ID: "package_18h", Hours: 18, Label: "18 hours | 2.8 SOL"},
	{ID: "package_20h", Hours: 20, Label: "20 hours | 3.1 SOL"},
	{ID: "package_24h", Hours: 24, Label: "24 hours | 3.5 SOL"},
}

// All returns every package in menu order.
func All() []Package {
	out := make([]Package, len(packages))
	copy(out, packages)
	return out
}

// Find returns the package with the given ID.
func Find(id string) (Package, bool) {
	for _, p := range packages {
		if p.ID == id {
			return p, true
		}
	}
	return Package{}, false
}
