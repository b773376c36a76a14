package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameStripsArticlesAndSuffixes(t *testing.T) {
	assert.Equal(t, "tacos el moro", Name("The Tacos El Moro Restaurant"))
	assert.Equal(t, "night owl", Name("Night + Owl Cafe"))
	assert.Equal(t, "mariscos jalisco", Name("  Mariscos   Jalisco  "))
}

func TestNameTotal(t *testing.T) {
	assert.Equal(t, "", Name(""))
	assert.Equal(t, "", Name("   "))
	assert.Equal(t, "", Name("the"))
}

func TestNameIdempotent(t *testing.T) {
	inputs := []string{
		"The Tacos El Moro Restaurant",
		"Guelaguetza",
		"Joe's Bar & Grill",
		"An Uncommon Kitchen",
		"",
	}
	for _, in := range inputs {
		once := Name(in)
		assert.Equal(t, once, Name(once), "input %q", in)
	}
}

func TestAddressAbbreviations(t *testing.T) {
	assert.Equal(t, "3544 w sunset blvd", Address("3544 West Sunset Boulevard"))
	assert.Equal(t, "812 e 3rd st ste 120", Address("812 East 3rd Street, Suite 120"))
	assert.Equal(t, "1100 s grand ave", Address("1100 S. Grand Ave."))
}

func TestAddressIdempotent(t *testing.T) {
	inputs := []string{
		"3544 West Sunset Boulevard",
		"736 North Fairfax Avenue",
		"5917 York Blvd",
		"",
	}
	for _, in := range inputs {
		once := Address(in)
		assert.Equal(t, once, Address(once), "input %q", in)
	}
}

func TestPhone(t *testing.T) {
	assert.Equal(t, "2135550172", Phone("(213) 555-0172"))
	assert.Equal(t, "+12135550172", Phone("+1 213 555 0172"))
	assert.Equal(t, "", Phone("n/a"))
	assert.Equal(t, "", Phone(""))
}

func TestWebsite(t *testing.T) {
	assert.Equal(t, "guelaguetzarestaurante.com", Website("https://www.guelaguetzarestaurante.com/menu"))
	assert.Equal(t, "example.com", Website("example.com"))
	assert.Equal(t, "", Website(""))
}

func TestForFieldDispatch(t *testing.T) {
	assert.Equal(t, Name("The Spot"), ForField("name", "The Spot"))
	assert.Equal(t, Address("1 Main Street"), ForField("address_street", "1 Main Street"))
	assert.Equal(t, Phone("(213) 555-0172"), ForField("phone", "(213) 555-0172"))
	assert.Equal(t, "open late most nights", ForField("description", "Open  late   most nights"))
}
