package rawstore

// Canonical source names. Every raw record carries one of these (or a new
// editorial source registered in the trust-tier table).
const (
	SourceManualSeed         = "manual_seed"
	SourceEditorialPremium   = "editorial_premium"
	SourceEditorialSecondary = "editorial_secondary"
	SourceGooglePlaces       = "google_places"
	SourceWebsiteCrawl       = "website_crawl"
	SourceCommunity          = "community"
)
