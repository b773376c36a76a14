package match

import "github.com/atlas-maps/platform/pkg/places"

// Status is the four-state matching outcome. Callers branch on it
// explicitly; "not matched" is three distinct cases, not one.
type Status string

const (
	StatusMatch     Status = "MATCH"
	StatusAmbiguous Status = "AMBIGUOUS"
	StatusNoMatch   Status = "NO_MATCH"
	StatusError     Status = "ERROR"
)

// Reason codes explain why a record matched (or did not). They travel into
// resolution links, queue rows and run reports.
const (
	ReasonExistingGPID      = "EXISTING_GPID"
	ReasonIdentifierExact   = "IDENTIFIER_EXACT"
	ReasonNearbyStrongMatch = "NEARBY_STRONG_MATCH"
	ReasonNearbyNoCandidate = "NEARBY_NO_CANDIDATE"
	ReasonNameExact         = "NAME_EXACT"
	ReasonNameMultiMatch    = "NAME_MULTI_MATCH"
	ReasonFuzzyTie          = "FUZZY_TIE"
	ReasonTextSingleHighSim = "TEXT_SINGLE_HIGH_SIM"
	ReasonTextZeroResults   = "TEXT_ZERO_RESULTS"
	ReasonTextLowSim        = "TEXT_LOW_SIM"
)

// Result is the outcome of one matching attempt for one record.
type Result struct {
	Status Status
	// CandidateID is the matched golden canonical id (golden matching) or
	// the resolved external place id (GPID resolution). Set only on MATCH.
	CandidateID string
	Score       float64
	DistanceM   float64
	Method      string
	Reason      string
	// Candidates carries the competing provider results on AMBIGUOUS so the
	// review queue can show them.
	Candidates []places.PlaceResult
}
