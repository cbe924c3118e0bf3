// Package identity maps session-scoped legislator profiles onto canonical
// cross-session legislator ids.
//
// The crosswalk is authoritative. Profiles it does not cover are reported
// with name-matched historical candidates for a human to review; a
// candidate is never chosen automatically.
package identity

import (
	"sort"
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"
	"go.uber.org/zap"

	"github.com/JakeFAU/legislature-crawler/internal/crawler"
)

// Resolver implements crawler.IdentityResolver over a static crosswalk.
type Resolver struct {
	crosswalk map[string]string
	logger    *zap.Logger
}

// New builds a Resolver. crosswalk maps profile id strings to canonical ids.
func New(crosswalk map[string]string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{crosswalk: crosswalk, logger: logger.Named("identity")}
}

// Resolve looks the profile up in the crosswalk. Unmapped profiles and
// non-integer crosswalk values come back with Unresolved set.
func (r *Resolver) Resolve(
	profile crawler.LegislatorProfile,
	historical []crawler.HistoricalLegislator,
) crawler.Resolution {
	profileID := strconv.Itoa(profile.LegislatorProfileID)
	raw := strings.TrimSpace(r.crosswalk[profileID])

	if raw == "" {
		unresolved := r.unresolved(profile, crawler.ReasonUnmapped, "", historical)
		return crawler.Resolution{Unresolved: &unresolved}
	}
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return crawler.Resolution{CanonicalID: crawler.IntCanonicalID(id)}
	}
	unresolved := r.unresolved(profile, crawler.ReasonNonInteger, raw, historical)
	return crawler.Resolution{
		CanonicalID: crawler.RawCanonicalID(raw),
		Unresolved:  &unresolved,
	}
}

func (r *Resolver) unresolved(
	profile crawler.LegislatorProfile,
	reason, raw string,
	historical []crawler.HistoricalLegislator,
) crawler.UnresolvedIdentity {
	u := crawler.UnresolvedIdentity{
		SessionID:           profile.SessionID,
		LegislatorProfileID: profile.LegislatorProfileID,
		Name:                profile.Name,
		Chamber:             profile.Chamber,
		Party:               profile.Party,
		City:                profile.City,
		Reason:              reason,
		RawValue:            raw,
		Candidates:          Candidates(profile.Name, historical),
	}

	hints := make([]string, 0, len(u.Candidates))
	for _, c := range u.Candidates {
		hints = append(hints, c.NameFirst+" "+c.NameLast+" ("+strconv.Itoa(c.LegislatorIDCanon)+")")
	}
	r.logger.Warn("legislator profile needs canonical id mapping",
		zap.String("reason", reason),
		zap.Int("legislator_profile_id", profile.LegislatorProfileID),
		zap.Int("session_id", profile.SessionID),
		zap.String("name", profile.Name),
		zap.String("chamber", profile.Chamber),
		zap.String("party", profile.Party),
		zap.String("city", profile.City),
		zap.ByteString("counties", profile.Counties),
		zap.String("crosswalk_value", raw),
		zap.Strings("candidates", hints),
	)
	return u
}

// Candidates returns historical legislators whose first and last names both
// appear, case-insensitively, in name. Records missing either name part are
// never candidates. Results are ordered by Jaro-Winkler similarity between
// "first last" and name, best first.
func Candidates(name string, historical []crawler.HistoricalLegislator) []crawler.Candidate {
	target := strings.ToUpper(strings.TrimSpace(name))
	out := []crawler.Candidate{}
	if target == "" {
		return out
	}
	for _, h := range historical {
		first := strings.ToUpper(strings.TrimSpace(h.NameFirst))
		last := strings.ToUpper(strings.TrimSpace(h.NameLast))
		if first == "" || last == "" {
			continue
		}
		if !strings.Contains(target, last) || !strings.Contains(target, first) {
			continue
		}
		out = append(out, crawler.Candidate{
			LegislatorIDCanon: h.LegislatorIDCanon,
			NameFirst:         h.NameFirst,
			NameLast:          h.NameLast,
			YearStart:         h.YearStart,
			YearEnd:           h.YearEnd,
			Chambers:          h.Chambers,
			Parties:           h.Parties,
			Cities:            h.Cities,
			Counties:          h.Counties,
			Score:             matchr.JaroWinkler(first+" "+last, target, false),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].LegislatorIDCanon < out[j].LegislatorIDCanon
	})
	return out
}
