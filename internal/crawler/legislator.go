package crawler

import (
	"context"

	"go.uber.org/zap"
)

// CrawlLegislator fetches a session profile and resolves its canonical id
// against the historical member list. The returned identity is non-nil when
// the profile needs manual mapping.
func CrawlLegislator(
	ctx context.Context,
	deps Deps,
	sessionID, profileID int,
	historical []HistoricalLegislator,
) (LegislatorProfile, *UnresolvedIdentity, error) {
	var p memberPayload
	if _, err := deps.getJSON(ctx, deps.Endpoints.MemberDetail(profileID), EndpointRequired, &p); err != nil {
		return LegislatorProfile{}, nil, err
	}
	profile := LegislatorProfile{
		SessionID:           sessionID,
		Year:                p.Year,
		LegislatorProfileID: p.SessionMemberID,
		Chamber:             p.MemberType,
		Name:                p.FirstLastName,
		District:            p.District,
		Address1:            p.HomeAddress1,
		Address2:            p.HomeAddress2,
		City:                p.HomeCity,
		State:               p.HomeState,
		Zipcode:             p.HomeZip,
		PhoneHome:           p.HomePhone,
		PhoneCapitol:        p.CapitolPhone,
		PhoneBiz:            p.BusinessPhone,
		PhoneCell:           p.CellPhone,
		Email:               p.EmailState,
		Picture:             p.Picture,
		Party:               p.PartyName,
		Term:                p.MemberTermName,
		Occupation:          p.Occupation,
		Counties:            p.Counties,
	}
	if profile.LegislatorProfileID == 0 {
		profile.LegislatorProfileID = profileID
	}

	if deps.Resolver == nil {
		return profile, nil, nil
	}
	resolution := deps.Resolver.Resolve(profile, historical)
	profile.LegislatorCanonicalID = resolution.CanonicalID
	if resolution.Unresolved != nil {
		deps.logger().Debug("legislator identity unresolved",
			zap.Int("legislator_profile_id", profile.LegislatorProfileID),
			zap.String("reason", resolution.Unresolved.Reason),
		)
	}
	return profile, resolution.Unresolved, nil
}
