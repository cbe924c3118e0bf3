package crawler

import (
	"context"
	"encoding/json"
)

// CrawlCommittee fetches a committee's detail, members and staff ids.
func CrawlCommittee(ctx context.Context, deps Deps, sessionID, committeeID int) (Committee, error) {
	var p committeePayload
	if _, err := deps.getJSON(ctx, deps.Endpoints.CommitteeDetail(committeeID), EndpointRequired, &p); err != nil {
		return Committee{}, err
	}
	committee := Committee{
		SessionID:           sessionID,
		CommitteeID:         committeeID,
		IsFullBody:          p.FullBody,
		CommitteeIDCanon:    p.CommitteeID,
		Chamber:             p.Body,
		Authority:           p.Authority,
		NonCommitteeMembers: p.NonCommitteeMembers,
		Members:             make([]Member, 0, len(p.CommitteeMembers)),
		Staff:               make([]json.RawMessage, 0, len(p.Staff)),
	}
	if p.Committee != nil {
		committee.CommitteeName = p.Committee.FullName
		committee.CommitteeRoom = p.Committee.Room
		committee.CommitteeDays = p.Committee.Days
	}
	for _, m := range p.CommitteeMembers {
		committee.Members = append(committee.Members, Member{
			LegislatorProfileID: m.SessionMemberID,
			CommitteeMemberType: m.CommitteeMemberType,
		})
	}
	for _, s := range p.Staff {
		id := s.UserID
		if len(id) == 0 {
			id = json.RawMessage("null")
		}
		committee.Staff = append(committee.Staff, id)
	}
	return committee, nil
}
