package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/legislature-crawler/internal/lookup"
)

// ListSessions returns the upstream ids of every session.
func ListSessions(ctx context.Context, deps Deps) ([]int, error) {
	var payload []sessionListPayload
	if _, err := deps.getJSON(ctx, deps.Endpoints.Sessions(), EndpointRequired, &payload); err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(payload))
	for _, s := range payload {
		ids = append(ids, s.SessionID)
	}
	return ids, nil
}

// CrawlSessionMetadata fetches a session's core fields and joins them with
// its start and end dates.
func CrawlSessionMetadata(
	ctx context.Context,
	deps Deps,
	id int,
	dates map[string]lookup.SessionDates,
) (Session, error) {
	var payload sessionPayload
	if _, err := deps.getJSON(ctx, deps.Endpoints.Session(id), EndpointRequired, &payload); err != nil {
		return Session{}, err
	}
	sessionID := strconv.Itoa(payload.SessionID)
	span, ok := dates[sessionID]
	if !ok {
		return Session{}, fmt.Errorf("session %s: %w", sessionID, ErrSessionDatesMissing)
	}
	return Session{
		SessionID:            sessionID,
		SessionName:          payload.YearString,
		SessionNumber:        payload.SessionNumber,
		IsCurrentSession:     payload.CurrentSession,
		IsSpecialSession:     payload.SpecialSession,
		StartDate:            span.StartDate,
		EndDate:              span.EndDate,
		Docs:                 []Doc{},
		Bills:                []int{},
		Legislators:          []int{},
		Committees:           []int{},
		SessionLaws:          map[int]int{},
		ConferenceCommittees: []ConferenceCommittee{},
	}, nil
}

// CrawlSessionSubLists fills in the documents, child id lists, session
// laws and conference committees of a session returned by
// CrawlSessionMetadata. Every sub-list is required.
func CrawlSessionSubLists(ctx context.Context, deps Deps, id int, session Session) (Session, error) {
	docs, err := fetchSessionDocs(ctx, deps, id)
	if err != nil {
		return Session{}, err
	}
	session.Docs = docs

	var bills []billLightPayload
	if _, err := deps.getJSON(ctx, deps.Endpoints.SessionBills(id), EndpointRequired, &bills); err != nil {
		return Session{}, err
	}
	session.Bills = make([]int, 0, len(bills))
	for _, b := range bills {
		session.Bills = append(session.Bills, b.BillID)
	}

	var members []sessionMemberPayload
	if _, err := deps.getJSON(ctx, deps.Endpoints.SessionMembers(id), EndpointRequired, &members); err != nil {
		return Session{}, err
	}
	session.Legislators = make([]int, 0, len(members))
	for _, m := range members {
		session.Legislators = append(session.Legislators, m.SessionMemberID)
	}

	var committees []sessionCommitteePayload
	if _, err := deps.getJSON(ctx, deps.Endpoints.SessionCommittees(id), EndpointRequired, &committees); err != nil {
		return Session{}, err
	}
	session.Committees = make([]int, 0, len(committees))
	for _, c := range committees {
		session.Committees = append(session.Committees, c.SessionCommitteeID)
	}

	var laws []sessionLawPayload
	if _, err := deps.getJSON(ctx, deps.Endpoints.SessionLaws(id), EndpointRequired, &laws); err != nil {
		return Session{}, err
	}
	session.SessionLaws = make(map[int]int, len(laws))
	for _, l := range laws {
		session.SessionLaws[l.BillID] = l.SessionLawID
	}

	conference, err := fetchConferenceCommittees(ctx, deps, id)
	if err != nil {
		return Session{}, err
	}
	session.ConferenceCommittees = conference

	deps.logger().Debug("session sub-lists fetched",
		zap.Int("session_id", id),
		zap.Int("docs", len(session.Docs)),
		zap.Int("bills", len(session.Bills)),
		zap.Int("legislators", len(session.Legislators)),
		zap.Int("committees", len(session.Committees)),
		zap.Int("session_laws", len(session.SessionLaws)),
	)
	return session, nil
}

// CrawlSession runs CrawlSessionMetadata and CrawlSessionSubLists.
func CrawlSession(ctx context.Context, deps Deps, id int, dates map[string]lookup.SessionDates) (Session, error) {
	session, err := CrawlSessionMetadata(ctx, deps, id, dates)
	if err != nil {
		return Session{}, err
	}
	return CrawlSessionSubLists(ctx, deps, id, session)
}

func fetchSessionDocs(ctx context.Context, deps Deps, id int) ([]Doc, error) {
	var payload []documentPayload
	if _, err := deps.getJSON(ctx, deps.Endpoints.SessionDocuments(id), EndpointRequired, &payload); err != nil {
		return nil, err
	}
	docs := make([]Doc, 0, len(payload))
	for _, d := range payload {
		docs = append(docs, Doc{
			SessionID:     d.SessionID,
			DocumentID:    d.DocumentID,
			DocumentTitle: d.Title,
			DocumentDate:  d.DocumentDate,
			DocumentType:  d.DocumentType,
			DocumentURL:   deps.Endpoints.DocumentURL(d.DocumentID, fileExtension(d.WebFilename)),
		})
	}
	return docs, nil
}

// fetchConferenceCommittees unwraps the one-element arrays the upstream
// nests each conference committee in.
func fetchConferenceCommittees(ctx context.Context, deps Deps, id int) ([]ConferenceCommittee, error) {
	var payload []json.RawMessage
	if _, err := deps.getJSON(ctx, deps.Endpoints.ConferenceCommittees(id), EndpointRequired, &payload); err != nil {
		return nil, err
	}
	out := make([]ConferenceCommittee, 0, len(payload))
	for _, raw := range payload {
		var nested []conferenceCommitteePayload
		if err := json.Unmarshal(raw, &nested); err != nil {
			return nil, fmt.Errorf("decode conference committee: %w", err)
		}
		if len(nested) == 0 {
			continue
		}
		c := nested[0]
		cc := ConferenceCommittee{
			MeetingTime: c.MeetingTime,
			Staff:       c.Staff,
			Secretary:   c.Secretary,
		}
		if c.Bill != nil {
			billID := c.Bill.BillID
			cc.BillID = &billID
		}
		if c.Minutes != nil {
			cc.Minutes = deps.Endpoints.optionalDocumentURL(&c.Minutes.DocumentID)
		}
		if c.Report != nil {
			cc.Report = deps.Endpoints.optionalDocumentURL(&c.Report.DocumentID)
		}
		out = append(out, cc)
	}
	return out, nil
}
