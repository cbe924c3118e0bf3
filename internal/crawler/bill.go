package crawler

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// CrawlBill assembles a bill record. The detail endpoint and every vote
// detail are required; the other sections degrade to empty lists when the
// upstream has nothing for them. sessionLaws is the owning session's
// bill-to-law map.
func CrawlBill(ctx context.Context, deps Deps, sessionID, billID int, sessionLaws map[int]int) (Bill, error) {
	logger := deps.logger().With(zap.Int("session_id", sessionID), zap.Int("bill_id", billID))

	var detail billPayload
	if _, err := deps.getJSON(ctx, deps.Endpoints.Bill(billID), EndpointRequired, &detail); err != nil {
		return Bill{}, err
	}
	bill := Bill{
		SessionID:  sessionID,
		BillID:     detail.BillID,
		BillType:   detail.BillTypeFull,
		BillNumber: detail.BillNumber,
		BillTitle:  detail.Title,
		Sponsors:   make([]Sponsor, 0, len(detail.BillSponsor)),
		Keywords:   make([]string, 0, len(detail.Keywords)),
	}
	if bill.BillID == 0 {
		bill.BillID = billID
	}
	for _, s := range detail.BillSponsor {
		bill.Sponsors = append(bill.Sponsors, Sponsor{
			LegislatorProfileID: s.SessionMemberID,
			IsPrime:             s.SponsorType == "P",
		})
	}
	for _, k := range detail.Keywords {
		bill.Keywords = append(bill.Keywords, k.Keyword)
	}

	var err error
	if bill.Audio, err = fetchAudio(ctx, deps, billID); err != nil {
		return Bill{}, err
	}
	if bill.BillVersions, err = fetchVersions(ctx, deps, billID); err != nil {
		return Bill{}, err
	}
	if bill.Amendments, err = fetchAmendments(ctx, deps, billID); err != nil {
		return Bill{}, err
	}
	if bill.FiscalNotes, err = fetchFiscalNotes(ctx, deps, billID); err != nil {
		return Bill{}, err
	}
	if bill.ActionLog, err = fetchActionLog(ctx, deps, billID); err != nil {
		return Bill{}, err
	}

	bill = InjectSessionLaw(bill, sessionLaws)
	logger.Debug("bill assembled",
		zap.Int("versions", len(bill.BillVersions)),
		zap.Int("actions", len(bill.ActionLog)),
		zap.Bool("session_law", bill.SessionLaw != nil),
	)
	return bill, nil
}

// InjectSessionLaw returns bill with session_law set when the law map has an
// entry for it.
func InjectSessionLaw(bill Bill, sessionLaws map[int]int) Bill {
	if law, ok := sessionLaws[bill.BillID]; ok {
		bill.SessionLaw = &law
	}
	return bill
}

func fetchAudio(ctx context.Context, deps Deps, billID int) ([]Audio, error) {
	var payload []audioPayload
	if _, err := deps.getJSON(ctx, deps.Endpoints.BillAudio(billID), EndpointOptional, &payload); err != nil {
		return nil, err
	}
	out := make([]Audio, 0, len(payload))
	for _, a := range payload {
		out = append(out, Audio{
			MeetingDatetime: a.MeetingDate,
			Committee:       a.CommitteeCode,
			URL:             a.URL,
			StartSeconds:    a.StartSeconds,
		})
	}
	return out, nil
}

func fetchVersions(ctx context.Context, deps Deps, billID int) ([]BillVersion, error) {
	var payload []versionPayload
	if _, err := deps.getJSON(ctx, deps.Endpoints.BillVersions(billID), EndpointOptional, &payload); err != nil {
		return nil, err
	}
	out := make([]BillVersion, 0, len(payload))
	for _, v := range payload {
		text, err := fetchVersionText(ctx, deps, v.DocumentID)
		if err != nil {
			return nil, err
		}
		out = append(out, BillVersion{
			BillID:          billID,
			BillVersionID:   v.DocumentID,
			BillVersion:     v.BillVersion,
			BillVersionDate: v.DocumentDate,
			BillText:        text,
		})
	}
	return out, nil
}

func fetchVersionText(ctx context.Context, deps Deps, documentID int) (string, error) {
	var payload versionHTMLPayload
	ok, err := deps.getJSON(ctx, deps.Endpoints.BillHTML(documentID), EndpointOptional, &payload)
	if err != nil {
		return "", err
	}
	if !ok || payload.DocumentHTML == nil || deps.Extractor == nil {
		return "", nil
	}
	return deps.Extractor.Extract(*payload.DocumentHTML), nil
}

func fetchAmendments(ctx context.Context, deps Deps, billID int) ([]Amendment, error) {
	var payload []amendmentPayload
	if _, err := deps.getJSON(ctx, deps.Endpoints.BillAmendments(billID), EndpointOptional, &payload); err != nil {
		return nil, err
	}
	out := make([]Amendment, 0, len(payload))
	for _, a := range payload {
		out = append(out, Amendment{
			BillID:                    billID,
			DocumentID:                a.DocumentID,
			DocumentURL:               deps.Endpoints.optionalDocumentURL(a.DocumentID),
			LegislatorProfileID:       a.SessionMemberID,
			DocumentIDInstructions:    a.AmendmentInstructionsDocumentID,
			DocumentIDInstructionsURL: deps.Endpoints.optionalDocumentURL(a.AmendmentInstructionsDocumentID),
		})
	}
	return out, nil
}

func fetchFiscalNotes(ctx context.Context, deps Deps, billID int) ([]int, error) {
	var payload []documentRef
	if _, err := deps.getJSON(ctx, deps.Endpoints.BillFiscalNotes(billID), EndpointOptional, &payload); err != nil {
		return nil, err
	}
	out := make([]int, 0, len(payload))
	for _, n := range payload {
		out = append(out, n.DocumentID)
	}
	return out, nil
}

func fetchActionLog(ctx context.Context, deps Deps, billID int) ([]ActionLogEntry, error) {
	var payload []actionPayload
	if _, err := deps.getJSON(ctx, deps.Endpoints.BillActionLog(billID), EndpointOptional, &payload); err != nil {
		return nil, err
	}
	out := make([]ActionLogEntry, 0, len(payload))
	for _, item := range payload {
		entry := ActionLogEntry{
			BillID:      billID,
			ActionDate:  item.ActionDate,
			DocumentID:  item.DocumentID,
			DocumentURL: deps.Endpoints.optionalDocumentURL(item.DocumentID),
			StatusText:  item.StatusText,
			JournalPage: item.JournalPage,
			Result:      item.Result,
		}
		if item.ActionCommittee != nil {
			id := item.ActionCommittee.ActionCommitteeID
			entry.CommitteeIDAction = &id
		}
		if item.AssignedCommittee != nil {
			id := item.AssignedCommittee.AssignedCommitteeID
			entry.CommitteeIDAssigned = &id
		}
		if item.Vote != nil {
			vote, err := fetchVote(ctx, deps, item.Vote.VoteID)
			if err != nil {
				return nil, fmt.Errorf("bill %d action %q: %w", billID, item.ActionDate, err)
			}
			vote.PresidentVote = item.Vote.PresidentVote
			entry.Vote = vote
		}
		out = append(out, entry)
	}
	return out, nil
}

func fetchVote(ctx context.Context, deps Deps, voteID int) (Vote, error) {
	var payload votePayload
	if _, err := deps.getJSON(ctx, deps.Endpoints.Vote(voteID), EndpointRequired, &payload); err != nil {
		return Vote{}, err
	}
	id := voteID
	return Vote{
		VoteID: &id,
		Tally:  GroupRollCall(payload.RollCalls),
	}, nil
}
