package crawler

import (
	"context"
	"strings"
	"time"
)

const (
	upstreamDateLayout = "01-02-2006"
	isoDateLayout      = "2006-01-02"
)

// CrawlHistorical downloads the bulk list of every legislator who has
// served. Birth and death dates are rewritten to ISO form when they parse
// and remarks have their whitespace collapsed.
func CrawlHistorical(ctx context.Context, deps Deps) ([]HistoricalLegislator, error) {
	var payload []historicalPayload
	if _, err := deps.getJSON(ctx, deps.Endpoints.HistoricalMembers(), EndpointRequired, &payload); err != nil {
		return nil, err
	}
	out := make([]HistoricalLegislator, 0, len(payload))
	for _, h := range payload {
		out = append(out, HistoricalLegislator{
			LegislatorIDCanon: h.MemberID,
			NameFirst:         h.FirstName,
			NameLast:          h.LastName,
			NameMiddle:        h.MiddleName,
			Gender:            h.Gender,
			Birthday:          isoDate(h.Birthdate),
			Deathday:          isoDate(h.Deathdate),
			MemberType:        h.MemberType,
			Counties:          h.County,
			Cities:            h.City,
			YearStart:         h.StartYear,
			YearEnd:           h.EndYear,
			Notes:             collapseNotes(h.Remarks),
			Offices:           h.Office,
			Parties:           h.Party,
			Chambers:          h.Body,
		})
	}
	return out, nil
}

// isoDate converts MM-DD-YYYY to YYYY-MM-DD, leaving other values as they are.
func isoDate(raw *string) *string {
	if raw == nil || *raw == "" {
		return raw
	}
	t, err := time.Parse(upstreamDateLayout, *raw)
	if err != nil {
		return raw
	}
	out := t.Format(isoDateLayout)
	return &out
}

func collapseNotes(raw *string) *string {
	if raw == nil || *raw == "" {
		return raw
	}
	out := strings.Join(strings.Fields(*raw), " ")
	return &out
}
