package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// OldLayoutVersionHTML is a table-framed bill document.
const OldLayoutVersionHTML = `<html><body><div id="page">
<table><tr><td><div>State of South Dakota</div></td></tr></table>
<div>Section 1.</div>
</div></body></html>`

// Fixture returns upstream bodies keyed by URL for one session (68) with one
// bill (100), one legislator (101) and one committee (200). Bill audio is
// absent upstream.
func Fixture(ep Endpoints, current bool) map[string]string {
	html, err := json.Marshal(map[string]string{"DocumentHtml": OldLayoutVersionHTML})
	if err != nil {
		panic(err)
	}
	return map[string]string{
		ep.HistoricalMembers(): `[{"MemberId":7,"FirstName":"Jane","LastName":"Doe","MiddleName":"Q",
			"Gender":"F","Birthdate":"03-04-1950","Deathdate":null,"MemberType":"Senator","County":"Minnehaha",
			"City":"Sioux Falls","StartYear":1999,"EndYear":2004,"Remarks":"  Served\n two   terms ",
			"Office":"","Party":"Republican","Body":"S"}]`,
		ep.Sessions(): `[{"SessionId":68}]`,
		ep.Session(68): fmt.Sprintf(`{"SessionId":68,"YearString":"2023","SessionNumber":98,
			"CurrentSession":%t,"SpecialSession":false}`, current),
		ep.SessionDocuments(68): `[{"SessionId":68,"DocumentId":9001,"Title":"Calendar",
			"DocumentDate":"2023-01-10","DocumentType":24,"WebFilename":"calendar.final.pdf"}]`,
		ep.SessionBills(68):      `[{"BillId":100}]`,
		ep.SessionMembers(68):    `[{"SessionMemberId":101}]`,
		ep.SessionCommittees(68): `[{"SessionCommitteeId":200}]`,
		ep.SessionLaws(68):       `[{"BillId":100,"SessionLawId":17}]`,
		ep.ConferenceCommittees(68): `[[{"MeetingTime":"2023-03-01T08:00:00","Bill":{"BillId":100},
			"Staff":null,"Secretary":null,"Minutes":{"DocumentId":7001},"Report":null}]]`,
		ep.Bill(100): `{"BillId":100,"BillTypeFull":"House Bill","BillNumber":"1001","Title":"An Act",
			"BillSponsor":[{"SessionMemberId":101,"SponsorType":"P"},{"SessionMemberId":102,"SponsorType":"C"}],
			"Keywords":[{"Keyword":"Taxation"}]}`,
		ep.BillVersions(100): `[{"DocumentId":500,"BillVersion":"Introduced","DocumentDate":"2023-01-10"}]`,
		ep.BillHTML(500):     string(html),
		ep.BillAmendments(100): `[{"DocumentId":null,"AmendmentInstructionsDocumentId":610,
			"SessionMemberId":101}]`,
		ep.BillFiscalNotes(100): `[{"DocumentId":620}]`,
		ep.BillActionLog(100): `[{"ActionDate":"2023-01-10","DocumentId":null,"StatusText":"First read",
			"JournalPage":12,"Result":null},
			{"ActionDate":"2023-02-01","DocumentId":630,"StatusText":"Passed","JournalPage":40,"Result":"P",
			"ActionCommittee":{"ActionCommitteeId":200},"Vote":{"VoteId":900,"PresidentVote":null}}]`,
		ep.Vote(900): `{"RollCalls":[{"SessionMemberId":1,"Vote1":"Yea"},{"SessionMemberId":2,"Vote1":"Nay"},
			{"SessionMemberId":3,"Vote1":"Yea"}]}`,
		ep.MemberDetail(101): `{"Year":2023,"SessionMemberId":101,"MemberType":"S","FirstLastName":"Jane Doe",
			"District":"09","HomeCity":"Sioux Falls","PartyName":"Republican","Counties":["Minnehaha"]}`,
		ep.CommitteeDetail(200): `{"Committee":{"FullName":"Senate Judiciary","Room":"413","Days":"MWF"},
			"FullBody":false,"CommitteeId":12,"Body":"S","Authority":null,"NonCommitteeMembers":[],
			"CommitteeMembers":[{"SessionMemberId":101,"CommitteeMemberType":"Chair"}],
			"Staff":[{"UserId":55},{}]}`,
	}
}

// fakeFetcher serves canned bodies. Unknown or failing URLs soft-fail for
// optional requests and fail fatally for required ones.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	fail   map[string]bool
	calls  map[string]int
}

func newFakeFetcher(bodies map[string]string) *fakeFetcher {
	return &fakeFetcher{bodies: bodies, fail: map[string]bool{}, calls: map[string]int{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[req.URL]++
	if err := ctx.Err(); err != nil {
		return FetchResponse{URL: req.URL, Outcome: OutcomeFatal}, err
	}
	body, ok := f.bodies[req.URL]
	if !ok || f.fail[req.URL] {
		if req.Class == EndpointOptional {
			return FetchResponse{URL: req.URL, StatusCode: 404, Outcome: OutcomeSoftFail, Attempts: 1}, nil
		}
		return FetchResponse{URL: req.URL, StatusCode: 404, Outcome: OutcomeFatal, Attempts: 1},
			fmt.Errorf("%w: %s: status 404", ErrRequiredFetch, req.URL)
	}
	return FetchResponse{URL: req.URL, StatusCode: 200, Body: []byte(body), Outcome: OutcomeOK, Attempts: 1}, nil
}

func (f *fakeFetcher) failURL(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[url] = true
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// stubResolver resolves profile ids from a fixed table and reports
// everything else as unmapped.
type stubResolver map[int]int64

func (s stubResolver) Resolve(profile LegislatorProfile, _ []HistoricalLegislator) Resolution {
	if id, ok := s[profile.LegislatorProfileID]; ok {
		return Resolution{CanonicalID: IntCanonicalID(id)}
	}
	return Resolution{Unresolved: &UnresolvedIdentity{
		SessionID:           profile.SessionID,
		LegislatorProfileID: profile.LegislatorProfileID,
		Name:                profile.Name,
		Reason:              ReasonUnmapped,
		Candidates:          []Candidate{},
	}}
}

type extractorFunc func(string) string

func (f extractorFunc) Extract(html string) string { return f(html) }

var testEndpoints = NewEndpoints("http://api.test", "http://docs.test")

func testDeps(f Fetcher) Deps {
	return Deps{
		Fetcher:   f,
		Endpoints: testEndpoints,
		Extractor: extractorFunc(func(string) string { return "Section 1." }),
		Resolver:  stubResolver{101: 7},
	}
}
