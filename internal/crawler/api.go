package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Default upstream hosts.
const (
	DefaultBaseURL         = "https://sdlegislature.gov"
	DefaultDocumentBaseURL = "https://mylrc.sdlegislature.gov/api/Documents"
)

// sessionDocumentTypes are the document type codes archived with each session.
var sessionDocumentTypes = []int{24, 68, 60, 71, 72, 73, 74}

// Endpoints builds upstream API URLs.
type Endpoints struct {
	BaseURL         string
	DocumentBaseURL string
}

// NewEndpoints trims trailing slashes and fills in default hosts.
func NewEndpoints(baseURL, documentBaseURL string) Endpoints {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if documentBaseURL == "" {
		documentBaseURL = DefaultDocumentBaseURL
	}
	return Endpoints{
		BaseURL:         strings.TrimRight(baseURL, "/"),
		DocumentBaseURL: strings.TrimRight(documentBaseURL, "/"),
	}
}

func (e Endpoints) api(format string, args ...any) string {
	return e.BaseURL + "/api/" + fmt.Sprintf(format, args...)
}

// Sessions lists every session.
func (e Endpoints) Sessions() string { return e.api("Sessions") }

// Session returns session metadata.
func (e Endpoints) Session(id int) string { return e.api("Sessions/%d", id) }

// SessionDocuments lists the archived document types for a session. The
// Type parameter repeats, so the query is built by hand.
func (e Endpoints) SessionDocuments(id int) string {
	q := url.Values{}
	q.Set("SessionIds", strconv.Itoa(id))
	parts := []string{q.Encode()}
	for _, t := range sessionDocumentTypes {
		parts = append(parts, "Type="+strconv.Itoa(t))
	}
	return e.api("Documents/DocumentType") + "?" + strings.Join(parts, "&")
}

// SessionBills lists the bill ids of a session.
func (e Endpoints) SessionBills(id int) string { return e.api("Bills/Session/Light/%d", id) }

// SessionMembers lists the legislator profile ids of a session.
func (e Endpoints) SessionMembers(id int) string { return e.api("SessionMembers/Session/%d", id) }

// SessionCommittees lists the committee ids of a session.
func (e Endpoints) SessionCommittees(id int) string {
	return e.api("SessionCommittees/Session/%d", id)
}

// SessionLaws maps bills to session laws.
func (e Endpoints) SessionLaws(id int) string { return e.api("SessionLaws/%d", id) }

// ConferenceCommittees lists a session's conference committees.
func (e Endpoints) ConferenceCommittees(id int) string {
	return e.api("ConferenceCommittees/Session/%d", id)
}

// Bill returns bill detail.
func (e Endpoints) Bill(id int) string { return e.api("Bills/%d", id) }

// BillAudio lists hearing audio for a bill.
func (e Endpoints) BillAudio(id int) string { return e.api("Bills/Audio/%d", id) }

// BillVersions lists a bill's versions.
func (e Endpoints) BillVersions(id int) string { return e.api("Bills/Versions/%d", id) }

// BillHTML returns the HTML body of one bill version document.
func (e Endpoints) BillHTML(documentID int) string { return e.api("Bills/HTML/%d", documentID) }

// BillAmendments lists amendments to a bill.
func (e Endpoints) BillAmendments(id int) string { return e.api("Bills/Amendments/%d", id) }

// BillFiscalNotes lists fiscal notes for a bill.
func (e Endpoints) BillFiscalNotes(id int) string { return e.api("Bills/FiscalNotes/%d", id) }

// BillActionLog lists a bill's actions.
func (e Endpoints) BillActionLog(id int) string { return e.api("Bills/ActionLog/%d", id) }

// Vote returns a vote's roll call.
func (e Endpoints) Vote(id int) string { return e.api("Votes/%d", id) }

// MemberDetail returns a legislator profile.
func (e Endpoints) MemberDetail(id int) string { return e.api("SessionMembers/Detail/%d", id) }

// CommitteeDetail returns committee detail.
func (e Endpoints) CommitteeDetail(id int) string {
	return e.api("SessionCommittees/Detail/%d", id)
}

// HistoricalMembers returns every legislator who ever served.
func (e Endpoints) HistoricalMembers() string { return e.api("Historical/AllFlatMembers") }

// DocumentURL returns the download URL of a document.
func (e Endpoints) DocumentURL(documentID int, ext string) string {
	return fmt.Sprintf("%s/%d.%s", e.DocumentBaseURL, documentID, ext)
}

// optionalDocumentURL returns a PDF URL when the id is present.
func (e Endpoints) optionalDocumentURL(documentID *int) *string {
	if documentID == nil {
		return nil
	}
	u := e.DocumentURL(*documentID, "pdf")
	return &u
}

// Deps bundles the collaborators every entity crawler needs.
type Deps struct {
	Fetcher   Fetcher
	Endpoints Endpoints
	Extractor TextExtractor
	Resolver  IdentityResolver
	Logger    *zap.Logger
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// getJSON fetches url and decodes its body into v. It reports false without
// an error when an optional endpoint soft-failed or returned an unreadable
// payload, leaving v untouched.
func (d Deps) getJSON(ctx context.Context, rawURL string, class EndpointClass, v any) (bool, error) {
	resp, err := d.Fetcher.Fetch(ctx, FetchRequest{URL: rawURL, Class: class})
	if err != nil {
		return false, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if resp.Outcome == OutcomeSoftFail {
		d.logger().Debug("optional endpoint unavailable",
			zap.String("url", rawURL),
			zap.Int("status", resp.StatusCode),
		)
		return false, nil
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		if class == EndpointOptional {
			d.logger().Warn("optional payload unreadable",
				zap.String("url", rawURL),
				zap.Error(err),
			)
			return false, nil
		}
		return false, fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return true, nil
}

// fileExtension mirrors the "last dot-separated part" rule used for
// document file names.
func fileExtension(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Upstream payload shapes. Only the fields the records use are declared.

type sessionListPayload struct {
	SessionID int `json:"SessionId"`
}

type sessionPayload struct {
	SessionID      int             `json:"SessionId"`
	YearString     string          `json:"YearString"`
	SessionNumber  json.RawMessage `json:"SessionNumber"`
	CurrentSession bool            `json:"CurrentSession"`
	SpecialSession bool            `json:"SpecialSession"`
}

type documentPayload struct {
	SessionID    int             `json:"SessionId"`
	DocumentID   int             `json:"DocumentId"`
	Title        string          `json:"Title"`
	DocumentDate string          `json:"DocumentDate"`
	DocumentType json.RawMessage `json:"DocumentType"`
	WebFilename  string          `json:"WebFilename"`
}

type billLightPayload struct {
	BillID int `json:"BillId"`
}

type sessionMemberPayload struct {
	SessionMemberID int `json:"SessionMemberId"`
}

type sessionCommitteePayload struct {
	SessionCommitteeID int `json:"SessionCommitteeId"`
}

type sessionLawPayload struct {
	BillID       int `json:"BillId"`
	SessionLawID int `json:"SessionLawId"`
}

type documentRef struct {
	DocumentID int `json:"DocumentId"`
}

type conferenceCommitteePayload struct {
	MeetingTime string `json:"MeetingTime"`
	Bill        *struct {
		BillID int `json:"BillId"`
	} `json:"Bill"`
	Staff     json.RawMessage `json:"Staff"`
	Secretary json.RawMessage `json:"Secretary"`
	Minutes   *documentRef    `json:"Minutes"`
	Report    *documentRef    `json:"Report"`
}

type billPayload struct {
	BillID       int             `json:"BillId"`
	BillTypeFull string          `json:"BillTypeFull"`
	BillNumber   json.RawMessage `json:"BillNumber"`
	Title        string          `json:"Title"`
	BillSponsor  []struct {
		SessionMemberID int    `json:"SessionMemberId"`
		SponsorType     string `json:"SponsorType"`
	} `json:"BillSponsor"`
	Keywords []struct {
		Keyword string `json:"Keyword"`
	} `json:"Keywords"`
}

type audioPayload struct {
	MeetingDate   string          `json:"MeetingDate"`
	CommitteeCode string          `json:"CommitteeCode"`
	URL           string          `json:"Url"`
	StartSeconds  json.RawMessage `json:"StartSeconds"`
}

type versionPayload struct {
	DocumentID   int    `json:"DocumentId"`
	BillVersion  string `json:"BillVersion"`
	DocumentDate string `json:"DocumentDate"`
}

type versionHTMLPayload struct {
	DocumentHTML *string `json:"DocumentHtml"`
}

type amendmentPayload struct {
	DocumentID                      *int `json:"DocumentId"`
	AmendmentInstructionsDocumentID *int `json:"AmendmentInstructionsDocumentId"`
	SessionMemberID                 *int `json:"SessionMemberId"`
}

type actionPayload struct {
	ActionDate        string          `json:"ActionDate"`
	DocumentID        *int            `json:"DocumentId"`
	StatusText        string          `json:"StatusText"`
	JournalPage       json.RawMessage `json:"JournalPage"`
	Result            json.RawMessage `json:"Result"`
	AssignedCommittee *struct {
		AssignedCommitteeID int `json:"AssignedCommitteeId"`
	} `json:"AssignedCommittee"`
	ActionCommittee *struct {
		ActionCommitteeID int `json:"ActionCommitteeId"`
	} `json:"ActionCommittee"`
	Vote *struct {
		VoteID        int             `json:"VoteId"`
		PresidentVote json.RawMessage `json:"PresidentVote"`
	} `json:"Vote"`
}

type votePayload struct {
	RollCalls []RollCall `json:"RollCalls"`
}

type memberPayload struct {
	Year            json.RawMessage `json:"Year"`
	SessionMemberID int             `json:"SessionMemberId"`
	MemberType      string          `json:"MemberType"`
	FirstLastName   string          `json:"FirstLastName"`
	District        json.RawMessage `json:"District"`
	HomeAddress1    string          `json:"HomeAddress1"`
	HomeAddress2    string          `json:"HomeAddress2"`
	HomeCity        string          `json:"HomeCity"`
	HomeState       string          `json:"HomeState"`
	HomeZip         string          `json:"HomeZip"`
	HomePhone       string          `json:"HomePhone"`
	CapitolPhone    string          `json:"CapitolPhone"`
	BusinessPhone   string          `json:"BusinessPhone"`
	CellPhone       string          `json:"CellPhone"`
	EmailState      string          `json:"EmailState"`
	Picture         string          `json:"Picture"`
	PartyName       string          `json:"PartyName"`
	MemberTermName  string          `json:"MemberTermName"`
	Occupation      string          `json:"Occupation"`
	Counties        json.RawMessage `json:"Counties"`
}

type committeePayload struct {
	Committee *struct {
		FullName string `json:"FullName"`
		Room     string `json:"Room"`
		Days     string `json:"Days"`
	} `json:"Committee"`
	FullBody            bool            `json:"FullBody"`
	CommitteeID         *int            `json:"CommitteeId"`
	Body                string          `json:"Body"`
	Authority           json.RawMessage `json:"Authority"`
	NonCommitteeMembers json.RawMessage `json:"NonCommitteeMembers"`
	CommitteeMembers    []struct {
		SessionMemberID     int    `json:"SessionMemberId"`
		CommitteeMemberType string `json:"CommitteeMemberType"`
	} `json:"CommitteeMembers"`
	Staff []struct {
		UserID json.RawMessage `json:"UserId"`
	} `json:"Staff"`
}

type historicalPayload struct {
	MemberID   int             `json:"MemberId"`
	FirstName  string          `json:"FirstName"`
	LastName   string          `json:"LastName"`
	MiddleName string          `json:"MiddleName"`
	Gender     string          `json:"Gender"`
	Birthdate  *string         `json:"Birthdate"`
	Deathdate  *string         `json:"Deathdate"`
	MemberType string          `json:"MemberType"`
	County     string          `json:"County"`
	City       string          `json:"City"`
	StartYear  json.RawMessage `json:"StartYear"`
	EndYear    json.RawMessage `json:"EndYear"`
	Remarks    *string         `json:"Remarks"`
	Office     string          `json:"Office"`
	Party      string          `json:"Party"`
	Body       string          `json:"Body"`
}
