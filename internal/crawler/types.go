package crawler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// EndpointClass tells the fetcher how to treat an HTTP failure.
type EndpointClass int

// Endpoint classes.
const (
	// EndpointRequired endpoints abort the current entity on failure.
	EndpointRequired EndpointClass = iota
	// EndpointOptional endpoints are sparse upstream; a failure degrades to an empty section.
	EndpointOptional
)

func (c EndpointClass) String() string {
	if c == EndpointOptional {
		return "optional"
	}
	return "required"
}

// Outcome classifies a finished fetch.
type Outcome int

// Fetch outcomes.
const (
	OutcomeOK Outcome = iota
	OutcomeSoftFail
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeSoftFail:
		return "soft_fail"
	default:
		return "fatal"
	}
}

// FetchRequest captures everything needed to fetch an API URL.
type FetchRequest struct {
	URL   string
	Class EndpointClass
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Outcome    Outcome
	Attempts   int
	Duration   time.Duration
}

// Session is the archived record for one legislative session.
type Session struct {
	SessionID            string                `json:"session_id"`
	SessionName          string                `json:"session_name"`
	SessionNumber        json.RawMessage       `json:"session_number"`
	IsCurrentSession     bool                  `json:"is_current_session"`
	IsSpecialSession     bool                  `json:"is_special_session"`
	StartDate            string                `json:"start_date"`
	EndDate              string                `json:"end_date"`
	Docs                 []Doc                 `json:"docs"`
	Bills                []int                 `json:"bills"`
	Legislators          []int                 `json:"legislators"`
	Committees           []int                 `json:"committees"`
	SessionLaws          map[int]int           `json:"session_laws"`
	ConferenceCommittees []ConferenceCommittee `json:"conference_committees"`
}

// Doc is a session-level document with its download URL.
type Doc struct {
	SessionID     int             `json:"session_id"`
	DocumentID    int             `json:"document_id"`
	DocumentTitle string          `json:"document_title"`
	DocumentDate  string          `json:"document_date"`
	DocumentType  json.RawMessage `json:"document_type"`
	DocumentURL   string          `json:"document_url"`
}

// ConferenceCommittee summarizes one conference committee meeting.
type ConferenceCommittee struct {
	MeetingTime string          `json:"meeting_time"`
	BillID      *int            `json:"bill_id"`
	Staff       json.RawMessage `json:"staff"`
	Secretary   json.RawMessage `json:"secretary"`
	Minutes     *string         `json:"minutes"`
	Report      *string         `json:"report"`
}

// Bill is the archived record for one bill.
type Bill struct {
	SessionID    int              `json:"session_id"`
	BillID       int              `json:"bill_id"`
	BillType     string           `json:"bill_type"`
	BillNumber   json.RawMessage  `json:"bill_number"`
	BillTitle    string           `json:"bill_title"`
	Sponsors     []Sponsor        `json:"sponsors"`
	Keywords     []string         `json:"keywords"`
	Audio        []Audio          `json:"audio"`
	BillVersions []BillVersion    `json:"bill_versions"`
	Amendments   []Amendment      `json:"amendments"`
	FiscalNotes  []int            `json:"fiscal_notes"`
	ActionLog    []ActionLogEntry `json:"action_log"`
	SessionLaw   *int             `json:"session_law,omitempty"`
}

// Sponsor links a bill to a legislator profile.
type Sponsor struct {
	LegislatorProfileID int  `json:"legislator_profile_id"`
	IsPrime             bool `json:"is_prime"`
}

// Audio is one recorded hearing segment that discussed a bill.
type Audio struct {
	MeetingDatetime string          `json:"meeting_datetime"`
	Committee       string          `json:"committee"`
	URL             string          `json:"url"`
	StartSeconds    json.RawMessage `json:"start_seconds"`
}

// BillVersion pairs a version label with its extracted text.
type BillVersion struct {
	BillID          int    `json:"bill_id"`
	BillVersionID   int    `json:"bill_version_id"`
	BillVersion     string `json:"bill_version"`
	BillVersionDate string `json:"bill_version_date"`
	BillText        string `json:"bill_text"`
}

// Amendment is an amendment document offered to a bill.
type Amendment struct {
	BillID                    int     `json:"bill_id"`
	DocumentID                *int    `json:"document_id"`
	DocumentURL               *string `json:"document_url"`
	LegislatorProfileID       *int    `json:"legislator_profile_id"`
	DocumentIDInstructions    *int    `json:"document_id_instructions"`
	DocumentIDInstructionsURL *string `json:"document_id_instructions_url"`
}

// ActionLogEntry is one step in a bill's history.
type ActionLogEntry struct {
	BillID              int             `json:"bill_id"`
	ActionDate          string          `json:"action_date"`
	DocumentID          *int            `json:"document_id"`
	DocumentURL         *string         `json:"document_url"`
	StatusText          string          `json:"status_text"`
	JournalPage         json.RawMessage `json:"journal_page"`
	CommitteeIDAction   *int            `json:"committee_id_action"`
	CommitteeIDAssigned *int            `json:"committee_id_assigned"`
	Result              json.RawMessage `json:"result"`
	Vote                Vote            `json:"vote"`
}

// Vote holds a roll call grouped by recorded value. It serializes flat:
// vote_id and president_vote sit next to one key per vote value.
// A zero Vote serializes as {}.
type Vote struct {
	VoteID        *int
	PresidentVote json.RawMessage
	Tally         map[string][]int
}

// RollCall is one member's recorded vote.
type RollCall struct {
	SessionMemberID int    `json:"SessionMemberId"`
	Value           string `json:"Vote1"`
}

// GroupRollCall groups member ids by their recorded vote value, keeping
// roll-call order within each group.
func GroupRollCall(calls []RollCall) map[string][]int {
	out := make(map[string][]int)
	for _, rc := range calls {
		out[rc.Value] = append(out[rc.Value], rc.SessionMemberID)
	}
	return out
}

// IsZero reports whether the action carried no vote.
func (v Vote) IsZero() bool {
	return v.VoteID == nil && len(v.PresidentVote) == 0 && len(v.Tally) == 0
}

// Values returns the tally keys in sorted order.
func (v Vote) Values() []string {
	keys := make([]string, 0, len(v.Tally))
	for k := range v.Tally {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON flattens the tally into the vote object.
func (v Vote) MarshalJSON() ([]byte, error) {
	if v.IsZero() {
		return []byte("{}"), nil
	}
	flat := make(map[string]any, len(v.Tally)+2)
	for value, members := range v.Tally {
		flat[value] = members
	}
	flat["vote_id"] = v.VoteID
	president := v.PresidentVote
	if len(president) == 0 {
		president = json.RawMessage("null")
	}
	flat["president_vote"] = president
	return json.Marshal(flat)
}

// UnmarshalJSON reverses MarshalJSON.
func (v *Vote) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return fmt.Errorf("decode vote: %w", err)
	}
	*v = Vote{}
	for key, raw := range flat {
		switch key {
		case "vote_id":
			var id *int
			if err := json.Unmarshal(raw, &id); err != nil {
				return fmt.Errorf("decode vote_id: %w", err)
			}
			v.VoteID = id
		case "president_vote":
			v.PresidentVote = append(json.RawMessage(nil), raw...)
		default:
			var members []int
			if err := json.Unmarshal(raw, &members); err != nil {
				return fmt.Errorf("decode vote value %q: %w", key, err)
			}
			if v.Tally == nil {
				v.Tally = make(map[string][]int)
			}
			v.Tally[key] = members
		}
	}
	return nil
}

// LegislatorProfile is a legislator's session-scoped profile.
type LegislatorProfile struct {
	SessionID             int             `json:"session_id"`
	Year                  json.RawMessage `json:"year"`
	LegislatorProfileID   int             `json:"legislator_profile_id"`
	Chamber               string          `json:"chamber"`
	Name                  string          `json:"name"`
	District              json.RawMessage `json:"district"`
	Address1              string          `json:"address1"`
	Address2              string          `json:"address2"`
	City                  string          `json:"city"`
	State                 string          `json:"state"`
	Zipcode               string          `json:"zipcode"`
	PhoneHome             string          `json:"phone_home"`
	PhoneCapitol          string          `json:"phone_capitol"`
	PhoneBiz              string          `json:"phone_biz"`
	PhoneCell             string          `json:"phone_cell"`
	Email                 string          `json:"email"`
	Picture               string          `json:"picture"`
	Party                 string          `json:"party"`
	Term                  string          `json:"term"`
	Occupation            string          `json:"occupation"`
	Counties              json.RawMessage `json:"counties"`
	LegislatorCanonicalID CanonicalID     `json:"legislator_canonical_id"`
}

// CanonicalID is the cross-session legislator id. It is an integer when the
// crosswalk value parses, the raw crosswalk value otherwise, and null when
// there is no crosswalk entry.
type CanonicalID struct {
	Int   int64
	Raw   string
	Valid bool
}

// IntCanonicalID returns a resolved integer id.
func IntCanonicalID(id int64) CanonicalID {
	return CanonicalID{Int: id, Raw: strconv.FormatInt(id, 10), Valid: true}
}

// RawCanonicalID keeps a crosswalk value that is not an integer.
func RawCanonicalID(raw string) CanonicalID {
	return CanonicalID{Raw: raw, Valid: true}
}

// IsInt reports whether the id resolved to an integer.
func (c CanonicalID) IsInt() bool {
	return c.Valid && c.Raw == strconv.FormatInt(c.Int, 10)
}

// MarshalJSON writes an integer, a string, or null.
func (c CanonicalID) MarshalJSON() ([]byte, error) {
	switch {
	case !c.Valid:
		return []byte("null"), nil
	case c.IsInt():
		return []byte(strconv.FormatInt(c.Int, 10)), nil
	default:
		return json.Marshal(c.Raw)
	}
}

// UnmarshalJSON accepts an integer, a string, or null.
func (c *CanonicalID) UnmarshalJSON(data []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("decode canonical id: %w", err)
	}
	switch val := v.(type) {
	case nil:
		*c = CanonicalID{}
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return fmt.Errorf("canonical id %s is not an integer: %w", val, err)
		}
		*c = IntCanonicalID(n)
	case string:
		*c = RawCanonicalID(val)
	default:
		return fmt.Errorf("unsupported canonical id %s", string(data))
	}
	return nil
}

// Committee is the archived record for a session committee.
type Committee struct {
	SessionID           int               `json:"session_id"`
	CommitteeID         int               `json:"committee_id"`
	CommitteeName       string            `json:"committee_name"`
	CommitteeRoom       string            `json:"committee_room"`
	CommitteeDays       string            `json:"committee_days"`
	IsFullBody          bool              `json:"is_full_body"`
	CommitteeIDCanon    *int              `json:"committee_id_canon"`
	Chamber             string            `json:"chamber"`
	Authority           json.RawMessage   `json:"authority"`
	Members             []Member          `json:"members"`
	NonCommitteeMembers json.RawMessage   `json:"non_committee_members"`
	Staff               []json.RawMessage `json:"staff"`
}

// Member is a committee seat.
type Member struct {
	LegislatorProfileID int    `json:"legislator_profile_id"`
	CommitteeMemberType string `json:"committee_member_type"`
}

// HistoricalLegislator is one entry of the bulk historical member list.
type HistoricalLegislator struct {
	LegislatorIDCanon int             `json:"legislator_id_canon"`
	NameFirst         string          `json:"name_first"`
	NameLast          string          `json:"name_last"`
	NameMiddle        string          `json:"name_middle"`
	Gender            string          `json:"gender"`
	Birthday          *string         `json:"birthday"`
	Deathday          *string         `json:"deathday"`
	MemberType        string          `json:"member_type"`
	Counties          string          `json:"counties"`
	Cities            string          `json:"cities"`
	YearStart         json.RawMessage `json:"year_start"`
	YearEnd           json.RawMessage `json:"year_end"`
	Notes             *string         `json:"notes"`
	Offices           string          `json:"offices"`
	Parties           string          `json:"parties"`
	Chambers          string          `json:"chambers"`
}

// Candidate is a historical legislator whose name parts appear in an
// unresolved profile's name.
type Candidate struct {
	LegislatorIDCanon int             `json:"legislator_id_canon"`
	NameFirst         string          `json:"name_first"`
	NameLast          string          `json:"name_last"`
	YearStart         json.RawMessage `json:"year_start"`
	YearEnd           json.RawMessage `json:"year_end"`
	Chambers          string          `json:"chambers"`
	Parties           string          `json:"parties"`
	Cities            string          `json:"cities"`
	Counties          string          `json:"counties"`
	Score             float64         `json:"score"`
}

// Unresolved reasons.
const (
	ReasonUnmapped   = "unmapped"
	ReasonNonInteger = "non_integer"
)

// UnresolvedIdentity describes a profile whose canonical id needs a human.
type UnresolvedIdentity struct {
	SessionID           int         `json:"session_id"`
	LegislatorProfileID int         `json:"legislator_profile_id"`
	Name                string      `json:"name"`
	Chamber             string      `json:"chamber"`
	Party               string      `json:"party"`
	City                string      `json:"city"`
	Reason              string      `json:"reason"`
	RawValue            string      `json:"raw_value,omitempty"`
	Candidates          []Candidate `json:"candidates"`
}

// Resolution is the outcome of an identity lookup.
type Resolution struct {
	CanonicalID CanonicalID
	Unresolved  *UnresolvedIdentity
}

// Tally counts what happened to one entity kind during a run.
type Tally struct {
	Fetched int `json:"fetched"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Summary reports the outcome of one crawl pass.
type Summary struct {
	RunID       string `json:"run_id"`
	Sessions    Tally  `json:"sessions"`
	Bills       Tally  `json:"bills"`
	Legislators Tally  `json:"legislators"`
	Committees  Tally  `json:"committees"`
	Historical  int    `json:"historical"`

	// HistoricalFailed is set when the bulk historical file could not be refreshed.
	HistoricalFailed bool                 `json:"historical_failed"`
	Unresolved       []UnresolvedIdentity `json:"unresolved"`
}

// Failures returns the number of aborted entities across all kinds.
func (s Summary) Failures() int {
	n := s.Sessions.Failed + s.Bills.Failed + s.Legislators.Failed + s.Committees.Failed
	if s.HistoricalFailed {
		n++
	}
	return n
}

// ArchivedEvent is published after an entity is written.
type ArchivedEvent struct {
	RunID     string    `json:"run_id"`
	Kind      string    `json:"kind"`
	EntityID  int       `json:"entity_id"`
	SessionID int       `json:"session_id"`
	Key       string    `json:"key"`
	Digest    string    `json:"digest"`
	WrittenAt time.Time `json:"written_at"`
}

// EventKind returns the archived entity kind.
func (e ArchivedEvent) EventKind() string {
	return e.Kind
}
