// Package criteria turns IMAP SEARCH text into go-imap search criteria.
//
// Besides the standard RFC 3501 search keys it understands a few relative
// date macros which are resolved against the parser's clock:
//
//	FIND <text>                  TEXT <text>
//	TODAY, YESTERDAY             ON <date>
//	THIS WEEK|MONTH|YEAR         SINCE <start of period>
//	LAST WEEK|MONTH|YEAR         (SINCE <start> BEFORE <end>)
//	OLDER THAN <n> <unit>        BEFORE <now - n units>
//	NEWER THAN <n> <unit>        SINCE <now - n units>
//
// Weeks start on Monday. Units are DAY(S), WEEK(S), MONTH(S) and YEAR(S).
package criteria

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
)

// DateLayout is the IMAP date format.
const DateLayout = "2-Jan-2006"

// Query is a parsed search expression.
type Query struct {
	// Raw is the text as given by the caller.
	Raw string
	// Expanded is the equivalent standard SEARCH text with macros resolved.
	Expanded string
	Criteria *imap.SearchCriteria
}

// Parser parses search text. The zero value uses time.Now.
type Parser struct {
	Now func() time.Time
}

// Parse parses raw with the default clock.
func Parse(raw string) (*Query, error) {
	return Parser{}.Parse(raw)
}

// Parse parses raw into a Query. An empty expression matches everything.
func (p Parser) Parse(raw string) (*Query, error) {
	tokens, err := tokenize(raw)
	if err != nil {
		return nil, &SyntaxError{Query: raw, Msg: err.Error()}
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	at := now()
	st := &state{raw: raw, tokens: tokens, now: at, today: dateOf(at)}

	criteria := &imap.SearchCriteria{}
	for !st.done() {
		key, err := st.key()
		if err != nil {
			return nil, err
		}
		and(criteria, &key)
	}

	expanded := strings.Join(st.out, " ")
	if expanded == "" {
		expanded = "ALL"
	}
	return &Query{Raw: raw, Expanded: expanded, Criteria: criteria}, nil
}

// SyntaxError reports a search expression that could not be parsed.
type SyntaxError struct {
	Query string
	Pos   int
	Msg   string
}

func (e *SyntaxError) Error() string {
	if e.Pos > 0 {
		return fmt.Sprintf("search criteria %q: %s at offset %d", e.Query, e.Msg, e.Pos)
	}
	return fmt.Sprintf("search criteria %q: %s", e.Query, e.Msg)
}

type state struct {
	raw    string
	tokens []token
	pos    int
	now    time.Time
	today  time.Time
	out    []string
}

func (s *state) done() bool {
	return s.pos >= len(s.tokens)
}

func (s *state) errorf(format string, args ...any) error {
	pos := len(s.raw)
	if s.pos < len(s.tokens) {
		pos = s.tokens[s.pos].pos
	}
	return &SyntaxError{Query: s.raw, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (s *state) next() (token, bool) {
	if s.done() {
		return token{}, false
	}
	t := s.tokens[s.pos]
	s.pos++
	return t, true
}

func (s *state) peekAtom() string {
	if s.done() || s.tokens[s.pos].kind != tokenAtom {
		return ""
	}
	return strings.ToUpper(s.tokens[s.pos].value)
}

func (s *state) emit(parts ...string) {
	s.out = append(s.out, parts...)
}

// astring reads a search key argument: an atom or a quoted string.
func (s *state) astring(name string) (string, error) {
	t, ok := s.next()
	if !ok {
		return "", s.errorf("%s requires an argument", name)
	}
	if t.kind != tokenAtom && t.kind != tokenString {
		s.pos--
		return "", s.errorf("%s requires an argument", name)
	}
	return t.value, nil
}

func (s *state) number(name string) (int64, error) {
	value, err := s.astring(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 {
		s.pos--
		return 0, s.errorf("%s requires a non-negative number, got %q", name, value)
	}
	return n, nil
}

func (s *state) date(name string) (time.Time, error) {
	value, err := s.astring(name)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		s.pos--
		return time.Time{}, s.errorf("%s requires a date like 2-Jan-2006, got %q", name, value)
	}
	return t, nil
}

var flagKeys = map[string]imap.Flag{
	"ANSWERED": imap.FlagAnswered,
	"DELETED":  imap.FlagDeleted,
	"DRAFT":    imap.FlagDraft,
	"FLAGGED":  imap.FlagFlagged,
	"SEEN":     imap.FlagSeen,
}

var headerKeys = map[string]string{
	"BCC":     "Bcc",
	"CC":      "Cc",
	"FROM":    "From",
	"SUBJECT": "Subject",
	"TO":      "To",
}

func (s *state) key() (imap.SearchCriteria, error) {
	t, ok := s.next()
	if !ok {
		return imap.SearchCriteria{}, s.errorf("unexpected end of criteria")
	}

	switch t.kind {
	case tokenOpen:
		return s.group()
	case tokenClose:
		s.pos--
		return imap.SearchCriteria{}, s.errorf("unexpected )")
	case tokenString:
		s.pos--
		return imap.SearchCriteria{}, s.errorf("unexpected string %q", t.value)
	}

	name := strings.ToUpper(t.value)
	if flag, ok := flagKeys[name]; ok {
		s.emit(name)
		return imap.SearchCriteria{Flag: []imap.Flag{flag}}, nil
	}
	if strings.HasPrefix(name, "UN") {
		if flag, ok := flagKeys[strings.TrimPrefix(name, "UN")]; ok {
			s.emit(name)
			return imap.SearchCriteria{NotFlag: []imap.Flag{flag}}, nil
		}
	}
	if header, ok := headerKeys[name]; ok {
		value, err := s.astring(name)
		if err != nil {
			return imap.SearchCriteria{}, err
		}
		s.emit(name, quote(value))
		return imap.SearchCriteria{Header: []imap.SearchCriteriaHeaderField{{Key: header, Value: value}}}, nil
	}

	switch name {
	case "ALL":
		s.emit(name)
		return imap.SearchCriteria{}, nil
	case "KEYWORD", "UNKEYWORD":
		value, err := s.astring(name)
		if err != nil {
			return imap.SearchCriteria{}, err
		}
		s.emit(name, value)
		if name == "KEYWORD" {
			return imap.SearchCriteria{Flag: []imap.Flag{imap.Flag(value)}}, nil
		}
		return imap.SearchCriteria{NotFlag: []imap.Flag{imap.Flag(value)}}, nil
	case "HEADER":
		field, err := s.astring(name)
		if err != nil {
			return imap.SearchCriteria{}, err
		}
		value, err := s.astring(name)
		if err != nil {
			return imap.SearchCriteria{}, err
		}
		s.emit(name, quote(field), quote(value))
		return imap.SearchCriteria{Header: []imap.SearchCriteriaHeaderField{{Key: field, Value: value}}}, nil
	case "BODY", "TEXT", "FIND":
		value, err := s.astring(name)
		if err != nil {
			return imap.SearchCriteria{}, err
		}
		if name == "BODY" {
			s.emit(name, quote(value))
			return imap.SearchCriteria{Body: []string{value}}, nil
		}
		s.emit("TEXT", quote(value))
		return imap.SearchCriteria{Text: []string{value}}, nil
	case "BEFORE", "SINCE", "ON", "SENTBEFORE", "SENTSINCE", "SENTON":
		d, err := s.date(name)
		if err != nil {
			return imap.SearchCriteria{}, err
		}
		s.emit(name, d.Format(DateLayout))
		return dateCriteria(name, d), nil
	case "LARGER", "SMALLER":
		n, err := s.number(name)
		if err != nil {
			return imap.SearchCriteria{}, err
		}
		s.emit(name, strconv.FormatInt(n, 10))
		if name == "LARGER" {
			return imap.SearchCriteria{Larger: n}, nil
		}
		if n == 0 {
			return matchNothing(), nil
		}
		return imap.SearchCriteria{Smaller: n}, nil
	case "NOT":
		s.emit(name)
		inner, err := s.key()
		if err != nil {
			return imap.SearchCriteria{}, err
		}
		return imap.SearchCriteria{Not: []imap.SearchCriteria{inner}}, nil
	case "OR":
		s.emit(name)
		left, err := s.key()
		if err != nil {
			return imap.SearchCriteria{}, err
		}
		right, err := s.key()
		if err != nil {
			return imap.SearchCriteria{}, err
		}
		return imap.SearchCriteria{Or: [][2]imap.SearchCriteria{{left, right}}}, nil
	case "UID":
		value, err := s.astring(name)
		if err != nil {
			return imap.SearchCriteria{}, err
		}
		set, err := parseUIDSet(value)
		if err != nil {
			s.pos--
			return imap.SearchCriteria{}, s.errorf("UID: %v", err)
		}
		s.emit(name, value)
		return imap.SearchCriteria{UID: []imap.UIDSet{set}}, nil
	case "NEW", "OLD", "RECENT":
		s.pos--
		return imap.SearchCriteria{}, s.errorf("%s is not supported", name)
	case "TODAY":
		s.emit("ON", s.today.Format(DateLayout))
		return dateCriteria("ON", s.today), nil
	case "YESTERDAY":
		d := s.today.AddDate(0, 0, -1)
		s.emit("ON", d.Format(DateLayout))
		return dateCriteria("ON", d), nil
	case "THIS", "LAST":
		return s.period(name)
	case "OLDER", "NEWER", "YOUNGER":
		return s.relative(name)
	}

	if isSequenceSet(t.value) {
		set, err := parseSeqSet(t.value)
		if err != nil {
			s.pos--
			return imap.SearchCriteria{}, s.errorf("%v", err)
		}
		s.emit(t.value)
		return imap.SearchCriteria{SeqNum: []imap.SeqSet{set}}, nil
	}

	s.pos--
	return imap.SearchCriteria{}, s.errorf("unknown search key %q", t.value)
}

func (s *state) group() (imap.SearchCriteria, error) {
	s.emit("(")
	group := imap.SearchCriteria{}
	empty := true
	for {
		if s.done() {
			return imap.SearchCriteria{}, s.errorf("missing )")
		}
		if s.tokens[s.pos].kind == tokenClose {
			s.pos++
			break
		}
		key, err := s.key()
		if err != nil {
			return imap.SearchCriteria{}, err
		}
		and(&group, &key)
		empty = false
	}
	if empty {
		s.pos--
		return imap.SearchCriteria{}, s.errorf("empty group")
	}
	s.emit(")")
	return group, nil
}

func (s *state) period(name string) (imap.SearchCriteria, error) {
	unit := s.peekAtom()
	var start time.Time
	switch unit {
	case "WEEK":
		start = s.today.AddDate(0, 0, -((int(s.today.Weekday()) + 6) % 7))
	case "MONTH":
		start = time.Date(s.today.Year(), s.today.Month(), 1, 0, 0, 0, 0, time.UTC)
	case "YEAR":
		start = time.Date(s.today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return imap.SearchCriteria{}, s.errorf("%s must be followed by WEEK, MONTH or YEAR", name)
	}
	s.pos++

	if name == "THIS" {
		s.emit("SINCE", start.Format(DateLayout))
		return imap.SearchCriteria{Since: start}, nil
	}

	var previous time.Time
	switch unit {
	case "WEEK":
		previous = start.AddDate(0, 0, -7)
	case "MONTH":
		previous = start.AddDate(0, -1, 0)
	default:
		previous = start.AddDate(-1, 0, 0)
	}
	s.emit("(", "SINCE", previous.Format(DateLayout), "BEFORE", start.Format(DateLayout), ")")
	return imap.SearchCriteria{Since: previous, Before: start}, nil
}

// relative handles OLDER/NEWER THAN <n> <unit> and the RFC 5032 forms
// OLDER <seconds> / YOUNGER <seconds>, rounded to whole days.
func (s *state) relative(name string) (imap.SearchCriteria, error) {
	var cutoff time.Time
	if s.peekAtom() == "THAN" && name != "YOUNGER" {
		s.pos++
		n, err := s.number(name + " THAN")
		if err != nil {
			return imap.SearchCriteria{}, err
		}
		switch strings.TrimSuffix(s.peekAtom(), "S") {
		case "DAY":
			cutoff = s.today.AddDate(0, 0, -int(n))
		case "WEEK":
			cutoff = s.today.AddDate(0, 0, -7*int(n))
		case "MONTH":
			cutoff = s.today.AddDate(0, -int(n), 0)
		case "YEAR":
			cutoff = s.today.AddDate(-int(n), 0, 0)
		default:
			return imap.SearchCriteria{}, s.errorf("%s THAN %d needs a unit of DAYS, WEEKS, MONTHS or YEARS", name, n)
		}
		s.pos++
	} else {
		if name == "NEWER" {
			return imap.SearchCriteria{}, s.errorf("NEWER must be followed by THAN")
		}
		n, err := s.number(name)
		if err != nil {
			return imap.SearchCriteria{}, err
		}
		cutoff = dateOf(s.now.Add(-time.Duration(n) * time.Second))
	}

	if name == "OLDER" {
		s.emit("BEFORE", cutoff.Format(DateLayout))
		return imap.SearchCriteria{Before: cutoff}, nil
	}
	s.emit("SINCE", cutoff.Format(DateLayout))
	return imap.SearchCriteria{Since: cutoff}, nil
}

// matchNothing is NOT ALL. go-imap omits a zero SMALLER, so SMALLER 0
// has to be spelled this way to stay empty.
func matchNothing() imap.SearchCriteria {
	return imap.SearchCriteria{Not: []imap.SearchCriteria{{}}}
}

func dateCriteria(name string, d time.Time) imap.SearchCriteria {
	switch name {
	case "BEFORE":
		return imap.SearchCriteria{Before: d}
	case "SINCE":
		return imap.SearchCriteria{Since: d}
	case "ON":
		return imap.SearchCriteria{Since: d, Before: d.AddDate(0, 0, 1)}
	case "SENTBEFORE":
		return imap.SearchCriteria{SentBefore: d}
	case "SENTSINCE":
		return imap.SearchCriteria{SentSince: d}
	default:
		return imap.SearchCriteria{SentSince: d, SentBefore: d.AddDate(0, 0, 1)}
	}
}

// dateOf drops the clock part of t, keeping its calendar date.
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// and narrows dst by src. Unset fields of src leave dst untouched.
func and(dst, src *imap.SearchCriteria) {
	dst.SeqNum = append(dst.SeqNum, src.SeqNum...)
	dst.UID = append(dst.UID, src.UID...)
	dst.Since = later(dst.Since, src.Since)
	dst.Before = earlier(dst.Before, src.Before)
	dst.SentSince = later(dst.SentSince, src.SentSince)
	dst.SentBefore = earlier(dst.SentBefore, src.SentBefore)
	dst.Header = append(dst.Header, src.Header...)
	dst.Body = append(dst.Body, src.Body...)
	dst.Text = append(dst.Text, src.Text...)
	dst.Flag = append(dst.Flag, src.Flag...)
	dst.NotFlag = append(dst.NotFlag, src.NotFlag...)
	if src.Larger > dst.Larger {
		dst.Larger = src.Larger
	}
	if src.Smaller != 0 && (dst.Smaller == 0 || src.Smaller < dst.Smaller) {
		dst.Smaller = src.Smaller
	}
	dst.Not = append(dst.Not, src.Not...)
	dst.Or = append(dst.Or, src.Or...)
}

func later(a, b time.Time) time.Time {
	if a.IsZero() || b.After(a) {
		return b
	}
	return a
}

func earlier(a, b time.Time) time.Time {
	if a.IsZero() || (!b.IsZero() && b.Before(a)) {
		return b
	}
	return a
}
