// Copyright 2026 The Relic Authors
// SPDX-License-Identifier: Apache-2.0

// Package manifest parses Fossil structural artifacts: the
// line-oriented card format used by check-in manifests, wiki pages,
// tickets, technotes, forum posts, attachments, and clusters. It
// operates on already-resolved artifact content; resolution itself
// lives in lib/resolve.
//
// Every line starts with a single-letter card type followed by
// space-separated tokens. The card-type set is closed: an
// unrecognized letter means the content is not a structural artifact.
// Card types F, J, M, Q, and T may repeat; all others appear at most
// once.
package manifest

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/relic-scm/relic/lib/julian"
)

// CardType is a structural artifact card letter.
type CardType byte

// The closed card-type set.
const (
	CardAttachment   CardType = 'A'
	CardBaseline     CardType = 'B'
	CardComment      CardType = 'C'
	CardDate         CardType = 'D'
	CardTechnote     CardType = 'E'
	CardFile         CardType = 'F'
	CardThreadRoot   CardType = 'G'
	CardThreadTitle  CardType = 'H'
	CardInReplyTo    CardType = 'I'
	CardTicketChange CardType = 'J'
	CardTicketID     CardType = 'K'
	CardWikiTitle    CardType = 'L'
	CardMember       CardType = 'M'
	CardMimetype     CardType = 'N'
	CardParent       CardType = 'P'
	CardCherryPick   CardType = 'Q'
	CardRepoChecksum CardType = 'R'
	CardTag          CardType = 'T'
	CardUser         CardType = 'U'
	CardWikiText     CardType = 'W'
	CardChecksum     CardType = 'Z'
)

// cardNames maps each card type to its conventional name.
var cardNames = map[CardType]string{
	CardAttachment:   "attachment",
	CardBaseline:     "baseline",
	CardComment:      "comment",
	CardDate:         "datetime",
	CardTechnote:     "technote",
	CardFile:         "file",
	CardThreadRoot:   "thread_root",
	CardThreadTitle:  "thread_title",
	CardInReplyTo:    "in_reply_to",
	CardTicketChange: "ticket_change",
	CardTicketID:     "ticket_id",
	CardWikiTitle:    "wiki_title",
	CardMember:       "member",
	CardMimetype:     "mimetype",
	CardParent:       "parent",
	CardCherryPick:   "cherry_pick",
	CardRepoChecksum: "repository_checksum",
	CardTag:          "tag",
	CardUser:         "user_login",
	CardWikiText:     "wiki_text",
	CardChecksum:     "checksum",
}

// String returns the conventional name of a card type.
func (c CardType) String() string {
	if name, ok := cardNames[c]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%c)", byte(c))
}

// repeatable card types accumulate in document order.
func repeatable(c CardType) bool {
	switch c {
	case CardFile, CardTicketChange, CardMember, CardCherryPick, CardTag:
		return true
	}
	return false
}

// FileEntry is one F card: a file in a check-in.
type FileEntry struct {
	Name string
	Hash string
	// Perm carries the permission token ("x" executable, "l" symlink),
	// empty for regular files.
	Perm string
	// OldName is set when the F card records a rename.
	OldName string
}

// TagEntry is one T card. Name keeps its control prefix: "+" add,
// "-" cancel, "*" propagating.
type TagEntry struct {
	Name   string
	Target string
	Value  string
}

// TicketChangeEntry is one J card: a single ticket field change.
type TicketChangeEntry struct {
	Field string
	Value string
}

// AttachmentEntry is the A card of an attachment control artifact.
type AttachmentEntry struct {
	Filename string
	Target   string
	Hash     string
}

// TechnoteEntry is the E card: event time plus the technote id.
type TechnoteEntry struct {
	Time   time.Time
	Target string
}

// Manifest is a parsed structural artifact. Typed fields cover every
// card; Card provides generic keyed access to the raw token lists.
type Manifest struct {
	// RID and Hash identify the artifact in the store. Zero/empty when
	// the manifest was parsed from bytes without store context.
	RID  int64
	Hash string

	Attachment    *AttachmentEntry
	Baseline      string
	Comment       string
	Date          time.Time
	Technote      *TechnoteEntry
	Files         []FileEntry
	ThreadRoot    string
	ThreadTitle   string
	InReplyTo     string
	TicketChanges []TicketChangeEntry
	TicketID      string
	WikiTitle     string
	Members       []string
	Mimetype      string
	Parents       []string
	CherryPicks   []string
	RepoChecksum  string
	Tags          []TagEntry
	User          string
	WikiText      string
	Checksum      string

	cards map[CardType][][]string
}

// Card returns the raw token lists recorded for a card type, in
// document order, and whether the card was present. Tokens of
// escape-carrying cards are already unescaped.
func (m *Manifest) Card(c CardType) ([][]string, bool) {
	tokens, ok := m.cards[c]
	return tokens, ok
}

// PrimaryParent returns the first P-card token: the direct parent of
// a check-in. Empty for root check-ins and non-check-in artifacts.
func (m *Manifest) PrimaryParent() string {
	if len(m.Parents) == 0 {
		return ""
	}
	return m.Parents[0]
}

// Parse decodes a structural artifact from resolved content. A PGP
// clearsign wrapper, if present, is stripped first. Content that is
// not card-structured fails with an error naming the offending line.
func Parse(content []byte) (*Manifest, error) {
	m := &Manifest{cards: make(map[CardType][][]string)}

	body := stripClearsign(content)
	pos := 0

	for pos < len(body) {
		lineEnd := bytes.IndexByte(body[pos:], '\n')
		if lineEnd < 0 {
			lineEnd = len(body) - pos
		}
		line := string(body[pos : pos+lineEnd])
		pos += lineEnd + 1

		if line == "" {
			continue
		}
		if len(line) < 2 || line[1] != ' ' {
			return nil, fmt.Errorf("malformed card line %q", line)
		}

		cardType := CardType(line[0])
		tokens := strings.Split(line[2:], " ")

		// The W card is followed by a counted raw byte block, not by
		// more card lines, so it is handled outside applyCard.
		if cardType == CardWikiText {
			size, err := strconv.Atoi(tokens[0])
			if err != nil || size < 0 {
				return nil, fmt.Errorf("W card size %q", tokens[0])
			}
			if pos+size > len(body) {
				return nil, fmt.Errorf("W card declares %d bytes, %d remain", size, len(body)-pos)
			}
			m.WikiText = string(body[pos : pos+size])
			m.cards[CardWikiText] = [][]string{{m.WikiText}}
			pos += size + 1 // counted block plus its trailing newline
			continue
		}

		if err := m.applyCard(cardType, tokens); err != nil {
			return nil, err
		}

		if repeatable(cardType) {
			m.cards[cardType] = append(m.cards[cardType], tokens)
		} else {
			if _, dup := m.cards[cardType]; dup {
				return nil, fmt.Errorf("duplicate %c card", byte(cardType))
			}
			m.cards[cardType] = [][]string{tokens}
		}
	}

	return m, nil
}

// applyCard decodes one card's tokens into the typed fields. Tokens
// are unescaped in place where the card carries escaped text.
func (m *Manifest) applyCard(cardType CardType, tokens []string) error {
	switch cardType {
	case CardAttachment:
		for i, token := range tokens {
			tokens[i] = Unescape(token)
		}
		entry := &AttachmentEntry{Filename: tokens[0]}
		if len(tokens) > 1 {
			entry.Target = tokens[1]
		}
		if len(tokens) > 2 {
			entry.Hash = tokens[2]
		}
		m.Attachment = entry

	case CardBaseline:
		m.Baseline = tokens[0]

	case CardComment:
		m.Comment = Unescape(tokens[0])

	case CardDate:
		date, err := julian.ParseCardTime(tokens[0])
		if err != nil {
			return fmt.Errorf("D card: %w", err)
		}
		m.Date = date

	case CardTechnote:
		when, err := julian.ParseCardTime(tokens[0])
		if err != nil {
			return fmt.Errorf("E card: %w", err)
		}
		entry := &TechnoteEntry{Time: when}
		if len(tokens) > 1 {
			entry.Target = tokens[1]
		}
		m.Technote = entry

	case CardFile:
		for i, token := range tokens {
			tokens[i] = Unescape(token)
		}
		entry := FileEntry{Name: tokens[0]}
		if len(tokens) > 1 {
			entry.Hash = tokens[1]
		}
		if len(tokens) > 2 {
			entry.Perm = tokens[2]
		}
		if len(tokens) > 3 {
			entry.OldName = tokens[3]
		}
		m.Files = append(m.Files, entry)

	case CardThreadRoot:
		m.ThreadRoot = tokens[0]

	case CardThreadTitle:
		m.ThreadTitle = Unescape(tokens[0])

	case CardInReplyTo:
		m.InReplyTo = tokens[0]

	case CardTicketChange:
		for i, token := range tokens {
			tokens[i] = Unescape(token)
		}
		entry := TicketChangeEntry{Field: tokens[0]}
		if len(tokens) > 1 {
			entry.Value = tokens[1]
		}
		m.TicketChanges = append(m.TicketChanges, entry)

	case CardTicketID:
		m.TicketID = tokens[0]

	case CardWikiTitle:
		m.WikiTitle = Unescape(tokens[0])

	case CardMember:
		m.Members = append(m.Members, tokens[0])

	case CardMimetype:
		m.Mimetype = tokens[0]

	case CardParent:
		m.Parents = tokens

	case CardCherryPick:
		m.CherryPicks = append(m.CherryPicks, tokens[0])

	case CardRepoChecksum:
		m.RepoChecksum = tokens[0]

	case CardTag:
		for i, token := range tokens {
			tokens[i] = Unescape(token)
		}
		entry := TagEntry{Name: tokens[0]}
		if len(tokens) > 1 {
			entry.Target = tokens[1]
		}
		if len(tokens) > 2 {
			entry.Value = tokens[2]
		}
		m.Tags = append(m.Tags, entry)

	case CardUser:
		m.User = Unescape(tokens[0])

	case CardChecksum:
		m.Checksum = tokens[0]

	default:
		return fmt.Errorf("unrecognized card %q", byte(cardType))
	}

	return nil
}

// Unescape reverses Fossil card-token escaping: "\s" is a space,
// "\n" a newline, "\\" a backslash.
func Unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var out strings.Builder
	out.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 's':
				out.WriteByte(' ')
				i++
				continue
			case 'n':
				out.WriteByte('\n')
				i++
				continue
			case '\\':
				out.WriteByte('\\')
				i++
				continue
			}
		}
		out.WriteByte(s[i])
	}
	return out.String()
}

// Escape applies Fossil card-token escaping. The reader never writes
// artifacts; this exists for tests and tooling that construct card
// lines.
func Escape(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, " ", "\\s")
	return strings.ReplaceAll(s, "\n", "\\n")
}

// Clearsign markers for PGP-signed structural artifacts, a legacy of
// repositories with the clearsign setting enabled.
var (
	clearsignHeader = []byte("-----BEGIN PGP SIGNED MESSAGE-----")
	signatureHeader = []byte("-----BEGIN PGP SIGNATURE-----")
)

// stripClearsign removes a PGP clearsign wrapper: the armor header
// block, the trailing signature, and the "- " dash-escape on body
// lines. Content without the wrapper is returned unchanged.
func stripClearsign(content []byte) []byte {
	if !bytes.HasPrefix(content, clearsignHeader) {
		return content
	}

	var body []byte
	inBody := false
	for _, line := range bytes.SplitAfter(content, []byte("\n")) {
		trimmed := bytes.TrimRight(line, "\r\n")
		switch {
		case !inBody:
			// Armor headers end at the first blank line.
			if len(trimmed) == 0 {
				inBody = true
			}
		case bytes.Equal(trimmed, signatureHeader):
			return body
		case bytes.HasPrefix(line, []byte("- ")):
			body = append(body, line[2:]...)
		default:
			body = append(body, line...)
		}
	}
	return body
}
