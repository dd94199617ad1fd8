// Gmail invite discovery: finds calendar invitations (.ics attachments) in the mailbox
package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/desertthunder/cadence/internal/shared"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// DefaultInviteQuery matches recent mail carrying iCalendar attachments.
const DefaultInviteQuery = "filename:ics newer_than:30d"

// Invite is a calendar invitation found in a message.
type Invite struct {
	MessageID string
	Subject   string
	From      string
	// Method is the iTIP method (REQUEST, CANCEL, PUBLISH).
	Method string
	Events []Event
}

// GmailService reads invitations with the Gmail v1 client.
type GmailService struct {
	svc *gmail.Service
}

// NewGmailService creates the service over an authorized client. Extra options are applied after the client.
func NewGmailService(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*GmailService, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail client: %w", err)
	}
	return &GmailService{svc: svc}, nil
}

// FindInvites searches the mailbox with query (Gmail search syntax) and parses every
// text/calendar part of up to limit messages. Messages whose calendar data cannot be
// parsed are skipped.
func (g *GmailService) FindInvites(ctx context.Context, query string, limit int64) ([]Invite, error) {
	if query == "" {
		query = DefaultInviteQuery
	}
	if limit <= 0 {
		limit = 25
	}

	list, err := g.svc.Users.Messages.List("me").Q(query).MaxResults(limit).Context(ctx).Do()
	if err != nil {
		return nil, googleError("list messages", err)
	}

	var invites []Invite
	for _, ref := range list.Messages {
		msg, err := g.svc.Users.Messages.Get("me", ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, googleError("get message", err)
		}

		invite := Invite{MessageID: msg.Id}
		if msg.Payload != nil {
			invite.Subject = header(msg.Payload.Headers, "Subject")
			invite.From = header(msg.Payload.Headers, "From")
		}

		for _, part := range calendarParts(msg.Payload) {
			data, err := g.partData(ctx, msg.Id, part)
			if err != nil {
				return nil, err
			}

			method, events, err := ParseInvite(data)
			if err != nil {
				continue
			}
			invite.Method = method
			invite.Events = append(invite.Events, events...)
		}

		if len(invite.Events) > 0 {
			invites = append(invites, invite)
		}
	}
	return invites, nil
}

func (g *GmailService) partData(ctx context.Context, messageID string, part *gmail.MessagePart) ([]byte, error) {
	if part.Body == nil {
		return nil, nil
	}

	encoded := part.Body.Data
	if encoded == "" && part.Body.AttachmentId != "" {
		att, err := g.svc.Users.Messages.Attachments.Get("me", messageID, part.Body.AttachmentId).Context(ctx).Do()
		if err != nil {
			return nil, googleError("get attachment", err)
		}
		encoded = att.Data
	}
	return decodeBase64URL(encoded)
}

// decodeBase64URL decodes Gmail's base64url payloads, which may or may not be padded.
func decodeBase64URL(s string) ([]byte, error) {
	if data, err := base64.URLEncoding.DecodeString(s); err == nil {
		return data, nil
	}

	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: bad base64 payload: %v", shared.ErrInvalidInput, err)
	}
	return data, nil
}

// calendarParts walks the MIME tree and returns text/calendar and .ics parts.
func calendarParts(part *gmail.MessagePart) []*gmail.MessagePart {
	if part == nil {
		return nil
	}

	var parts []*gmail.MessagePart
	if strings.HasPrefix(strings.ToLower(part.MimeType), "text/calendar") ||
		strings.HasSuffix(strings.ToLower(part.Filename), ".ics") {
		parts = append(parts, part)
	}
	for _, child := range part.Parts {
		parts = append(parts, calendarParts(child)...)
	}
	return parts
}

func header(headers []*gmail.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// ParseInvite parses an iCalendar payload and returns its METHOD and VEVENTs.
func ParseInvite(data []byte) (string, []Event, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return "", nil, fmt.Errorf("%w: empty calendar", shared.ErrInvalidInput)
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	method := ""
	for _, p := range cal.CalendarProperties {
		if p.IANAToken == string(ical.PropertyMethod) {
			method = strings.ToUpper(p.Value)
		}
	}

	var events []Event
	for _, ve := range cal.Events() {
		ev, err := fromVEvent(ve)
		if err != nil {
			continue
		}
		if method == "CANCEL" {
			ev.Status = "cancelled"
		}
		events = append(events, ev)
	}
	return method, events, nil
}

func fromVEvent(ve *ical.VEvent) (Event, error) {
	var ev Event

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return ev, fmt.Errorf("missing UID")
	}
	ev.ID = uid.Value
	ev.Status = "confirmed"

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		ev.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		ev.Location = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil && strings.EqualFold(p.Value, "CANCELLED") {
		ev.Status = "cancelled"
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return ev, fmt.Errorf("event %s: missing DTSTART", ev.ID)
	}

	if !strings.Contains(dtStart.Value, "T") {
		ev.AllDay = true
		start, err := ve.GetAllDayStartAt()
		if err != nil {
			return ev, fmt.Errorf("event %s: %w", ev.ID, err)
		}
		ev.Start = start
		ev.End = start.AddDate(0, 0, 1)
		if end, err := ve.GetAllDayEndAt(); err == nil && end.After(start) {
			ev.End = end
		}
		return ev, nil
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return ev, fmt.Errorf("event %s: %w", ev.ID, err)
	}
	ev.Start = start
	ev.End = start.Add(time.Hour)
	if end, err := ve.GetEndAt(); err == nil && !end.Before(start) {
		ev.End = end
	}
	return ev, nil
}
