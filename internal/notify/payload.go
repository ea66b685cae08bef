package notify

import (
	"fmt"
	"strings"
	"time"

	"doc-tracker/internal/geo"
)

type EmailMessage struct {
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

type ChatMessage struct {
	Text string `json:"text"`
}

// CRMEvent 同步到 CRM 的参与事件
type CRMEvent struct {
	Event        string        `json:"event"`
	DocumentID   uint          `json:"document_id,omitempty"`
	DocumentName string        `json:"document_name,omitempty"`
	ViewerID     string        `json:"viewer_id"`
	ViewerEmail  string        `json:"viewer_email,omitempty"`
	SessionID    string        `json:"session_id,omitempty"`
	Device       string        `json:"device,omitempty"`
	Location     *geo.Location `json:"location,omitempty"`
	Duration     int64         `json:"duration_seconds,omitempty"`
	PagesViewed  []int         `json:"pages_viewed,omitempty"`
	Metrics      *Metrics      `json:"metrics,omitempty"`
	OccurredAt   time.Time     `json:"occurred_at"`
}

// Composer 为各渠道生成消息体
type Composer struct {
	appBaseURL string
}

func NewComposer(appBaseURL string) *Composer {
	return &Composer{appBaseURL: strings.TrimRight(appBaseURL, "/")}
}

func (c *Composer) Compose(channel string, n Notification, m *Metrics) (any, error) {
	switch channel {
	case ChannelEmail:
		return c.email(n, m), nil
	case ChannelChat:
		return c.chat(n, m), nil
	case ChannelCRM:
		return c.crm(n, m), nil
	}
	return nil, fmt.Errorf("unknown channel %q", channel)
}

func viewerLabel(n Notification) string {
	if n.ViewerEmail != "" {
		return n.ViewerEmail
	}
	id := n.ViewerID
	if len(id) > 8 {
		id = id[:8]
	}
	return "Anonymous viewer " + id
}

func headline(n Notification) string {
	who := viewerLabel(n)
	switch n.Kind {
	case KindOpened:
		return fmt.Sprintf("%s opened %s", who, n.DocumentName)
	case KindRevisit:
		return fmt.Sprintf("%s came back to %s", who, n.DocumentName)
	case KindFirstPage:
		return fmt.Sprintf("%s started reading %s", who, n.DocumentName)
	case KindCompleted:
		return fmt.Sprintf("%s finished reading %s", who, n.DocumentName)
	case KindSessionSummary:
		return fmt.Sprintf("%s spent %s on %s", who, FormatDuration(n.Duration), n.DocumentName)
	case KindSpaceView:
		return fmt.Sprintf("%s visited %s", who, n.SpaceName)
	}
	return fmt.Sprintf("%s: %s", n.Kind, n.DocumentName)
}

func (c *Composer) link(n Notification) string {
	if n.Kind == KindSpaceView {
		return fmt.Sprintf("%s/spaces/%d", c.appBaseURL, n.SpaceID)
	}
	return fmt.Sprintf("%s/documents/%d/analytics", c.appBaseURL, n.DocumentID)
}

func details(n Notification, m *Metrics) []string {
	var lines []string
	if n.Device != "" {
		lines = append(lines, "Device: "+n.Device)
	}
	if n.Location != nil && n.Location.Country != "" {
		where := n.Location.Country
		if n.Location.City != "" {
			where = n.Location.City + ", " + where
		}
		lines = append(lines, "Location: "+where)
	}
	if len(n.PagesViewed) > 0 {
		pages := make([]string, len(n.PagesViewed))
		for i, p := range n.PagesViewed {
			pages[i] = fmt.Sprintf("%d", p)
		}
		lines = append(lines, "Pages viewed: "+strings.Join(pages, ", "))
	}
	if m != nil {
		lines = append(lines, "Total reading time: "+FormatDuration(m.TotalTimeSeconds))
		lines = append(lines, "Intent: "+m.IntentLevel)
		for _, p := range m.TopPages {
			lines = append(lines, fmt.Sprintf("Page %d: %s", p.Page, FormatDuration(p.Seconds)))
		}
	}
	return lines
}

func (c *Composer) email(n Notification, m *Metrics) EmailMessage {
	var b strings.Builder
	b.WriteString(headline(n))
	b.WriteString("\n\n")
	for _, line := range details(n, m) {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\nView analytics: ")
	b.WriteString(c.link(n))
	return EmailMessage{Subject: headline(n), Text: b.String()}
}

func (c *Composer) chat(n Notification, m *Metrics) ChatMessage {
	lines := append([]string{"*" + headline(n) + "*"}, details(n, m)...)
	lines = append(lines, c.link(n))
	return ChatMessage{Text: strings.Join(lines, "\n")}
}

func (c *Composer) crm(n Notification, m *Metrics) CRMEvent {
	return CRMEvent{
		Event:        "document_" + n.Kind,
		DocumentID:   n.DocumentID,
		DocumentName: n.DocumentName,
		ViewerID:     n.ViewerID,
		ViewerEmail:  n.ViewerEmail,
		SessionID:    n.SessionID,
		Device:       n.Device,
		Location:     n.Location,
		Duration:     n.Duration,
		PagesViewed:  n.PagesViewed,
		Metrics:      m,
		OccurredAt:   n.OccurredAt.UTC(),
	}
}

// FormatDuration 1h 2m、3m 5s、45s
func FormatDuration(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	h := int64(d / time.Hour)
	m := int64(d%time.Hour) / int64(time.Minute)
	s := int64(d%time.Minute) / int64(time.Second)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
