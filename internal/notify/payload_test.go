package notify

import (
	"encoding/json"
	"testing"
	"time"

	"doc-tracker/internal/geo"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedNotification() Notification {
	return Notification{
		Kind:         KindCompleted,
		DocumentID:   42,
		DocumentName: "Series A Deck",
		ViewerID:     "3f2a9c0e5b7d4a1f8e6c2b9d0a7f5e3c",
		ViewerEmail:  "jane@example.com",
		SessionID:    "sess-1",
		Device:       "desktop",
		Location:     &geo.Location{Country: "Germany", CountryCode: "DE", City: "Berlin"},
		OccurredAt:   time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC),
	}
}

func completedMetrics() *Metrics {
	return &Metrics{
		TotalTimeSeconds: 345,
		TopPages:         []PageDwell{{Page: 3, Seconds: 200}, {Page: 1, Seconds: 100}, {Page: 2, Seconds: 45}},
		IntentLevel:      "high",
	}
}

func TestComposeGolden(t *testing.T) {
	c := NewComposer("https://app.example.com/")
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	for _, channel := range allChannels {
		t.Run(channel, func(t *testing.T) {
			payload, err := c.Compose(channel, completedNotification(), completedMetrics())
			require.NoError(t, err)
			data, err := json.MarshalIndent(payload, "", "  ")
			require.NoError(t, err)
			g.Assert(t, "completed_"+channel, append(data, '\n'))
		})
	}
}

func TestComposeUnknownChannel(t *testing.T) {
	_, err := NewComposer("").Compose("pager", completedNotification(), nil)
	assert.Error(t, err)
}

func TestHeadline(t *testing.T) {
	n := Notification{DocumentName: "Deck", ViewerID: "abcdef0123456789", SpaceName: "Data room", Duration: 125}

	tests := []struct {
		kind string
		want string
	}{
		{KindOpened, "Anonymous viewer abcdef01 opened Deck"},
		{KindRevisit, "Anonymous viewer abcdef01 came back to Deck"},
		{KindFirstPage, "Anonymous viewer abcdef01 started reading Deck"},
		{KindSessionSummary, "Anonymous viewer abcdef01 spent 2m 5s on Deck"},
		{KindSpaceView, "Anonymous viewer abcdef01 visited Data room"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			n.Kind = tt.kind
			assert.Equal(t, tt.want, headline(n))
		})
	}
}

func TestSpaceViewLink(t *testing.T) {
	c := NewComposer("https://app.example.com")
	msg := c.email(Notification{Kind: KindSpaceView, SpaceID: 9, SpaceName: "Data room", ViewerEmail: "a@example.com"}, nil)
	assert.Equal(t, "a@example.com visited Data room", msg.Subject)
	assert.Contains(t, msg.Text, "https://app.example.com/spaces/9")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0s", FormatDuration(0))
	assert.Equal(t, "45s", FormatDuration(45))
	assert.Equal(t, "5m 45s", FormatDuration(345))
	assert.Equal(t, "2h 0m", FormatDuration(7200))
	assert.Equal(t, "1h 1m", FormatDuration(3661))
}
