package domain

import (
	"fmt"
	"strings"
	"time"
)

// ChannelPreference is a recipient's opt-in state for one channel.
type ChannelPreference struct {
	ID          string
	RecipientID string
	Channel     Channel
	Enabled     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CategoryOverride mutes or forces a single channel for one category,
// refining the coarse per-channel preference.
type CategoryOverride struct {
	ID          string
	RecipientID string
	Category    Category
	Channel     Channel
	Allowed     bool
	CreatedAt   time.Time
}

// RecipientSettings holds per-recipient delivery settings. Quiet hours are
// stored as HH:MM wall-clock bounds in the recipient's timezone; an empty
// start or end means no quiet period is configured.
type RecipientSettings struct {
	RecipientID     string
	Language        string
	Timezone        string
	QuietHoursStart string
	QuietHoursEnd   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// InQuietHours reports whether the given instant falls inside the quiet
// window. Windows may cross midnight (e.g. 22:00-07:00).
func (s *RecipientSettings) InQuietHours(at time.Time) (bool, error) {
	if s == nil || s.QuietHoursStart == "" || s.QuietHoursEnd == "" {
		return false, nil
	}

	loc := time.UTC
	if tz := strings.TrimSpace(s.Timezone); tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			return false, fmt.Errorf("%w: invalid timezone %q", ErrValidation, s.Timezone)
		}
		loc = parsed
	}

	start, err := parseWallClock(s.QuietHoursStart)
	if err != nil {
		return false, err
	}
	end, err := parseWallClock(s.QuietHoursEnd)
	if err != nil {
		return false, err
	}

	local := at.In(loc)
	now := local.Hour()*60 + local.Minute()

	if start == end {
		return false, nil
	}
	if start < end {
		return now >= start && now < end, nil
	}
	// Window crosses midnight.
	return now >= start || now < end, nil
}

func parseWallClock(value string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid quiet hours bound %q", ErrValidation, value)
	}
	return t.Hour()*60 + t.Minute(), nil
}
