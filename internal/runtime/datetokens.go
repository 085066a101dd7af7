package runtime

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/coachflow/internal/logging"
	"github.com/aretw0/coachflow/pkg/domain"
	"github.com/aretw0/coachflow/pkg/ports"
)

var weekdayNames = map[string]time.Weekday{
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
	"sunday": time.Sunday, "sun": time.Sunday,
}

// DateTokens resolves the reserved date tokens against the store's active
// weekday set and anchor date.
type DateTokens struct {
	store         ports.KeyValueStore
	clock         func() time.Time
	activeDaysKey string
	anchorKey     string
	logger        *slog.Logger
}

// NewDateTokens creates a resolver reading task settings from store.
func NewDateTokens(store ports.KeyValueStore, opts ...Option) *DateTokens {
	o := newOptions(opts)
	return &DateTokens{
		store:         store,
		clock:         o.clock,
		activeDaysKey: o.activeDaysKey,
		anchorKey:     o.anchorKey,
		logger:        logging.Component(o.logger, "datetokens"),
	}
}

// Resolve returns the value of token, or false when token is not reserved.
func (d *DateTokens) Resolve(ctx context.Context, token string) (domain.Value, bool) {
	switch token {
	case domain.TokenTodayDate:
		return domain.String(d.today().Format(domain.DateLayout)), true
	case domain.TokenNextActiveDate:
		return domain.String(d.NextActiveDate(ctx).Format(domain.DateLayout)), true
	case domain.TokenNextActiveWeekday:
		return domain.String(d.NextActiveDate(ctx).Weekday().String()), true
	case domain.TokenFirstActiveDate:
		return domain.String(d.FirstActiveDate(ctx).Format(domain.DateLayout)), true
	}
	return nil, false
}

// NextActiveDate is the first active day strictly after today.
// With no active-days entry every day is active; an empty or unreadable set
// yields tomorrow.
func (d *DateTokens) NextActiveDate(ctx context.Context) time.Time {
	today := d.today()
	tomorrow := today.AddDate(0, 0, 1)

	days, present := d.activeDays(ctx)
	if !present || len(days) == 0 {
		return tomorrow
	}
	if found, ok := scan(tomorrow, days); ok {
		return found
	}
	return tomorrow
}

// FirstActiveDate is the first active day on or after the anchor date
// (today when no anchor is stored).
func (d *DateTokens) FirstActiveDate(ctx context.Context) time.Time {
	anchor := d.anchor(ctx)

	days, present := d.activeDays(ctx)
	if !present || len(days) == 0 {
		return anchor
	}
	if found, ok := scan(anchor, days); ok {
		return found
	}
	return anchor
}

func scan(from time.Time, days map[time.Weekday]bool) (time.Time, bool) {
	for i := 0; i < domain.MaxDateScanDays; i++ {
		day := from.AddDate(0, 0, i)
		if days[day.Weekday()] {
			return day, true
		}
	}
	return time.Time{}, false
}

func (d *DateTokens) today() time.Time {
	now := d.clock()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func (d *DateTokens) anchor(ctx context.Context) time.Time {
	today := d.today()
	if d.store == nil {
		return today
	}
	v, ok, err := d.store.Get(ctx, d.anchorKey)
	if err != nil {
		d.logger.Warn("failed to read anchor date", "key", d.anchorKey, "error", err)
		return today
	}
	if !ok || domain.IsNull(v) {
		return today
	}
	s := strings.TrimSpace(domain.StringForm(v))
	t, err := time.ParseInLocation(domain.DateLayout, s, today.Location())
	if err != nil {
		d.logger.Warn("invalid anchor date", "key", d.anchorKey, "value", s)
		return today
	}
	return t
}

// activeDays reads the active weekday set. present is false when the key is
// absent, which means every day is active.
func (d *DateTokens) activeDays(ctx context.Context) (map[time.Weekday]bool, bool) {
	if d.store == nil {
		return nil, false
	}
	v, ok, err := d.store.Get(ctx, d.activeDaysKey)
	if err != nil {
		d.logger.Warn("failed to read active days", "key", d.activeDaysKey, "error", err)
		return nil, true
	}
	if !ok || domain.IsNull(v) {
		return nil, false
	}

	list, isList := domain.AsList(v)
	if !isList {
		list = domain.List{v}
	}

	days := make(map[time.Weekday]bool, len(list))
	for _, item := range list {
		wd, ok := parseWeekday(item)
		if !ok {
			d.logger.Debug("ignoring unreadable active day", "value", domain.StringForm(item))
			continue
		}
		days[wd] = true
	}
	return days, true
}

// parseWeekday reads 1=Monday..7=Sunday or an English weekday name.
func parseWeekday(v domain.Value) (time.Weekday, bool) {
	if n, ok := domain.AsInt(v); ok {
		if n < 1 || n > 7 {
			return 0, false
		}
		return time.Weekday(n % 7), true
	}
	wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(domain.StringForm(v)))]
	return wd, ok
}
