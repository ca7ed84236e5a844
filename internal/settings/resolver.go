package settings

import (
	"context"
	"time"

	"github.com/angelmondragon/hydrofarm-backend/internal/scheduling"
	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
)

// Resolver reads settings with parse-or-fallback semantics. It never fails:
// store errors and malformed values resolve to the declared default.
type Resolver struct {
	store  Store
	logger *logger.Logger
}

func NewResolver(store Store, logg *logger.Logger) *Resolver {
	return &Resolver{store: store, logger: logg}
}

// Get returns the raw stored value or def.
func (r *Resolver) Get(ctx context.Context, key, def string) string {
	raw, ok := r.raw(ctx, key)
	if !ok {
		return def
	}
	return raw
}

func (r *Resolver) raw(ctx context.Context, key string) (string, bool) {
	if r == nil || r.store == nil {
		return "", false
	}
	value, found, err := r.store.Get(ctx, key)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn(r.logger.WithField(ctx, "setting", key), "settings lookup failed, using default: "+err.Error())
		}
		return "", false
	}
	return value, found
}

// Lookup resolves a typed key.
func Lookup[T any](ctx context.Context, r *Resolver, key Key[T]) T {
	raw, ok := r.raw(ctx, key.Name)
	if !ok {
		return key.Default
	}
	if key.Decode == nil {
		return Decode(raw, key.Default)
	}
	return key.Decode(raw, key.Default)
}

// Schedule snapshots the delivery settings.
func (r *Resolver) Schedule(ctx context.Context) scheduling.Settings {
	cutoff, err := scheduling.ParseClock(Lookup(ctx, r, CutoffTime))
	if err != nil {
		cutoff, _ = scheduling.ParseClock(defaultCutoff)
	}

	weekdays := scheduling.ParseWeekdays(Lookup(ctx, r, BusinessWeekdays))

	return scheduling.Settings{
		CutoffMinutes: cutoff,
		Calendar:      scheduling.NewCalendar(weekdays, Lookup(ctx, r, Holidays)),
		Counts: scheduling.Counts{
			Daily:    Lookup(ctx, r, CountDaily),
			Weekly:   Lookup(ctx, r, CountWeekly),
			Biweekly: Lookup(ctx, r, CountBiweekly),
			Monthly:  Lookup(ctx, r, CountMonthly),
		},
		Location: loadLocation(Lookup(ctx, r, Timezone)),
		Windows:  Lookup(ctx, r, TimeWindows),
	}
}

// PixKey returns the receiving key for new charges, or fallback.
func (r *Resolver) PixKey(ctx context.Context, fallback string) string {
	if v := Lookup(ctx, r, PixKey); v != "" {
		return v
	}
	return fallback
}

// PixCertificate returns the uploaded certificate pointer, if configured.
func (r *Resolver) PixCertificate(ctx context.Context) (CertificatePointer, bool) {
	p := Lookup(ctx, r, PixCertificate)
	return p, p.Valid()
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
