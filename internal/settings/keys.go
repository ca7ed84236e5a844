package settings

import (
	"strings"
	"time"

	"github.com/angelmondragon/hydrofarm-backend/internal/scheduling"
)

// Key declares a typed setting.
type Key[T any] struct {
	Name    string
	Default T
	Decode  func(raw string, def T) T
}

// CertificatePointer locates the uploaded instant-payment client certificate.
type CertificatePointer struct {
	Bucket    string `json:"bucket"`
	Object    string `json:"object"`
	KeyObject string `json:"key_object,omitempty"`
	Format    string `json:"format,omitempty"`
}

// Valid reports whether the pointer names at least one object.
func (p CertificatePointer) Valid() bool {
	return strings.TrimSpace(p.Bucket) != "" && strings.TrimSpace(p.Object) != ""
}

const (
	defaultCutoff   = "12:00"
	defaultTimezone = "America/Sao_Paulo"
)

var (
	CutoffTime = Key[string]{Name: "delivery_cutoff_time", Default: defaultCutoff, Decode: decodeClock}

	Holidays = Key[[]string]{Name: "delivery_holidays", Default: nil, Decode: Decode[[]string]}

	BusinessWeekdays = Key[[]string]{
		Name:    "delivery_business_weekdays",
		Default: []string{"segunda", "terca", "quarta", "quinta", "sexta"},
		Decode:  DecodeStrings,
	}

	TimeWindows = Key[map[string]string]{
		Name: "delivery_time_windows",
		Default: map[string]string{
			scheduling.WindowMorning:   "08:00-12:00",
			scheduling.WindowAfternoon: "13:00-18:00",
		},
		Decode: decodeWindows,
	}

	CountDaily    = Key[int]{Name: "delivery_count_daily", Default: 20, Decode: DecodePositiveInt}
	CountWeekly   = Key[int]{Name: "delivery_count_weekly", Default: 4, Decode: DecodePositiveInt}
	CountBiweekly = Key[int]{Name: "delivery_count_biweekly", Default: 2, Decode: DecodePositiveInt}
	CountMonthly  = Key[int]{Name: "delivery_count_monthly", Default: 1, Decode: DecodePositiveInt}

	Timezone = Key[string]{Name: "delivery_timezone", Default: defaultTimezone, Decode: decodeTimezone}

	PixCertificate = Key[CertificatePointer]{Name: "pix_certificate", Decode: Decode[CertificatePointer]}
	PixKey         = Key[string]{Name: "pix_key", Decode: DecodeString}
)

func decodeClock(raw, def string) string {
	v := DecodeString(raw, def)
	if _, err := scheduling.ParseClock(v); err != nil {
		return def
	}
	return v
}

func decodeWindows(raw string, def map[string]string) map[string]string {
	v := Decode(raw, def)
	if len(v) == 0 {
		return def
	}
	return v
}

func decodeTimezone(raw, def string) string {
	v := DecodeString(raw, def)
	if _, err := time.LoadLocation(v); err != nil {
		return def
	}
	return v
}
