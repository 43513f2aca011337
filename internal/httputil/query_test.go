package httputil

import (
	"net/url"
	"testing"
	"time"
)

func TestParseObserver(t *testing.T) {
	tests := []struct {
		query   string
		wantOK  bool
		wantErr bool
		wantAlt float64
	}{
		{"", false, false, 0},
		{"lat=40.7&lon=-74", true, false, 0},
		{"lat=40.7&lon=-74&alt=0.01", true, false, 0.01},
		{"lat=40.7", false, true, 0},
		{"lon=-74", false, true, 0},
		{"lat=abc&lon=0", false, true, 0},
		{"lat=0&lon=0&alt=high", false, true, 0},
		{"lat=91&lon=0", false, true, 0},
		{"lat=0&lon=-181", false, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			obs, ok, err := ParseObserver(q)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && obs.Altitude != tt.wantAlt {
				t.Errorf("alt = %v, want %v", obs.Altitude, tt.wantAlt)
			}
		})
	}
}

func TestParseTime(t *testing.T) {
	def := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := ParseTime(url.Values{}, "time", def)
	if err != nil || !got.Equal(def) {
		t.Errorf("absent time = %v, %v; want default", got, err)
	}

	q := url.Values{"time": {"2013-06-15T02:57:07.2Z"}}
	got, err = ParseTime(q, "time", def)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2013, 6, 15, 2, 57, 7, 200_000_000, time.UTC)
	if !got.Equal(want) {
		t.Errorf("time = %v, want %v", got, want)
	}

	q = url.Values{"time": {"2024-07-01T12:00:00+02:00"}}
	got, err = ParseTime(q, "time", def)
	if err != nil {
		t.Fatal(err)
	}
	if got.Location() != time.UTC || got.Hour() != 10 {
		t.Errorf("offset time = %v, want 10:00 UTC", got)
	}

	if _, err := ParseTime(url.Values{"time": {"yesterday"}}, "time", def); err == nil {
		t.Error("expected error for non-RFC 3339 time")
	}
}

func TestParseIntAndFloat(t *testing.T) {
	q := url.Values{"n": {"5"}, "bad": {"x"}, "big": {"500"}, "f": {"12.5"}}

	if n, err := ParseInt(q, "n", 1, 1, 10); err != nil || n != 5 {
		t.Errorf("ParseInt(n) = %d, %v", n, err)
	}
	if n, err := ParseInt(q, "missing", 7, 1, 10); err != nil || n != 7 {
		t.Errorf("ParseInt(missing) = %d, %v", n, err)
	}
	if _, err := ParseInt(q, "bad", 1, 1, 10); err == nil {
		t.Error("expected error for non-numeric")
	}
	if _, err := ParseInt(q, "big", 1, 1, 10); err == nil {
		t.Error("expected error for out-of-range")
	}
	if f, err := ParseFloat(q, "f", 0, 0, 90); err != nil || f != 12.5 {
		t.Errorf("ParseFloat(f) = %v, %v", f, err)
	}
	if _, err := ParseFloat(q, "big", 0, 0, 90); err == nil {
		t.Error("expected error for out-of-range float")
	}
}
