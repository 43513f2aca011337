package httputil

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/csanfilippo/sgpkit/internal/interpreter"
)

// ParseObserver reads lat, lon and alt (km, default 0) from q.
// ok is false when neither lat nor lon is present.
func ParseObserver(q url.Values) (obs interpreter.Observer, ok bool, err error) {
	latStr, lonStr := q.Get("lat"), q.Get("lon")
	if latStr == "" && lonStr == "" {
		return interpreter.Observer{}, false, nil
	}
	if latStr == "" || lonStr == "" {
		return interpreter.Observer{}, false, fmt.Errorf("lat and lon must be given together")
	}

	if obs.Latitude, err = strconv.ParseFloat(latStr, 64); err != nil {
		return interpreter.Observer{}, false, fmt.Errorf("invalid lat %q", latStr)
	}
	if obs.Longitude, err = strconv.ParseFloat(lonStr, 64); err != nil {
		return interpreter.Observer{}, false, fmt.Errorf("invalid lon %q", lonStr)
	}
	if v := q.Get("alt"); v != "" {
		if obs.Altitude, err = strconv.ParseFloat(v, 64); err != nil {
			return interpreter.Observer{}, false, fmt.Errorf("invalid alt %q", v)
		}
	}
	if err := obs.Validate(); err != nil {
		return interpreter.Observer{}, false, err
	}
	return obs, true, nil
}

// ParseTime reads an RFC 3339 timestamp from q[key], returning def when absent.
func ParseTime(q url.Values, key string, def time.Time) (time.Time, error) {
	v := q.Get(key)
	if v == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: want RFC 3339", key, v)
	}
	return t.UTC(), nil
}

// ParseInt reads an integer in [lo, hi] from q[key], returning def when absent.
func ParseInt(q url.Values, key string, def, lo, hi int) (int, error) {
	v := q.Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s parameter, must be %d-%d", key, lo, hi)
	}
	return n, nil
}

// ParseFloat reads a float in [lo, hi] from q[key], returning def when absent.
func ParseFloat(q url.Values, key string, def, lo, hi float64) (float64, error) {
	v := q.Get(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < lo || f > hi {
		return 0, fmt.Errorf("invalid %s parameter, must be %g-%g", key, lo, hi)
	}
	return f, nil
}
