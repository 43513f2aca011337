package main

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const iss2013 = "ISS (ZARYA)\n" +
	"1 25544U 98067A   13165.59097222  .00004759  00000-0  88814-4 0    47\n" +
	"2 25544  51.6478 121.2152 0011003  68.5125 263.9959 15.50783143834295\n"

const iss2025 = "ISS (ZARYA)\n" +
	"1 25544U 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9993\n" +
	"2 25544  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495058\n"

const referenceTime = "2013-06-15T02:57:07.2Z"

// run executes the root command with stdin and returns stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

func TestPropagateJSON(t *testing.T) {
	out, err := run(t, iss2013, "propagate", "-", "--time", referenceTime, "-o", "json")
	require.NoError(t, err)

	var results []propagateResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, "ISS (ZARYA)", r.Name)
	assert.Equal(t, 25544, r.NORADID)
	require.NotNil(t, r.Satellite)
	assert.Nil(t, r.Error)
	assert.InDelta(t, 45.2893067, r.Satellite.Latitude, 0.01)
	assert.InDelta(t, -136.62764, r.Satellite.Longitude, 0.01)
	assert.InDelta(t, 411.5672031, r.Satellite.Altitude, 0.5)
}

func TestPropagateFromFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iss.tle")
	require.NoError(t, os.WriteFile(path, []byte(iss2013), 0o644))

	out, err := run(t, "", "propagate", path, "--time", referenceTime, "-o", "yaml")
	require.NoError(t, err)

	var results []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	sat, ok := results[0]["satellite"].(map[string]any)
	require.True(t, ok, "satellite section missing in %s", out)
	assert.InDelta(t, 45.2893067, sat["latitude"], 0.01)
}

func TestPropagateText(t *testing.T) {
	out, err := run(t, iss2013, "propagate", "-", "--time", referenceTime)
	require.NoError(t, err)
	assert.Contains(t, out, "latitude:")
	assert.Contains(t, out, "45.28")
	assert.Contains(t, out, "km/h")
}

func TestPropagateReportsDomainError(t *testing.T) {
	// Same orbit with an extreme drag term, three years after epoch.
	decaying := strings.Replace(iss2013, ".00004759  00000-0  88814-4", ".50000000  00000-0  50000-0", 1)

	out, err := run(t, decaying, "propagate", "-", "--time", "2016-06-15T00:00:00Z", "-o", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 propagations failed")

	var results []propagateResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Error)
	assert.Nil(t, results[0].Satellite)
	assert.Equal(t, "SATELLITE_ERROR", results[0].Error.Code)
	assert.Equal(t, "it.calogerosanfilippo.SPGKitError", results[0].Error.Domain)
}

func TestPropagateMalformedInput(t *testing.T) {
	_, err := run(t, "ISS\n1 25544U\n2 25544\n", "propagate", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TLE_ERROR")

	_, err = run(t, "", "propagate", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TLE_ERROR")
}

func TestPropagateSelectsNORAD(t *testing.T) {
	other := strings.ReplaceAll(iss2013, "25544", "25545")
	other = strings.Replace(other, "ISS (ZARYA)", "OTHER", 1)

	out, err := run(t, iss2013+other, "propagate", "-", "--time", referenceTime, "--norad", "25545", "-o", "json")
	require.NoError(t, err)
	var results []propagateResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "OTHER", results[0].Name)

	_, err = run(t, iss2013, "propagate", "-", "--norad", "1")
	assert.Error(t, err)
}

func TestLook(t *testing.T) {
	out, err := run(t, iss2013, "look", "-", "--time", referenceTime, "--lat", "0", "--lon", "0", "--alt", "100", "-o", "json")
	require.NoError(t, err)

	var results []propagateResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Look)
	la := results[0].Look
	assert.InDelta(t, 325.622437, la.Azimuth, 0.05)
	assert.InDelta(t, -59.695258, la.Elevation, 0.05)
	assert.InDelta(t, 11531.663004, la.Range, 2)
	assert.InDelta(t, -3.530533, la.RangeRate, 0.01)
}

func TestLookRequiresObserver(t *testing.T) {
	_, err := run(t, iss2013, "look", "-", "--time", referenceTime)
	require.Error(t, err)
}

func TestLookInvalidObserver(t *testing.T) {
	out, err := run(t, iss2013, "look", "-", "--time", referenceTime, "--lat", "95", "--lon", "0", "-o", "json")
	require.Error(t, err)
	var results []propagateResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.NotNil(t, results[0].Error)
	assert.Equal(t, "GENERIC_ERROR", results[0].Error.Code)
}

func TestPasses(t *testing.T) {
	out, err := run(t, iss2025, "passes", "-",
		"--lat", "40.7128", "--lon", "-74.006",
		"--start", "2025-02-14T12:00:00Z", "--hours", "24",
		"--min-elevation", "0", "--max-passes", "2", "-o", "json")
	require.NoError(t, err)

	var res passesResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 25544, res.NORADID)
	require.NotEmpty(t, res.Passes)
	assert.LessOrEqual(t, len(res.Passes), 2)
	for _, p := range res.Passes {
		assert.True(t, p.EndTime.After(p.StartTime))
		assert.GreaterOrEqual(t, p.MaxElevation, 0.0)
	}
}

func TestPassesText(t *testing.T) {
	out, err := run(t, iss2025, "passes", "-",
		"--lat", "40.7128", "--lon", "-74.006",
		"--start", "2025-02-14T12:00:00Z", "--min-elevation", "0", "--max-passes", "1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "ISS (ZARYA) (25544): 1 passes"), out)
}

func TestDecode(t *testing.T) {
	out, err := run(t, iss2013, "decode", "-", "-o", "json")
	require.NoError(t, err)

	var sets []decodedSet
	require.NoError(t, json.Unmarshal([]byte(out), &sets))
	require.Len(t, sets, 1)
	s := sets[0]
	assert.Equal(t, 25544, s.NORADID)
	assert.Equal(t, "U", s.Classification)
	assert.Equal(t, "98067A", s.IntlDesignator)
	assert.InDelta(t, 51.6478, s.Inclination, 1e-9)
	assert.InDelta(t, 0.0011003, s.Eccentricity, 1e-12)
	assert.InDelta(t, 15.50783143, s.MeanMotion, 1e-8)
	assert.Equal(t, 2013, s.Epoch.Year())
}

func TestDecodeTextRoundTrip(t *testing.T) {
	out, err := run(t, "\r\n"+strings.ReplaceAll(iss2013, "\n", "\r\n"), "decode", "-")
	require.NoError(t, err)
	assert.Equal(t, iss2013, out)
}

func TestDecodeYAML(t *testing.T) {
	out, err := run(t, iss2013, "decode", "-", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "norad_id: 25544")
	assert.Contains(t, out, "title: ISS (ZARYA)")
}

func TestDecodeRejectsBadField(t *testing.T) {
	bad := strings.Replace(iss2013, "263.9959", "263.99X9", 1)
	_, err := run(t, bad, "decode", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TLE_ERROR")
}

func TestFlagValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown format", []string{"propagate", "-", "-o", "xml"}},
		{"bad time", []string{"propagate", "-", "--time", "tomorrow"}},
		{"bad gravity", []string{"propagate", "-", "--gravity", "egm96"}},
		{"bad log level", []string{"propagate", "-", "--log-level", "chatty"}},
		{"missing file", []string{"propagate", filepath.Join(os.TempDir(), "does-not-exist.tle")}},
		{"no args", []string{"decode"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, iss2013, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestGravityFlag(t *testing.T) {
	w72, err := run(t, iss2013, "propagate", "-", "--time", referenceTime, "-o", "json")
	require.NoError(t, err)
	w84, err := run(t, iss2013, "propagate", "-", "--time", referenceTime, "-o", "json", "--gravity", "wgs84")
	require.NoError(t, err)

	var a, b []propagateResult
	require.NoError(t, json.Unmarshal([]byte(w72), &a))
	require.NoError(t, json.Unmarshal([]byte(w84), &b))
	diff := math.Abs(a[0].Satellite.Altitude - b[0].Satellite.Altitude)
	assert.Greater(t, diff, 0.0)
	assert.Less(t, diff, 5.0)
}
