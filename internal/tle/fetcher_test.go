package tle

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

// Supplemental group served next to the active catalog; no trailing newline.
const supplementalGroup = "HST\n" +
	"1 20580U 90037B   25311.52371201  .00003011  00000+0  10512-3 0  9991\n" +
	"2 20580  28.4696 142.6143 0002346 114.6312 245.4523 15.29311474750231"

// catalogServer serves body with status and records the Accept header it saw.
func catalogServer(t *testing.T, status int, body string, accept *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if accept != nil {
			*accept = r.Header.Get("Accept")
		}
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetcherActiveGroup(t *testing.T) {
	active := string(readTestdata(t, "three_valid_tle.txt"))
	var accept string
	srv := catalogServer(t, http.StatusOK, active, &accept)

	f := NewFetcher(srv.URL, testLogger)
	assert.Equal(t, srv.URL, f.SourceURL())

	data, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, active, string(data))
	assert.Equal(t, "text/plain", accept)

	entries, err := ParseCatalog(strings.NewReader(string(data)), testLogger)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "ISS (ZARYA)", entries[0].Name)
	assert.Equal(t, "CSS (TIANHE)", entries[1].Name)
	assert.Equal(t, 49044, entries[2].NORADID)
}

func TestFetcherSupplementalGroups(t *testing.T) {
	primary := catalogServer(t, http.StatusOK, supplementalGroup, nil)
	extra := catalogServer(t, http.StatusOK, string(readTestdata(t, "valid_tle.txt")), nil)
	failing := catalogServer(t, http.StatusServiceUnavailable, "", nil)

	data, err := NewFetcher(primary.URL, testLogger, failing.URL, extra.URL).Fetch(context.Background())
	require.NoError(t, err, "a failing supplemental group must not fail the fetch")

	// The groups are joined on a line boundary even without a trailing newline.
	assert.Contains(t, string(data), "15.29311474750231\n")

	entries, err := ParseCatalog(strings.NewReader(string(data)), testLogger)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "HST", entries[0].Name)
	assert.Equal(t, 20580, entries[0].NORADID)
	assert.Equal(t, 11416, entries[1].NORADID)
}

func TestFetcherFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		cancel  bool
		wantErr string
	}{
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			wantErr: "unexpected status code 500",
		},
		{
			name:    "unknown group",
			handler: func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) },
			wantErr: "unexpected status code 404",
		},
		{
			name: "oversized catalog",
			handler: func(w http.ResponseWriter, r *http.Request) {
				chunk := []byte(strings.Repeat("1", 1<<20))
				for range maxBodyBytes>>20 + 2 {
					if _, err := w.Write(chunk); err != nil {
						return
					}
				}
			},
			wantErr: "byte limit",
		},
		{
			name:    "cancelled",
			handler: func(w http.ResponseWriter, r *http.Request) { <-r.Context().Done() },
			cancel:  true,
			wantErr: "fetching TLE data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancel {
				cancel()
			}

			data, err := NewFetcher(srv.URL, testLogger).Fetch(ctx)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Nil(t, data)
		})
	}
}

func TestNewFetcherDefaultURL(t *testing.T) {
	f := NewFetcher("", testLogger)
	assert.Equal(t, DefaultSourceURL, f.SourceURL())
	assert.Contains(t, f.SourceURL(), "GROUP=active")
}
