package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jromeu/vitalink/internal/record"
)

func TestRemoteListRequestShape(t *testing.T) {
	var gotPath, gotSort, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSort = r.URL.Query().Get("sort")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":"hr-1","bpm":70}]}`))
	}))
	defer srv.Close()

	rs := newRemoteStore(srv.URL, "secret-token", testClock)
	items, err := rs.list(context.Background(), record.KindHeartRate, "-timestamp")
	require.NoError(t, err)

	assert.Equal(t, "/collections/sensor_heart_rate/records", gotPath)
	assert.Equal(t, "-timestamp", gotSort)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	require.Len(t, items, 1)
	assert.Equal(t, "hr-1", items[0].ID)
}

func TestRemoteListOmitsEmptySort(t *testing.T) {
	var hasSort bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasSort = r.URL.Query()["sort"]
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	rs := newRemoteStore(srv.URL, "", testClock)
	_, err := rs.list(context.Background(), record.KindSteps, "")
	require.NoError(t, err)
	assert.False(t, hasSort)
}

func TestRemoteListServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	rs := newRemoteStore(srv.URL, "", testClock)
	_, err := rs.list(context.Background(), record.KindHeartRate, "")
	require.Error(t, err)

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "list", remoteErr.Op)
}

func TestRemoteCreateDefaultsTimestampAndReturnsRecord(t *testing.T) {
	var gotBody record.Reading
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/collections/sensor_steps/records", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		gotBody.ID = "steps-remote-1"
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(gotBody)
	}))
	defer srv.Close()

	rs := newRemoteStore(srv.URL, "", testClock)
	created, err := rs.create(context.Background(), record.KindSteps, record.Reading{Count: 500, Date: "2026-08-31"})
	require.NoError(t, err)

	assert.Equal(t, "steps-remote-1", created.ID)
	assert.Equal(t, 500, created.Count)
	assert.Equal(t, "2026-08-31T12:00:00Z", gotBody.Timestamp)
}

func TestRemoteCreateWithoutReturnedIDFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	rs := newRemoteStore(srv.URL, "", testClock)
	_, err := rs.create(context.Background(), record.KindHeartRate, record.Reading{BPM: 70})
	require.Error(t, err)

	var remoteErr *RemoteError
	assert.ErrorAs(t, err, &remoteErr)
}

func TestRemoteUpdatePatchShape(t *testing.T) {
	var gotPatch map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/collections/sensor_steps/records/steps-1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPatch))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"steps-1","date":"2026-08-31","count":800}`))
	}))
	defer srv.Close()

	rs := newRemoteStore(srv.URL, "", testClock)
	updated, err := rs.update(context.Background(), record.KindSteps, "steps-1", record.Patch{"count": 800})
	require.NoError(t, err)

	assert.Equal(t, 800, updated.Count)
	assert.EqualValues(t, 800, gotPatch["count"])
	// The store stamps the modification time unless the caller supplied one.
	assert.Equal(t, "2026-08-31T12:00:00Z", gotPatch["timestamp"])
}

func TestRemoteUpdateNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	rs := newRemoteStore(srv.URL, "", testClock)
	_, err := rs.update(context.Background(), record.KindHeartRate, "ghost", record.Patch{"bpm": 90})
	require.Error(t, err)

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, record.KindHeartRate, notFound.Kind)
	assert.Equal(t, "ghost", notFound.ID)
}
