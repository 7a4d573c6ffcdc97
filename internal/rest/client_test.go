package rest_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskwire/pulse/internal/core/notify"
	"github.com/deskwire/pulse/internal/rest"
)

func TestDecodeList_KnownShapes(t *testing.T) {
	record := `{"id":"n1","message":"hello","type":"info","category":"app","isRead":true}`

	tests := []struct {
		name string
		body string
	}{
		{"bare array", `[` + record + `]`},
		{"notifications envelope", `{"notifications":[` + record + `]}`},
		{"data envelope", `{"data":{"notifications":[` + record + `]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := rest.DecodeList([]byte(tt.body))
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, "n1", list[0].ID)
			assert.Equal(t, "hello", list[0].Message)
			assert.Equal(t, notify.TypeInfo, list[0].Type)
			assert.True(t, list[0].Read)
		})
	}
}

func TestDecodeList_DefaultsServerRecordsToApp(t *testing.T) {
	list, err := rest.DecodeList([]byte(`[{"message":"untyped"}]`))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, notify.CategoryApp, list[0].Category)
	assert.NotEmpty(t, list[0].ID)
}

func TestDecodeList_UnrecognizedShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"scalar", `42`},
		{"wrong envelope key", `{"items":[]}`},
		{"data without notifications", `{"data":{"items":[]}}`},
		{"malformed json", `{"notifications":[`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rest.DecodeList([]byte(tt.body))
			assert.ErrorIs(t, err, rest.ErrUnrecognizedShape)
		})
	}
}

func TestDecodeList_DurationMilliseconds(t *testing.T) {
	list, err := rest.DecodeList([]byte(`[{"id":"n1","message":"m","duration":5000}]`))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, list[0].Duration)
}

func TestClient_List_SendsAuthAndQuery(t *testing.T) {
	var gotAuth, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"notifications":[]}`))
	}))
	defer server.Close()

	c := rest.NewClient(server.URL, time.Second, func() string { return "tok-1" })

	_, err := c.List(context.Background(), rest.ListOptions{Limit: 20, Offset: 40, UnreadOnly: true})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Contains(t, gotQuery, "limit=20")
	assert.Contains(t, gotQuery, "offset=40")
	assert.Contains(t, gotQuery, "unread=true")
	assert.Contains(t, gotQuery, "_t=")
}

func TestClient_MarkReadUsesPost(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := rest.NewClient(server.URL, time.Second, func() string { return "" })

	require.NoError(t, c.MarkRead(context.Background(), "n1"))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/notifications/n1/read", gotPath)

	require.NoError(t, c.MarkAllRead(context.Background()))
	assert.Equal(t, "/notifications/read-all", gotPath)
}

func TestClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := rest.NewClient(server.URL, time.Second, func() string { return "" })

	_, err := c.List(context.Background(), rest.ListOptions{})
	assert.ErrorContains(t, err, "unexpected status 500")
}

func TestClient_Refresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/refresh", r.URL.Path)
		_, _ = w.Write([]byte(`{"token":"fresh-token"}`))
	}))
	defer server.Close()

	c := rest.NewClient(server.URL, time.Second, func() string { return "stale" })

	tok, err := c.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", tok)
}
