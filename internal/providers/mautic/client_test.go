package mautic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-gateway/internal/common/cache"
	"crm-gateway/internal/common/utils"
	"crm-gateway/internal/oauth2"
)

type fakeMautic struct {
	mux          *http.ServeMux
	tokenFetches int
	searchHits   bool
	created      []ContactFields
	edited       map[int]ContactFields
	campaignAdds []int
	notes        []map[string]interface{}
}

func newFakeMautic(t *testing.T) (*fakeMautic, *httptest.Server) {
	t.Helper()
	f := &fakeMautic{
		mux:    http.NewServeMux(),
		edited: make(map[int]ContactFields),
	}

	f.mux.HandleFunc("/oauth/v2/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenFetches++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "mautic-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})

	f.mux.HandleFunc("/api/contacts", func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		contacts := map[string]interface{}{}
		if f.searchHits {
			contacts["7"] = map[string]interface{}{"id": 7}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"total":    json.Number("1"),
			"contacts": contacts,
		})
	})

	f.mux.HandleFunc("/api/contacts/new", func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		var fields ContactFields
		json.NewDecoder(r.Body).Decode(&fields)
		f.created = append(f.created, fields)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"contact": map[string]interface{}{"id": 42},
		})
	})

	f.mux.HandleFunc("/api/contacts/7/edit", func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		var fields ContactFields
		json.NewDecoder(r.Body).Decode(&fields)
		f.edited[7] = fields
		json.NewEncoder(w).Encode(map[string]interface{}{
			"contact": map[string]interface{}{"id": 7},
		})
	})

	f.mux.HandleFunc("/api/campaigns/3/contact/", func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		f.campaignAdds = append(f.campaignAdds, 1)
		json.NewEncoder(w).Encode(map[string]interface{}{"success": 1})
	})

	f.mux.HandleFunc("/api/notes/new", func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		var note map[string]interface{}
		json.NewDecoder(r.Body).Decode(&note)
		f.notes = append(f.notes, note)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{})
	})

	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func requireBearer(t *testing.T, r *http.Request) {
	t.Helper()
	require.Equal(t, "Bearer mautic-token", r.Header.Get("Authorization"))
}

func newTestClient(srv *httptest.Server, campaignID string) *Client {
	tokens := oauth2.NewManager(oauth2.Config{
		TokenURL:     srv.URL + "/oauth/v2/token",
		ClientID:     "id",
		ClientSecret: "secret",
	}, cache.NewLocalCache(time.Hour, time.Hour), "mautic-test", srv.Client(), nil)

	return NewClient(Config{BaseURL: srv.URL, CampaignID: campaignID},
		tokens, srv.Client(),
		utils.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond}, nil)
}

func TestUpsertContact_CreatesWhenAbsent(t *testing.T) {
	f, srv := newFakeMautic(t)
	client := newTestClient(srv, "")

	id, created, err := client.UpsertContact(context.Background(), ContactFields{
		Email:     "new@example.com",
		FirstName: "New",
	})
	require.NoError(t, err)

	assert.Equal(t, 42, id)
	assert.True(t, created)
	require.Len(t, f.created, 1)
	assert.Equal(t, "new@example.com", f.created[0].Email)
	assert.Empty(t, f.edited)

	// One token fetch covers the search and the create.
	assert.Equal(t, 1, f.tokenFetches)
}

func TestUpsertContact_EditsWhenFound(t *testing.T) {
	f, srv := newFakeMautic(t)
	f.searchHits = true
	client := newTestClient(srv, "")

	id, created, err := client.UpsertContact(context.Background(), ContactFields{
		Email:    "existing@example.com",
		LastName: "Updated",
	})
	require.NoError(t, err)

	assert.Equal(t, 7, id)
	assert.False(t, created)
	assert.Empty(t, f.created)
	assert.Equal(t, "Updated", f.edited[7].LastName)
}

func TestAddToCampaign(t *testing.T) {
	t.Run("adds when campaign configured", func(t *testing.T) {
		f, srv := newFakeMautic(t)
		client := newTestClient(srv, "3")

		require.NoError(t, client.AddToCampaign(context.Background(), 42))
		assert.Len(t, f.campaignAdds, 1)
	})

	t.Run("no-op without campaign", func(t *testing.T) {
		f, srv := newFakeMautic(t)
		client := newTestClient(srv, "")

		require.NoError(t, client.AddToCampaign(context.Background(), 42))
		assert.Empty(t, f.campaignAdds)
	})
}

func TestRecordActivity(t *testing.T) {
	t.Run("posts a note", func(t *testing.T) {
		f, srv := newFakeMautic(t)
		client := newTestClient(srv, "")

		client.RecordActivity(context.Background(), 42, "Contact synced from landing-page")

		require.Len(t, f.notes, 1)
		assert.Equal(t, float64(42), f.notes[0]["lead"])
		assert.Equal(t, "Contact synced from landing-page", f.notes[0]["text"])
	})

	t.Run("failures are swallowed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/oauth/v2/token" {
				json.NewEncoder(w).Encode(map[string]interface{}{
					"access_token": "mautic-token", "expires_in": 3600,
				})
				return
			}
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		client := newTestClient(srv, "")

		// Must not panic or propagate the upstream failure.
		client.RecordActivity(context.Background(), 42, "note")
	})
}
