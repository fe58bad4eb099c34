package sgready

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarionetDriverSet(t *testing.T) {
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.RawQuery)
	}))
	defer server.Close()

	driver := &BarionetDriver{BaseURL: server.URL, Client: server.Client()}

	require.NoError(t, driver.Set(context.Background(), 1, true))
	require.NoError(t, driver.Set(context.Background(), 2, false))

	// the Barionet expects the raw, unescaped "relay,state" pair
	assert.Equal(t, []string{"o=1,1", "o=2,0"}, queries)
}

func TestBarionetDriverReportsBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	driver := &BarionetDriver{BaseURL: server.URL, Client: server.Client()}
	assert.Error(t, driver.Set(context.Background(), 1, true))
}
