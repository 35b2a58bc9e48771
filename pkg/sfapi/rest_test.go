package sfapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRESTClient(t *testing.T, handler http.HandlerFunc) *RESTClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewRESTClient(context.Background(), RESTConfig{
		InstanceURL: server.URL + "/",
		AccessToken: "token",
	})
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestNewRESTClient_Validation(t *testing.T) {
	_, err := NewRESTClient(context.Background(), RESTConfig{AccessToken: "t"})
	assert.ErrorContains(t, err, "instance URL is required")

	_, err = NewRESTClient(context.Background(), RESTConfig{InstanceURL: "https://org.example.com"})
	assert.ErrorContains(t, err, "access token or client credentials")

	c, err := NewRESTClient(context.Background(), RESTConfig{InstanceURL: "https://org.example.com/", AccessToken: "t"})
	require.NoError(t, err)
	assert.Equal(t, "https://org.example.com/services/data/v"+DefaultAPIVersion, c.dataPath(""))
	assert.Equal(t, "https://org.example.com/services/data/v58.0", c.dataPath("58.0"))
	assert.Equal(t, DefaultReadConcurrency, c.readConcurrency)
}

func TestRESTClient_QueryFollowsPagination(t *testing.T) {
	var calls int32
	client := newTestRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		atomic.AddInt32(&calls, 1)

		switch r.URL.Path {
		case "/services/data/v" + DefaultAPIVersion + "/tooling/query":
			assert.Equal(t, "SELECT Id, EntityDefinition.QualifiedApiName FROM ValidationRule WHERE Active = 'true'", r.URL.Query().Get("q"))
			writeJSON(w, http.StatusOK, map[string]any{
				"done":           false,
				"nextRecordsUrl": "/services/data/v60.0/tooling/query/01g-2000",
				"records": []any{map[string]any{
					"attributes":       map[string]any{"type": "ValidationRule"},
					"Id":               "03d000000000001",
					"EntityDefinition": map[string]any{"QualifiedApiName": "Account"},
				}},
			})
		case "/services/data/v60.0/tooling/query/01g-2000":
			writeJSON(w, http.StatusOK, map[string]any{
				"done":    true,
				"records": []any{map[string]any{"Id": "03d000000000002", "EntityDefinition": nil}},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	records, err := client.Query(context.Background(), Query{
		Object:  "ValidationRule",
		Fields:  []string{"Id", "EntityDefinition.QualifiedApiName"},
		Filter:  Filter{Eq("Active", "true")},
		Tooling: true,
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Account", records[0].String("EntityDefinition.QualifiedApiName"))
	assert.NotContains(t, records[0], "attributes")
	assert.Equal(t, "", records[1].String("EntityDefinition.QualifiedApiName"))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestRESTClient_QueryEmptyInSkipsRequest(t *testing.T) {
	client := newTestRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	})

	records, err := client.Query(context.Background(), Query{Object: "Flow", Fields: []string{"Id"}, Filter: Filter{In("Id")}})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRESTClient_QueryAPIError(t *testing.T) {
	client := newTestRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, []map[string]string{{"errorCode": "INVALID_FIELD", "message": "No such column"}})
	})

	_, err := client.Query(context.Background(), Query{Object: "Flow", Fields: []string{"Bogus"}})
	assert.ErrorContains(t, err, "API error (400): INVALID_FIELD: No such column")
}

func TestRESTClient_ListAndDescribe(t *testing.T) {
	client := newTestRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/services/data/v60.0/sobjects":
			writeJSON(w, http.StatusOK, map[string]any{"sobjects": []any{
				map[string]any{"name": "Region__mdt", "label": "Region", "custom": true},
				map[string]any{"name": "Account", "label": "Account", "custom": false},
			}})
		case "/services/data/v60.0/sobjects/Account/describe":
			writeJSON(w, http.StatusOK, map[string]any{
				"name":   "Account",
				"fields": []any{map[string]any{"name": "OwnerId", "type": "reference", "referenceTo": []string{"User"}}},
				"childRelationships": []any{
					map[string]any{"childSObject": "Contact", "field": "AccountId", "relationshipName": "Contacts"},
				},
			})
		default:
			writeJSON(w, http.StatusNotFound, []map[string]string{{"errorCode": "NOT_FOUND", "message": "missing"}})
		}
	})

	objects, err := client.ListObjects(context.Background())
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "Account", objects[0].Name)

	desc, err := client.DescribeObject(context.Background(), "Account")
	require.NoError(t, err)
	assert.True(t, desc.Fields[0].References("user"))
	assert.Equal(t, "Contact", desc.ChildRelationships[0].ChildObject)

	_, err = client.DescribeObject(context.Background(), "Missing__c")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRESTClient_Read(t *testing.T) {
	client := newTestRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/services/data/v60.0/analytics/reports/") {
			switch strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/services/data/v60.0/analytics/reports/"), "/describe") {
			case "00O000000000001":
				writeJSON(w, http.StatusOK, map[string]any{"reportMetadata": map[string]any{"name": "Pipeline"}})
			case "00O000000000002":
				writeJSON(w, http.StatusForbidden, []map[string]string{{"errorCode": "INSUFFICIENT_ACCESS", "message": "private folder"}})
			default:
				writeJSON(w, http.StatusNotFound, nil)
			}
			return
		}

		q := r.URL.Query().Get("q")
		switch {
		case strings.Contains(q, "'Account.Rating_Required'"):
			writeJSON(w, http.StatusOK, map[string]any{"done": true, "records": []any{
				map[string]any{"FullName": "Account.Rating_Required", "Metadata": map[string]any{"errorConditionFormula": "ISBLANK(Rating)"}},
			}})
		default:
			writeJSON(w, http.StatusOK, map[string]any{"done": true, "records": []any{}})
		}
	})

	bodies, err := client.Read(context.Background(), "ValidationRule", []string{"Account.Rating_Required", "Account.Missing"})
	require.NoError(t, err)
	require.Len(t, bodies, 1)
	assert.Equal(t, "ISBLANK(Rating)", bodies[0].Body["errorConditionFormula"])

	reports, err := client.Read(context.Background(), "Report", []string{"00O000000000001", "00O000000000002", "00O000000000003"})
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "Pipeline", reports[0].Body["name"])
	assert.True(t, reports[1].AccessDenied)
	assert.Equal(t, "00O000000000002", reports[1].FullName)
}

func TestRESTClient_ReadFailure(t *testing.T) {
	client := newTestRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, nil)
	})

	_, err := client.Read(context.Background(), "Flow", []string{"Onboard"})
	assert.ErrorContains(t, err, "failed to read Flow Onboard")
}
