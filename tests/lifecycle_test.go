// Package tests holds end-to-end scenarios driving the full stack: facade,
// engine, registry, HTTP API, and scripted upstream backends.
package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glyphhq/glyph"
	"github.com/glyphhq/glyph/pkg/adapters/httpapi"
	"github.com/glyphhq/glyph/pkg/adapters/interpreter"
	"github.com/glyphhq/glyph/pkg/domain"
	"github.com/glyphhq/glyph/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedInterpreterService plays back canned patches over the real HTTP
// interpreter client, one per call.
func scriptedInterpreterService(t *testing.T, patches []map[string]any) *httptest.Server {
	t.Helper()
	i := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Less(t, i, len(patches), "interpreter called more often than scripted")
		resp := patches[i]
		i++
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func quoteData(name string, grand int) map[string]any {
	return map[string]any{
		"customer": map[string]any{"name": name},
		"items": []any{
			map[string]any{"description": "Consulting", "quantity": 1, "unitPrice": grand, "total": grand},
		},
		"totals": map[string]any{"subtotal": grand, "grand": grand},
	}
}

// The flagship scenario: create, two structural edits, data refresh; every
// edit survives and the log stays in order.
func TestEditsComposeAcrossRefresh(t *testing.T) {
	interp := scriptedInterpreterService(t, []map[string]any{
		{
			"kind": "set-attribute",
			"payload": map[string]any{
				"path":  "totals.discountPct",
				"value": 10,
			},
		},
		{
			"kind": "insert-relative",
			"payload": map[string]any{
				"anchor":   `<div class="grand">Total: {{totals.grand}}</div>`,
				"position": "after",
				"markup":   "<p class=\"note\">{{totals.note|Prices in EUR}}</p>",
			},
		},
	})

	client, err := glyph.New("../templates",
		glyph.WithInterpreter(interpreter.New(interp.URL)),
	)
	require.NoError(t, err)
	ctx := context.Background()

	sess, err := client.Create(ctx, engine.CreateRequest{
		TemplateID: "quote-modern",
		Data:       quoteData("Acme", 1500),
	})
	require.NoError(t, err)

	sess, err = client.Modify(ctx, sess.ID, "totals", "add a 10% discount")
	require.NoError(t, err)
	assert.Contains(t, sess.TemplateMarkup, "totals.discountPct")

	sess, err = client.Modify(ctx, sess.ID, "totals", "note that prices are in EUR")
	require.NoError(t, err)
	require.Len(t, sess.Modifications, 2)

	// Refresh with fresh figures; both structural edits persist.
	data := quoteData("Acme", 2000)
	data["totals"].(map[string]any)["discountPct"] = 10
	sess, err = client.Regenerate(ctx, sess.ID, data)
	require.NoError(t, err)

	assert.Contains(t, sess.RenderedMarkup, "2000")
	assert.Contains(t, sess.RenderedMarkup, "10")
	assert.Contains(t, sess.RenderedMarkup, "Prices in EUR")
	assert.Len(t, sess.Modifications, 2, "refresh does not touch the edit log")
}

// A failed interpretation leaves the session byte-identical.
func TestFailedEditLeavesSessionUntouched(t *testing.T) {
	interp := scriptedInterpreterService(t, []map[string]any{
		{"error": "instruction is ambiguous"},
	})
	// The service answers 200 with an error envelope lacking kind; the
	// client rejects it as an interpretation failure.

	client, err := glyph.New("../templates",
		glyph.WithInterpreter(interpreter.New(interp.URL)),
	)
	require.NoError(t, err)
	ctx := context.Background()

	sess, err := client.Create(ctx, engine.CreateRequest{
		TemplateID: "quote-modern",
		Data:       quoteData("Acme", 100),
	})
	require.NoError(t, err)
	before := sess.TemplateMarkup

	_, err = client.Modify(ctx, sess.ID, "totals", "do something unclear")
	assert.ErrorIs(t, err, domain.ErrInterpretation)

	after, err := client.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after.TemplateMarkup)
	assert.Empty(t, after.Modifications)
}

// Drives the same lifecycle through the HTTP surface.
func TestLifecycleOverHTTP(t *testing.T) {
	interp := scriptedInterpreterService(t, []map[string]any{
		{
			"kind": "replace-region",
			"payload": map[string]any{
				"markup": "<p class=\"terms\">Net 15. Late fees apply.</p>",
			},
		},
	})

	client, err := glyph.New("../templates",
		glyph.WithInterpreter(interpreter.New(interp.URL)),
	)
	require.NoError(t, err)

	api := httptest.NewServer(httpapi.NewHandler(client.Engine(),
		httpapi.WithTemplates(client.Templates()),
	))
	defer api.Close()

	// Create.
	body, _ := json.Marshal(map[string]any{
		"templateId": "quote-modern",
		"data":       quoteData("Globex", 750),
	})
	resp, err := http.Post(api.URL+"/v1/create", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	id := created["id"].(string)

	// Modify the terms region.
	body, _ = json.Marshal(map[string]any{"region": "terms", "instruction": "switch to net 15 terms"})
	resp, err = http.Post(api.URL+"/v1/sessions/"+id+"/modify", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var modified map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&modified))
	resp.Body.Close()
	assert.Contains(t, modified["renderedMarkup"], "Net 15")

	// Expire, then the session is gone.
	req, _ := http.NewRequest(http.MethodDelete, api.URL+"/v1/sessions/"+id, nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(api.URL + "/v1/sessions/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusGone, resp.StatusCode)
}
