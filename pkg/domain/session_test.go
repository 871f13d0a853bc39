package domain_test

import (
	"testing"
	"time"

	"github.com/glyphhq/glyph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_CloneIsolatesNestedData(t *testing.T) {
	s := domain.NewSession("quote-modern", "acct_1", time.Hour)
	s.Data["customer"] = map[string]any{"name": "Acme"}
	s.Data["items"] = []any{map[string]any{"total": 100}}
	s.Options = map[string]any{"margin": map[string]any{"top": "1cm"}}

	cp := s.Clone()
	cp.Data["customer"].(map[string]any)["name"] = "mutated"
	cp.Data["items"].([]any)[0].(map[string]any)["total"] = 0
	cp.Options["margin"].(map[string]any)["top"] = "0"
	cp.Modifications = append(cp.Modifications, domain.Modification{Region: "a"})

	assert.Equal(t, "Acme", s.Data["customer"].(map[string]any)["name"])
	assert.Equal(t, 100, s.Data["items"].([]any)[0].(map[string]any)["total"])
	assert.Equal(t, "1cm", s.Options["margin"].(map[string]any)["top"])
	assert.Empty(t, s.Modifications)
}

func TestSession_ExpiredAndTTL(t *testing.T) {
	s := domain.NewSession("quote-modern", "", time.Hour)

	now := s.CreatedAt
	require.False(t, s.Expired(now))
	assert.Equal(t, time.Hour, s.TTL(now))

	later := now.Add(2 * time.Hour)
	assert.True(t, s.Expired(later))
	assert.Zero(t, s.TTL(later))

	s.Status = domain.StatusExpired
	assert.True(t, s.Expired(now))
}

func TestSession_Filename(t *testing.T) {
	s := domain.NewSession("quote-modern", "", time.Hour)
	s.ID = "0123456789abcdef"
	assert.Equal(t, "quote-modern-01234567.pdf", s.Filename())

	s.TemplateID = ""
	s.Format = domain.FormatPNG
	assert.Equal(t, "document-01234567.png", s.Filename())
}
