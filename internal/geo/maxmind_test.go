package geo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFallbackDB(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "geo.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestOpenMaxMind_JSONFallback(t *testing.T) {
	path := writeFallbackDB(t, `[
        {"net":"10.0.0.0/8","country":"DE","region":"Bavaria"},
        {"net":"192.168.0.0/16","country":"US","region":"CA"}
    ]`)

	p, err := OpenMaxMind(path)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	rec, err := p.Resolve(context.Background(), "10.1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "DE", rec.Country)
	assert.Equal(t, "Bavaria", rec.Region)

	rec, err = p.Resolve(context.Background(), "192.168.4.5")
	require.NoError(t, err)
	assert.Equal(t, "US", rec.Country)
	assert.Equal(t, "CA", rec.Region)
}

func TestMaxMind_UnknownAddressYieldsEmptyRecord(t *testing.T) {
	path := writeFallbackDB(t, `[{"net":"10.0.0.0/8","country":"DE"}]`)

	p, err := OpenMaxMind(path)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	rec, err := p.Resolve(context.Background(), "203.0.113.1")
	require.NoError(t, err)
	assert.Empty(t, rec.Country, "missing entries degrade to unknown, the policy fails closed on its own")
}

func TestMaxMind_InvalidIP(t *testing.T) {
	path := writeFallbackDB(t, `[]`)

	p, err := OpenMaxMind(path)
	require.NoError(t, err)

	_, err = p.Resolve(context.Background(), "not-an-ip")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOpenMaxMind_BadFile(t *testing.T) {
	path := writeFallbackDB(t, `{"oops": true}`)

	_, err := OpenMaxMind(path)
	assert.Error(t, err, "neither mmdb nor a JSON CIDR list")
}

func TestOpenMaxMind_MissingFile(t *testing.T) {
	_, err := OpenMaxMind(filepath.Join(t.TempDir(), "nope.mmdb"))
	assert.Error(t, err)
}
