package payment

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeIssuers(t *testing.T) {
	t.Run("ArrayKeepsGatewayOrder", func(t *testing.T) {
		raw := json.RawMessage(`[
			{"id": "ZZissuer", "name": "ZZissuer"},
			{"id": "AAissuer", "name": "AAissuer"}
		]`)

		got, err := NormalizeIssuers(raw)
		require.NoError(t, err)
		assert.Equal(t, []Issuer{
			{ID: "ZZissuer", Name: "ZZissuer"},
			{ID: "AAissuer", Name: "AAissuer"},
		}, got)
	})

	t.Run("SparseObjectIsReindexed", func(t *testing.T) {
		raw := json.RawMessage(`{
			"7": {"id": "ideal_RABONL2U", "name": "Rabobank"},
			"2": {"id": "ideal_ABNANL2A", "name": "ABN AMRO"},
			"x": {"id": "ideal_INGBNL2A", "name": "ING"}
		}`)

		got, err := NormalizeIssuers(raw)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "ideal_RABONL2U", got[0].ID)
		assert.Equal(t, "ideal_ABNANL2A", got[1].ID)
		assert.Equal(t, "ideal_INGBNL2A", got[2].ID)
	})

	t.Run("DuplicateNamesStayStable", func(t *testing.T) {
		raw := json.RawMessage(`[
			{"id": "b", "name": "Same"},
			{"id": "a", "name": "Same"}
		]`)

		got, err := NormalizeIssuers(raw)
		require.NoError(t, err)
		assert.Equal(t, "b", got[0].ID)
		assert.Equal(t, "a", got[1].ID)
	})

	t.Run("ImageShapes", func(t *testing.T) {
		raw := json.RawMessage(`[
			{"id": "a", "name": "A", "image": {"size1x": "a1.png", "size2x": "a2.png"}},
			{"id": "b", "name": "B", "image": "b.png"},
			{"id": "c", "name": "C"}
		]`)

		got, err := NormalizeIssuers(raw)
		require.NoError(t, err)
		assert.Equal(t, "a2.png", got[0].Image)
		assert.Equal(t, "b.png", got[1].Image)
		assert.Equal(t, "", got[2].Image)
	})

	t.Run("Empty", func(t *testing.T) {
		for _, raw := range []string{``, `null`, `[]`, `{}`} {
			got, err := NormalizeIssuers(json.RawMessage(raw))
			require.NoError(t, err, raw)
			assert.NotNil(t, got)
			assert.Len(t, got, 0)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		_, err := NormalizeIssuers(json.RawMessage(`"ideal"`))
		assert.Error(t, err)

		_, err = NormalizeIssuers(json.RawMessage(`[{"id": 1}]`))
		assert.Error(t, err)
	})
}
