package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mandoub-backend/internal/store"
)

func TestListQueryWithoutFilter(t *testing.T) {
	query, args, err := listQuery("submissions", nil)
	require.NoError(t, err)
	assert.NotContains(t, query, "@>")
	assert.Contains(t, query, "ORDER BY created_at DESC, id")
	assert.Equal(t, []any{"submissions"}, args)
}

func TestListQueryContainmentKeepsValuesExact(t *testing.T) {
	cases := []struct {
		name   string
		filter store.Filter
		want   string
	}{
		{"plain", store.Filter{"name": "Rep 1"}, `{"name":"Rep 1"}`},
		{"trailing space kept", store.Filter{"villageName": "Village A "}, `{"villageName":"Village A "}`},
		{"case kept", store.Filter{"name": "rep 1"}, `{"name":"rep 1"}`},
		{"arabic", store.Filter{"role": "مندوب"}, `{"role":"مندوب"}`},
		{"number stays a number", store.Filter{"receivedMoney": 10}, `{"receivedMoney":10}`},
		{"several keys", store.Filter{"correlationId": "corr-1", "name": "Rep 1"}, `{"correlationId":"corr-1","name":"Rep 1"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			query, args, err := listQuery("representatives", tc.filter)
			require.NoError(t, err)
			assert.Contains(t, query, "data @> $2::jsonb")
			require.Len(t, args, 2)
			assert.Equal(t, "representatives", args[0])
			raw, ok := args[1].([]byte)
			require.True(t, ok)
			assert.JSONEq(t, tc.want, string(raw))
		})
	}
}

func TestListQueryRejectsUnencodableFilter(t *testing.T) {
	_, _, err := listQuery("submissions", store.Filter{"bad": make(chan int)})
	assert.ErrorContains(t, err, "encode filter")
}
