package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashKey(t *testing.T) {
	a := HashKey([]byte("pepper"), "secret")
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashKey([]byte("pepper"), "secret"))
	assert.NotEqual(t, a, HashKey([]byte("other"), "secret"))
	assert.NotEqual(t, a, HashKey([]byte("pepper"), "secret2"))
}

func TestParseStaticKeys(t *testing.T) {
	hash := HashKey([]byte("p"), "k")

	tests := []struct {
		name     string
		entries  []string
		wantLen  int
		wantName string
		wantErr  bool
	}{
		{name: "named", entries: []string{"admin:" + hash}, wantLen: 1, wantName: "admin"},
		{name: "bare hash", entries: []string{hash}, wantLen: 1, wantName: "key-0"},
		{name: "upper case hash", entries: []string{"ci:" + strings.ToUpper(hash)}, wantLen: 1, wantName: "ci"},
		{name: "blank entries skipped", entries: []string{"", "  "}, wantLen: 0},
		{name: "not hex", entries: []string{"x:zz"}, wantErr: true},
		{name: "wrong length", entries: []string{"x:abcd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, err := ParseStaticKeys(tt.entries)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, keys.Len())

			if tt.wantName == "" {
				return
			}
			info, err := keys.FindByHash(context.Background(), hash)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, info.Name)
		})
	}
}

func TestStaticKeys_Unknown(t *testing.T) {
	keys, err := ParseStaticKeys(nil)
	require.NoError(t, err)

	_, err = keys.FindByHash(context.Background(), HashKey(nil, "x"))
	require.ErrorIs(t, err, ErrUnknownKey)
}
