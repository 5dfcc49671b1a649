package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseCallback(t *testing.T) {
	cases := []struct {
		data string
		want Callback
	}{
		{"fishing_cast_-100123_basic", Callback{"fishing", "cast", -100123, []string{"basic"}}},
		{"mining_buy_-5_gold", Callback{"mining", "buy", -5, []string{"gold"}}},
		{"mining_claim_-5", Callback{"mining", "claim", -5, []string{}}},
		{"rp_grab_-9_3f2a1c", Callback{"rp", "grab", -9, []string{"3f2a1c"}}},
		{"\flottery_cashback_42", Callback{"lottery", "cashback", 42, []string{}}},
	}
	for _, tc := range cases {
		got, err := ParseCallback(tc.data)
		require.NoError(t, err, tc.data)
		assert.Equal(t, tc.want, got)
	}
}

func TestParseCallback_Malformed(t *testing.T) {
	for _, data := range []string{"", "fishing", "fishing_cast", "fishing_cast_abc"} {
		_, err := ParseCallback(data)
		assert.ErrorIs(t, err, ErrMalformedCallback, "data %q", data)
	}
}

func TestCallbackRoundTrip(t *testing.T) {
	token := rapid.StringMatching(`[a-z][a-z0-9]{0,11}`)
	rapid.Check(t, func(t *rapid.T) {
		cb := Callback{
			Domain:  token.Draw(t, "domain"),
			Action:  token.Draw(t, "action"),
			GroupID: rapid.Int64().Draw(t, "group"),
			Args:    rapid.SliceOfN(token, 0, 3).Draw(t, "args"),
		}
		got, err := ParseCallback(cb.Encode())
		require.NoError(t, err)
		if len(cb.Args) == 0 {
			cb.Args = []string{}
		}
		assert.Equal(t, cb, got)
	})
}

func TestCallbackArg(t *testing.T) {
	cb := Callback{Domain: "mining", Action: "buy", GroupID: 1, Args: []string{"gold"}}
	assert.Equal(t, "gold", cb.Arg(0))
	assert.Equal(t, "", cb.Arg(1))
	assert.Equal(t, "", cb.Arg(-1))
}
