package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"

	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	cases := map[string]struct {
		cb          *tele.Callback
		wantUnique  string
		wantPayload string
	}{
		"nil": {nil, "", ""},
		"normalized": {
			// telebot sets Unique and strips it from Data after endpoint match.
			&tele.Callback{Unique: "pkg", Data: "package_8h"},
			"pkg", "package_8h",
		},
		"raw_wire": {
			&tele.Callback{Data: "\fpkg|package_8h"},
			"pkg", "package_8h",
		},
		"raw_no_payload": {
			&tele.Callback{Data: "\fpkg"},
			"pkg", "",
		},
		"plain": {
			&tele.Callback{Data: "package_8h"},
			"package_8h", "",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			unique, payload := ParseCallbackData(tc.cb)
			assert.Equal(t, tc.wantUnique, unique)
			assert.Equal(t, tc.wantPayload, payload)
		})
	}
}
