package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePunishment(t *testing.T) {
	assert := assert.New(t)

	testCases := []struct {
		raw  string
		kind PunishmentKind
		msg  string
		err  bool
	}{
		{raw: "delete", kind: PunishDelete},
		{raw: "ROLEBAN", kind: PunishRoleBan},
		{raw: " kick ", kind: PunishKick},
		{raw: "ban", kind: PunishBan},
		{raw: "softban", kind: PunishSoftBan},
		{raw: "log", kind: PunishLogOnly},
		{raw: "none", kind: PunishNone},
		{raw: "whisper: please stop", kind: PunishWhisper, msg: "please stop"},
		{raw: "whisper:a:b", kind: PunishWhisper, msg: "a:b"},
		{raw: "whisper", err: true},
		{raw: "whisper:  ", err: true},
		{raw: "kick:now", err: true},
		{raw: "explode", err: true},
		{raw: "", err: true},
	}

	for _, tc := range testCases {
		p, err := ParsePunishment(tc.raw)
		if tc.err {
			assert.True(errors.Is(err, ErrConfiguration), tc.raw)
			continue
		}
		assert.NoError(err, tc.raw)
		assert.Equal(tc.kind, p.Kind, tc.raw)
		assert.Equal(tc.msg, p.Message, tc.raw)
	}

	assert.Equal("whisper:hi there", Punishment{Kind: PunishWhisper, Message: "hi there"}.String())
	assert.Equal("none", Punishment{}.String())
}

func TestErrorClass(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("ok", ErrorClass(nil))
	assert.Equal("permission-denied", ErrorClass(ErrPermissionDenied))
	assert.Equal("not-found", ErrorClass(errors.Join(errors.New("x"), ErrNotFound)))
	assert.Equal("transient", ErrorClass(ErrTransient))
	assert.Equal("other", ErrorClass(errors.New("boom")))
	assert.Equal("invalid limit: too small", NewConfigError("limit", "too %s", "small").Error())
}
