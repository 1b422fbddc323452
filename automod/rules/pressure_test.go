package rules

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sleetbot/warden/automod/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPressureAccumulates(t *testing.T) {
	assert := assert.New(t)
	f, _ := testFactory()
	// threshold 30; zero per-char weight keeps the arithmetic simple
	rule := mustBuild(t, f, engine.KindPressure, "kick", 3, 30, "char=0")
	pr := rule.(*pressureRule)
	key := engine.SubjectKey("g1", "u1")

	assert.Nil(rule.Evaluate(ctxb, userMsg("u1", "one")))
	assert.InDelta(10, pr.Pressure(key), 0.001)
	assert.Nil(rule.Evaluate(ctxb, userMsg("u1", "two")))
	v := rule.Evaluate(ctxb, userMsg("u1", "three"))
	require.NotNil(t, v)
	assert.Equal(engine.PunishKick, v.Punishment.Kind)
	assert.InDelta(0, pr.Pressure(key), 0.001)
}

func TestPressureDecay(t *testing.T) {
	assert := assert.New(t)
	f, clock := testFactory()
	// decays at threshold/window = 30/30 = 1 per second
	rule := mustBuild(t, f, engine.KindPressure, "kick", 3, 30, "char=0")
	pr := rule.(*pressureRule)
	key := engine.SubjectKey("g1", "u1")

	assert.Nil(rule.Evaluate(ctxb, userMsg("u1", "a")))
	assert.Nil(rule.Evaluate(ctxb, userMsg("u1", "b")))
	clock.Advance(5 * time.Second)
	assert.InDelta(15, pr.Pressure(key), 0.001)
	assert.Nil(rule.Evaluate(ctxb, userMsg("u1", "c")))
	assert.InDelta(25, pr.Pressure(key), 0.001)

	clock.Advance(time.Minute)
	assert.InDelta(0, pr.Pressure(key), 0.001)
	assert.Nil(rule.Evaluate(ctxb, userMsg("u1", "d")))
}

func TestPressureWeights(t *testing.T) {
	assert := assert.New(t)
	f, _ := testFactory()
	rule := mustBuild(t, f, engine.KindPressure, "kick", 10, 60)
	pr := rule.(*pressureRule)

	m := userMsg("u1", "line one\nline two")
	m.MentionUsers = []string{"a", "b"}
	m.MentionEveryone = true
	m.Attachments = 1
	m.Embeds = []engine.Embed{{Title: "x"}}
	want := 10 + 0.05*17 + 3 + 2.5*3 + 8 + 8
	assert.InDelta(want, pr.weigh(m, ""), 0.0001)
	// repeat bonus
	assert.InDelta(want+10, pr.weigh(m, m.Content), 0.0001)

	big := userMsg("u2", strings.Repeat("x", 2000))
	assert.InDelta(10+100, pr.weigh(big, ""), 0.0001)
}

func TestPressureOverrides(t *testing.T) {
	assert := assert.New(t)
	f, _ := testFactory()
	rule := mustBuild(t, f, engine.KindPressure, "kick", 1, 60, "threshold=25", "base=5", "char=0", "repeat=20")

	assert.Nil(rule.Evaluate(ctxb, userMsg("u1", "same")))
	assert.NotNil(rule.Evaluate(ctxb, userMsg("u1", "same")))
}

func TestPressureZeroWindow(t *testing.T) {
	assert := assert.New(t)
	f, _ := testFactory()
	rule := mustBuild(t, f, engine.KindPressure, "kick", 2, 0, "char=0")

	// no carry-over: each message is judged on its own
	for i := 0; i < 5; i++ {
		assert.Nil(rule.Evaluate(ctxb, userMsg("u1", fmt.Sprintf("hello %d", i))))
	}
	m := userMsg("u1", "")
	m.Attachments = 2
	assert.NotNil(rule.Evaluate(ctxb, m))
}
