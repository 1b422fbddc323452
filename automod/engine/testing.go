package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sleetbot/warden/automod/cachestore"
)

// Rule backed by a function, for tests and simple one-off checks.
type FuncRule struct {
	Def RuleDefinition
	Fn  func(ctx context.Context, msg *Message) *Verdict
}

var _ Rule = (*FuncRule)(nil)

func (r *FuncRule) Definition() RuleDefinition {
	return r.Def
}

func (r *FuncRule) Evaluate(ctx context.Context, msg *Message) *Verdict {
	return r.Fn(ctx, msg)
}

// Fires on any message containing one of the definition's parameters.
func simpleRule(def RuleDefinition) (Rule, error) {
	if len(def.Parameters) == 0 {
		return nil, NewConfigError("parameters", "simple rule needs at least one phrase")
	}
	return &FuncRule{
		Def: def,
		Fn: func(ctx context.Context, msg *Message) *Verdict {
			for _, p := range def.Parameters {
				if strings.Contains(msg.Content, p) {
					return &Verdict{RuleID: def.ID, Kind: def.Kind, Punishment: def.Punishment, Reason: "said " + p}
				}
			}
			return nil
		},
	}, nil
}

type SentMessage struct {
	ChannelID string
	Content   string
}

// In-memory Platform which records every call. Members default to rank zero with no permissions; the bot defaults to rank 100.
type MockPlatform struct {
	lk sync.Mutex

	Members      map[string]Standing
	BotStandings map[string]Standing
	NotKickable  map[string]bool
	NotBannable  map[string]bool
	Overwrites   map[string]Overwrite
	// method name => error returned by that method
	Errors map[string]error

	Calls       []string
	Sent        []SentMessage
	Deleted     []MessageRef
	BulkDeleted map[string][]string
	nextMsgID   int
}

var _ Platform = (*MockPlatform)(nil)

func NewMockPlatform() *MockPlatform {
	return &MockPlatform{
		Members:      make(map[string]Standing),
		BotStandings: make(map[string]Standing),
		NotKickable:  make(map[string]bool),
		NotBannable:  make(map[string]bool),
		Overwrites:   make(map[string]Overwrite),
		Errors:       make(map[string]error),
		BulkDeleted:  make(map[string][]string),
	}
}

func (p *MockPlatform) record(method string, args ...string) error {
	p.Calls = append(p.Calls, strings.TrimSpace(method+" "+strings.Join(args, " ")))
	return p.Errors[method]
}

// Snapshot of the recorded calls.
func (p *MockPlatform) CallLog() []string {
	p.lk.Lock()
	defer p.lk.Unlock()
	return append([]string(nil), p.Calls...)
}

func (p *MockPlatform) SentMessages() []SentMessage {
	p.lk.Lock()
	defer p.lk.Unlock()
	return append([]SentMessage(nil), p.Sent...)
}

func (p *MockPlatform) SetError(method string, err error) {
	p.lk.Lock()
	defer p.lk.Unlock()
	p.Errors[method] = err
}

func (p *MockPlatform) Overwrite(channelID, userID string) (Overwrite, bool) {
	p.lk.Lock()
	defer p.lk.Unlock()
	ow, ok := p.Overwrites[channelID+"/"+userID]
	return ow, ok
}

func (p *MockPlatform) MemberStanding(ctx context.Context, guildID, userID string) (*Standing, error) {
	p.lk.Lock()
	defer p.lk.Unlock()
	if err := p.record("MemberStanding", guildID, userID); err != nil {
		return nil, err
	}
	st := p.Members[SubjectKey(guildID, userID)]
	return &st, nil
}

func (p *MockPlatform) BotStanding(ctx context.Context, guildID string) (*Standing, error) {
	p.lk.Lock()
	defer p.lk.Unlock()
	if err := p.record("BotStanding", guildID); err != nil {
		return nil, err
	}
	st, ok := p.BotStandings[guildID]
	if !ok {
		st = Standing{TopRolePosition: 100, Permissions: PermissionManageMessages}
	}
	return &st, nil
}

func (p *MockPlatform) CanKick(ctx context.Context, guildID, userID string) (bool, error) {
	p.lk.Lock()
	defer p.lk.Unlock()
	if err := p.record("CanKick", guildID, userID); err != nil {
		return false, err
	}
	return !p.NotKickable[SubjectKey(guildID, userID)], nil
}

func (p *MockPlatform) Kick(ctx context.Context, guildID, userID, reason string) error {
	p.lk.Lock()
	defer p.lk.Unlock()
	return p.record("Kick", guildID, userID)
}

func (p *MockPlatform) CanBan(ctx context.Context, guildID, userID string) (bool, error) {
	p.lk.Lock()
	defer p.lk.Unlock()
	if err := p.record("CanBan", guildID, userID); err != nil {
		return false, err
	}
	return !p.NotBannable[SubjectKey(guildID, userID)], nil
}

func (p *MockPlatform) Ban(ctx context.Context, guildID, userID, reason string, purgeDays int) error {
	p.lk.Lock()
	defer p.lk.Unlock()
	return p.record("Ban", guildID, userID, fmt.Sprint(purgeDays))
}

func (p *MockPlatform) Unban(ctx context.Context, guildID, userID string) error {
	p.lk.Lock()
	defer p.lk.Unlock()
	return p.record("Unban", guildID, userID)
}

func (p *MockPlatform) AddRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	p.lk.Lock()
	defer p.lk.Unlock()
	return p.record("AddRole", guildID, userID, roleID)
}

func (p *MockPlatform) SetNickname(ctx context.Context, guildID, userID, nickname, reason string) error {
	p.lk.Lock()
	defer p.lk.Unlock()
	return p.record("SetNickname", guildID, userID, nickname)
}

func (p *MockPlatform) DeleteMessage(ctx context.Context, ref MessageRef) error {
	p.lk.Lock()
	defer p.lk.Unlock()
	if err := p.record("DeleteMessage", ref.ChannelID, ref.MessageID); err != nil {
		return err
	}
	p.Deleted = append(p.Deleted, ref)
	return nil
}

func (p *MockPlatform) BulkDeleteMessages(ctx context.Context, channelID string, messageIDs []string) error {
	p.lk.Lock()
	defer p.lk.Unlock()
	if err := p.record("BulkDeleteMessages", channelID, strings.Join(messageIDs, ",")); err != nil {
		return err
	}
	p.BulkDeleted[channelID] = append(p.BulkDeleted[channelID], messageIDs...)
	return nil
}

func (p *MockPlatform) SendMessage(ctx context.Context, channelID, content string) (*MessageRef, error) {
	p.lk.Lock()
	defer p.lk.Unlock()
	if err := p.record("SendMessage", channelID); err != nil {
		return nil, err
	}
	p.Sent = append(p.Sent, SentMessage{ChannelID: channelID, Content: content})
	p.nextMsgID++
	return &MessageRef{ChannelID: channelID, MessageID: fmt.Sprintf("sent-%d", p.nextMsgID)}, nil
}

func (p *MockPlatform) GetPermissionOverwrite(ctx context.Context, channelID, userID string) (*Overwrite, error) {
	p.lk.Lock()
	defer p.lk.Unlock()
	if err := p.record("GetPermissionOverwrite", channelID, userID); err != nil {
		return nil, err
	}
	ow, ok := p.Overwrites[channelID+"/"+userID]
	if !ok {
		return nil, nil
	}
	return &ow, nil
}

func (p *MockPlatform) SetPermissionOverwrite(ctx context.Context, channelID, userID string, ow Overwrite, reason string) error {
	p.lk.Lock()
	defer p.lk.Unlock()
	if err := p.record("SetPermissionOverwrite", channelID, userID); err != nil {
		return err
	}
	p.Overwrites[channelID+"/"+userID] = ow
	return nil
}

func (p *MockPlatform) DeletePermissionOverwrite(ctx context.Context, channelID, userID, reason string) error {
	p.lk.Lock()
	defer p.lk.Unlock()
	if err := p.record("DeletePermissionOverwrite", channelID, userID); err != nil {
		return err
	}
	key := channelID + "/" + userID
	if _, ok := p.Overwrites[key]; !ok {
		return fmt.Errorf("overwrite %s: %w", key, ErrNotFound)
	}
	delete(p.Overwrites, key)
	return nil
}

type LogEntry struct {
	GuildID  string
	Category string
	Emoji    string
	Title    string
	Body     string
}

// ModLog which keeps entries in memory.
type MemModLog struct {
	lk      sync.Mutex
	Entries []LogEntry
	Err     error
}

var _ ModLog = (*MemModLog)(nil)

func (m *MemModLog) CreateLogEntry(ctx context.Context, guildID, category, emoji, title, body string) error {
	m.lk.Lock()
	defer m.lk.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Entries = append(m.Entries, LogEntry{GuildID: guildID, Category: category, Emoji: emoji, Title: title, Body: body})
	return nil
}

func (m *MemModLog) List() []LogEntry {
	m.lk.Lock()
	defer m.lk.Unlock()
	return append([]LogEntry(nil), m.Entries...)
}

type EngineFixture struct {
	Engine   *Engine
	Platform *MockPlatform
	ModLog   *MemModLog
	Store    *MemConfigStore
}

// Builds a warmed engine over in-memory collaborators. A nil factory uses a phrase-matching rule for every kind.
func EngineTestFixture(build RuleFactory) *EngineFixture {
	if build == nil {
		build = simpleRule
	}
	logger := slog.Default()
	plat := NewMockPlatform()
	modlog := &MemModLog{}
	store := NewMemConfigStore()
	silence := NewSilenceCounter(3 * time.Second)
	reg := NewRuleRegistry(logger, store, build)
	if err := reg.Warm(context.Background()); err != nil {
		panic(err)
	}
	eng := &Engine{
		Logger:     logger,
		Registry:   reg,
		Dispatcher: NewDispatcher(logger, plat, modlog, silence),
		Platform:   plat,
		Cache:      cachestore.NewMemCacheStore(100, time.Minute, nil),
		Silence:    silence,
	}
	return &EngineFixture{
		Engine:   eng,
		Platform: plat,
		ModLog:   modlog,
		Store:    store,
	}
}

// Minimal guild message from an ordinary member.
func NewTestMessage(guildID, channelID, userID, msgID, content string) *Message {
	return &Message{
		ID:        msgID,
		ChannelID: channelID,
		GuildID:   guildID,
		Author:    Author{ID: userID, Username: "user" + userID},
		Content:   content,
		CreatedAt: time.Now(),
	}
}
