package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sleetbot/warden/automod/dehoist"
	"github.com/sleetbot/warden/automod/engine"
	"github.com/sleetbot/warden/automod/platform"

	"github.com/bwmarrin/discordgo"
)

// Anything gateway handlers can be registered with; *discordgo.Session in practice.
type HandlerAdder interface {
	AddHandler(handler interface{}) func()
}

// Feeds discord gateway events into the automod engine. Events for the same (guild, user) subject are handled strictly in arrival order.
type GatewayConsumer struct {
	Logger *slog.Logger
	Engine *engine.Engine
	// optional
	Dehoister *dehoist.Dehoister
	Queues    *SubjectQueues
	// how often idle subject workers are dropped
	PruneInterval time.Duration

	ctx atomic.Pointer[context.Context]
	// handler removers from Register
	removeLk sync.Mutex
	removers []func()
	// unix millis of the most recent event received
	lastEvent atomic.Int64
}

func NewGatewayConsumer(logger *slog.Logger, eng *engine.Engine, dh *dehoist.Dehoister) *GatewayConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "consumer")
	return &GatewayConsumer{
		Logger:        logger,
		Engine:        eng,
		Dehoister:     dh,
		Queues:        NewSubjectQueues(logger),
		PruneInterval: time.Minute,
	}
}

func (gc *GatewayConsumer) Register(s HandlerAdder) {
	removers := []func(){
		s.AddHandler(func(_ *discordgo.Session, evt *discordgo.MessageCreate) {
			gc.HandleMessage(evt.Message)
		}),
		s.AddHandler(func(_ *discordgo.Session, evt *discordgo.GuildMemberAdd) {
			gc.HandleMemberChange(nil, evt.Member)
		}),
		s.AddHandler(func(_ *discordgo.Session, evt *discordgo.GuildMemberUpdate) {
			gc.HandleMemberChange(evt.BeforeUpdate, evt.Member)
		}),
		s.AddHandler(func(_ *discordgo.Session, evt *discordgo.GuildRoleUpdate) {
			gc.HandleRoleChange(evt.GuildID)
		}),
		s.AddHandler(func(_ *discordgo.Session, evt *discordgo.GuildRoleDelete) {
			gc.HandleRoleChange(evt.GuildID)
		}),
	}
	gc.removeLk.Lock()
	gc.removers = append(gc.removers, removers...)
	gc.removeLk.Unlock()
}

// Removes every handler added by Register.
func (gc *GatewayConsumer) Unregister() {
	gc.removeLk.Lock()
	removers := gc.removers
	gc.removers = nil
	gc.removeLk.Unlock()
	for _, remove := range removers {
		if remove != nil {
			remove()
		}
	}
}

// Runs until the context is cancelled. Handlers are then removed and the queues closed before queued events drain, so nothing new starts during shutdown.
func (gc *GatewayConsumer) Run(ctx context.Context) error {
	if gc.Engine == nil {
		return fmt.Errorf("nil engine")
	}
	gc.ctx.Store(&ctx)

	interval := gc.PruneInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			gc.Logger.Info("gateway consumer shutting down, draining queued events")
			gc.Unregister()
			gc.Queues.Close()
			gc.Queues.Wait()
			return nil
		case <-ticker.C:
			if n := gc.Queues.Prune(); n > 0 {
				gc.Logger.Debug("pruned idle subject workers", "count", n)
			}
		}
	}
}

func (gc *GatewayConsumer) jobContext() context.Context {
	if ctx := gc.ctx.Load(); ctx != nil {
		return *ctx
	}
	return context.Background()
}

// Time of the most recent gateway event, or the zero time if none was seen.
func (gc *GatewayConsumer) LastEvent() time.Time {
	ms := gc.lastEvent.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (gc *GatewayConsumer) HandleMessage(m *discordgo.Message) {
	gc.lastEvent.Store(time.Now().UnixMilli())
	msg := ConvertMessage(m)
	ok := gc.Queues.Enqueue(msg.SubjectKey(), func() {
		_, err := gc.Engine.ProcessMessage(gc.jobContext(), msg)
		if err != nil {
			gc.Logger.Error("engine failed to process message", "guild", msg.GuildID, "channel", msg.ChannelID, "message", msg.ID, "err", err)
		}
	})
	if !ok {
		gc.Logger.Debug("dropping message received during shutdown", "guild", msg.GuildID, "message", msg.ID)
	}
}

// Handles member joins (before is nil) and updates. Cached standing is dropped, and the member is dehoisted if their display name changed.
func (gc *GatewayConsumer) HandleMemberChange(before, after *discordgo.Member) {
	if after == nil || after.User == nil {
		return
	}
	gc.lastEvent.Store(time.Now().UnixMilli())
	guildID, userID := after.GuildID, after.User.ID
	name := platform.DisplayName(after)
	renamed := before == nil || platform.DisplayName(before) != name
	ok := gc.Queues.Enqueue(engine.SubjectKey(guildID, userID), func() {
		ctx := gc.jobContext()
		logger := gc.Logger.With("guild", guildID, "user", userID)
		if err := gc.Engine.PurgeStanding(ctx, guildID, userID); err != nil {
			logger.Error("failed to purge cached standing", "err", err)
		}
		if gc.Dehoister == nil || !renamed {
			return
		}
		settings := gc.Engine.Registry.Settings(guildID)
		m := dehoist.Member{GuildID: guildID, UserID: userID, DisplayName: name}
		if _, err := gc.Dehoister.Check(ctx, settings.Dehoist, m); err != nil {
			logger.Warn("automatic dehoist failed", "err", err)
		}
	})
	if !ok {
		gc.Logger.Debug("dropping member update received during shutdown", "guild", guildID, "user", userID)
	}
}

// Role edits can change the bot's own rank.
func (gc *GatewayConsumer) HandleRoleChange(guildID string) {
	gc.lastEvent.Store(time.Now().UnixMilli())
	if err := gc.Engine.PurgeStanding(gc.jobContext(), guildID, ""); err != nil {
		gc.Logger.Error("failed to purge bot standing", "guild", guildID, "err", err)
	}
}
