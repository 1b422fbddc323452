package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	ModLogCategory = "automod_action"
	ModLogEmoji    = "\U0001F432"
	ModLogTitle    = "Automod"
)

// Outcome of dispatching a single verdict.
type DispatchResult struct {
	Verdict *Verdict
	// past-tense description used in the announcement, eg "kicked"
	Action string
	// the platform action (if any) completed
	Performed bool
	// a public announcement was sent to the message's channel
	Announced bool
	// populated when the action was skipped without an error, eg target not kickable
	Note string
	Err  error
}

type pendingWhisper struct {
	// overwrite held before the first whisper; nil if the member had none
	original *Overwrite
}

// Executes punishments against the Platform and writes moderation log entries. Failures never propagate out of Dispatch.
type Dispatcher struct {
	Logger   *slog.Logger
	Platform Platform
	// optional
	ModLog  ModLog
	Silence *SilenceCounter
	// days of message history purged by ban and softban
	BanPurgeDays int
	// if positive, whisper restrictions are lifted automatically after this long
	WhisperHold time.Duration

	lk       sync.Mutex
	whispers map[string]*pendingWhisper
}

func NewDispatcher(logger *slog.Logger, plat Platform, modlog ModLog, silence *SilenceCounter) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		Logger:       logger.With("component", "dispatcher"),
		Platform:     plat,
		ModLog:       modlog,
		Silence:      silence,
		BanPurgeDays: 1,
		whispers:     make(map[string]*pendingWhisper),
	}
}

func whisperKey(channelID, userID string) string {
	return channelID + "/" + userID
}

func verdictReason(v *Verdict) string {
	if v.Reason != "" {
		return v.Reason
	}
	if v.Kind != "" {
		return string(v.Kind)
	}
	return "No reason!"
}

// Applies the verdict's punishment for the given message, purges side-effect deletes, announces (when appropriate), and writes exactly one moderation log entry.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *Message, settings GuildSettings, v *Verdict) *DispatchResult {
	logger := d.Logger.With("guild", msg.GuildID, "channel", msg.ChannelID, "user", msg.Author.ID, "rule", v.RuleID, "punishment", v.Punishment.Kind)
	reason := verdictReason(v)
	res := &DispatchResult{Verdict: v}

	announce := false
	triggerDeleted := false
	var extra string

	switch v.Punishment.Kind {
	case PunishDelete:
		res.Action = "silenced (message deleted)"
		announce = true
		res.Err = d.Platform.DeleteMessage(ctx, msg.Ref())
		triggerDeleted = res.Err == nil
	case PunishRoleBan:
		res.Action = "rolebanned"
		announce = true
		res.Err = d.roleban(ctx, msg, settings, reason)
	case PunishKick:
		res.Action = "kicked"
		announce = true
		res.Note, res.Err = d.kick(ctx, msg, reason)
	case PunishBan:
		res.Action = "banned"
		announce = true
		res.Note, res.Err = d.ban(ctx, msg, reason, false)
	case PunishSoftBan:
		res.Action = "softbanned"
		announce = true
		res.Note, res.Err = d.ban(ctx, msg, reason, true)
	case PunishWhisper:
		res.Action = "whispered to"
		announce = true
		extra = "Told them: " + v.Punishment.Message
		res.Err = d.whisper(ctx, msg, v.Punishment.Message)
	case PunishLogOnly:
		res.Action = "nothing (log)"
	default:
		res.Action = "nothing"
	}
	res.Performed = res.Err == nil && res.Note == ""

	if res.Err != nil {
		class := ErrorClass(res.Err)
		dispatchFailureCount.WithLabelValues(string(v.Punishment.Kind), class).Inc()
		logger.Warn("automod punishment failed", "class", class, "err", res.Err)
	} else if res.Note != "" {
		logger.Info("automod punishment skipped", "note", res.Note)
	}

	d.purge(ctx, logger, msg, v.Deletes, triggerDeleted)

	line := fmt.Sprintf("%s was **%s** for *%s*", msg.Author.Tag(), res.Action, reason)
	if announce && res.Performed {
		if d.Silence != nil && d.Silence.Silenced(msg.ChannelID) {
			logger.Debug("announcement suppressed by silence counter")
		} else if _, err := d.Platform.SendMessage(ctx, msg.ChannelID, settings.AnnouncePrefix+line); err != nil {
			logger.Warn("failed to send automod announcement", "err", err)
		} else {
			res.Announced = true
		}
	}

	body := line
	if extra != "" {
		body += fmt.Sprintf("\n> *%s*", extra)
	}
	if res.Err != nil {
		body += fmt.Sprintf("\n> *Failed (%s): %s*", ErrorClass(res.Err), res.Err)
	} else if res.Note != "" {
		body += fmt.Sprintf("\n> *Not performed: %s*", res.Note)
	}
	body += "\n> " + msg.Ref().URL()
	d.writeLog(ctx, logger, msg.GuildID, body)

	logger.Info("automod verdict dispatched", "action", res.Action, "performed", res.Performed, "announced", res.Announced)
	return res
}

func (d *Dispatcher) writeLog(ctx context.Context, logger *slog.Logger, guildID, body string) {
	if d.ModLog == nil {
		return
	}
	if err := d.ModLog.CreateLogEntry(ctx, guildID, ModLogCategory, ModLogEmoji, ModLogTitle, body); err != nil {
		modlogFailureCount.Inc()
		logger.Warn("failed to write moderation log entry", "err", err)
	}
}

// Best-effort removal of side-effect messages. Single deletes for lone messages, bulk deletes per channel otherwise.
func (d *Dispatcher) purge(ctx context.Context, logger *slog.Logger, msg *Message, refs []MessageRef, triggerDeleted bool) {
	var order []string
	byChannel := make(map[string][]string)
	seen := make(map[string]bool)
	for _, ref := range refs {
		if triggerDeleted && ref.MessageID == msg.ID {
			continue
		}
		if seen[ref.MessageID] {
			continue
		}
		seen[ref.MessageID] = true
		if _, ok := byChannel[ref.ChannelID]; !ok {
			order = append(order, ref.ChannelID)
		}
		byChannel[ref.ChannelID] = append(byChannel[ref.ChannelID], ref.MessageID)
	}

	for _, channelID := range order {
		ids := byChannel[channelID]
		var err error
		if len(ids) == 1 {
			err = d.Platform.DeleteMessage(ctx, MessageRef{GuildID: msg.GuildID, ChannelID: channelID, MessageID: ids[0]})
		} else {
			err = d.Platform.BulkDeleteMessages(ctx, channelID, ids)
		}
		if err != nil {
			logger.Debug("ignoring failed side-effect delete", "target_channel", channelID, "count", len(ids), "err", err)
		}
	}
}

func (d *Dispatcher) roleban(ctx context.Context, msg *Message, settings GuildSettings, reason string) error {
	if settings.RolebanRoleID != "" && !msg.HasRole(settings.RolebanRoleID) {
		return d.Platform.AddRole(ctx, msg.GuildID, msg.Author.ID, settings.RolebanRoleID, "Automod: "+reason)
	}
	// already rolebanned (or no role configured): mute in this channel instead
	ow, err := d.Platform.GetPermissionOverwrite(ctx, msg.ChannelID, msg.Author.ID)
	if err != nil {
		return err
	}
	next := Overwrite{Deny: PermissionSendMessages}
	if ow != nil {
		next = Overwrite{Allow: ow.Allow &^ PermissionSendMessages, Deny: ow.Deny | PermissionSendMessages}
	}
	return d.Platform.SetPermissionOverwrite(ctx, msg.ChannelID, msg.Author.ID, next, "Automod: "+reason)
}

func (d *Dispatcher) kick(ctx context.Context, msg *Message, reason string) (string, error) {
	ok, err := d.Platform.CanKick(ctx, msg.GuildID, msg.Author.ID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "member is not kickable", nil
	}
	return "", d.Platform.Kick(ctx, msg.GuildID, msg.Author.ID, reason)
}

func (d *Dispatcher) ban(ctx context.Context, msg *Message, reason string, soft bool) (string, error) {
	ok, err := d.Platform.CanBan(ctx, msg.GuildID, msg.Author.ID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "member is not bannable", nil
	}
	if err := d.Platform.Ban(ctx, msg.GuildID, msg.Author.ID, reason, d.BanPurgeDays); err != nil {
		return "", err
	}
	if soft {
		if err := d.Platform.Unban(ctx, msg.GuildID, msg.Author.ID); err != nil {
			return "", fmt.Errorf("unban after softban: %w", err)
		}
	}
	return "", nil
}

// Sends the whisper text, then hides the channel from the member (retaining whatever overwrite they held before) and removes the whisper from the channel.
func (d *Dispatcher) whisper(ctx context.Context, msg *Message, text string) error {
	sent, err := d.Platform.SendMessage(ctx, msg.ChannelID, fmt.Sprintf("<@%s>, %s", msg.Author.ID, text))
	if err != nil {
		return fmt.Errorf("sending whisper: %w", err)
	}
	if sent != nil {
		ref := *sent
		// runs after the overwrite is set; failures here don't fail the punishment
		defer func() {
			if err := d.Platform.DeleteMessage(ctx, ref); err != nil {
				d.Logger.Warn("failed to delete whisper message", "channel", ref.ChannelID, "message", ref.MessageID, "err", err)
			}
		}()
	}

	original, err := d.Platform.GetPermissionOverwrite(ctx, msg.ChannelID, msg.Author.ID)
	if err != nil {
		return fmt.Errorf("reading channel overwrite: %w", err)
	}

	key := whisperKey(msg.ChannelID, msg.Author.ID)
	d.lk.Lock()
	pending, already := d.whispers[key]
	if !already {
		pending = &pendingWhisper{}
		if original != nil {
			cp := *original
			pending.original = &cp
		}
		d.whispers[key] = pending
	}
	d.lk.Unlock()

	next := Overwrite{Deny: PermissionViewChannel}
	if original != nil {
		next = Overwrite{Allow: original.Allow &^ PermissionViewChannel, Deny: original.Deny | PermissionViewChannel}
	}
	if err := d.Platform.SetPermissionOverwrite(ctx, msg.ChannelID, msg.Author.ID, next, "Whisper: "+text); err != nil {
		if !already {
			d.lk.Lock()
			delete(d.whispers, key)
			d.lk.Unlock()
		}
		return fmt.Errorf("hiding channel: %w", err)
	}

	if d.WhisperHold > 0 && !already {
		channelID, userID := msg.ChannelID, msg.Author.ID
		time.AfterFunc(d.WhisperHold, func() {
			if err := d.RestoreWhisper(context.Background(), channelID, userID); err != nil {
				d.Logger.Warn("failed to restore whispered member", "channel", channelID, "user", userID, "err", err)
			}
		})
	}
	return nil
}

// Whether a whisper restriction is currently pending restoration.
func (d *Dispatcher) WhisperPending(channelID, userID string) bool {
	d.lk.Lock()
	defer d.lk.Unlock()
	_, ok := d.whispers[whisperKey(channelID, userID)]
	return ok
}

// Restores the member's channel overwrite to what it was before they were whispered to, or removes the restriction if there was none. No-op if nothing is pending.
func (d *Dispatcher) RestoreWhisper(ctx context.Context, channelID, userID string) error {
	key := whisperKey(channelID, userID)
	d.lk.Lock()
	pending, ok := d.whispers[key]
	delete(d.whispers, key)
	d.lk.Unlock()
	if !ok {
		return nil
	}

	if pending.original == nil {
		err := d.Platform.DeletePermissionOverwrite(ctx, channelID, userID, "Hide whisper")
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	return d.Platform.SetPermissionOverwrite(ctx, channelID, userID, *pending.original, "Hide whisper")
}
