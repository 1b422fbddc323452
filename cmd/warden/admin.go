package main

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sleetbot/warden/automod/dehoist"
	"github.com/sleetbot/warden/automod/engine"
	"github.com/sleetbot/warden/automod/rules"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
)

type RuleView struct {
	ID          int      `json:"id"`
	Kind        string   `json:"kind"`
	Punishment  string   `json:"punishment"`
	Limit       int      `json:"limit"`
	Window      int      `json:"window"`
	Params      []string `json:"params,omitempty"`
	Description string   `json:"description"`
}

func ruleView(def engine.RuleDefinition) RuleView {
	return RuleView{
		ID:          def.ID,
		Kind:        string(def.Kind),
		Punishment:  def.Punishment.String(),
		Limit:       def.StrikeLimit,
		Window:      def.StrikeWindowSeconds,
		Params:      def.Parameters,
		Description: def.Describe(),
	}
}

type AddRuleRequest struct {
	Kind       string   `json:"kind"`
	Punishment string   `json:"punishment"`
	Limit      int      `json:"limit"`
	Window     int      `json:"window"`
	Params     []string `json:"params"`
}

type SettingsView struct {
	AnnouncePrefix  string   `json:"announcePrefix"`
	SilenceTriggers []string `json:"silenceTriggers"`
	RolebanRoleID   string   `json:"rolebanRoleId"`
	ModLogChannelID string   `json:"modlogChannelId"`
	DehoistEnabled  bool     `json:"dehoistEnabled"`
	HoistCharacters string   `json:"hoistCharacters"`
	DehoistPrepend  string   `json:"dehoistPrepend"`
}

func settingsView(gs engine.GuildSettings) SettingsView {
	return SettingsView{
		AnnouncePrefix:  gs.AnnouncePrefix,
		SilenceTriggers: gs.SilenceTriggers,
		RolebanRoleID:   gs.RolebanRoleID,
		ModLogChannelID: gs.ModLogChannelID,
		DehoistEnabled:  gs.Dehoist.Enabled,
		HoistCharacters: gs.Dehoist.HoistCharacters,
		DehoistPrepend:  gs.Dehoist.Prepend,
	}
}

func (v SettingsView) settings(guildID string) engine.GuildSettings {
	return engine.GuildSettings{
		GuildID:         guildID,
		AnnouncePrefix:  v.AnnouncePrefix,
		SilenceTriggers: v.SilenceTriggers,
		RolebanRoleID:   v.RolebanRoleID,
		ModLogChannelID: v.ModLogChannelID,
		Dehoist: engine.DehoistSettings{
			Enabled:         v.DehoistEnabled,
			HoistCharacters: v.HoistCharacters,
			Prepend:         v.DehoistPrepend,
		},
	}
}

// Empty members dehoists every hoisted member of the guild. Force renames named members even when their name isn't hoisted. Character overrides fall back to the guild settings.
type DehoistRequest struct {
	Members         []string `json:"members"`
	Force           bool     `json:"force"`
	HoistCharacters string   `json:"hoistCharacters"`
	Prepend         string   `json:"prepend"`
}

type DehoistView struct {
	Dehoisted int `json:"dehoisted"`
	Failed    int `json:"failed"`
}

type SilenceView struct {
	ChannelID string `json:"channel"`
	Count     int    `json:"count"`
}

// Operator API of the running daemon. Rule and settings changes go through the live registry, so they apply immediately.
type AdminAPI struct {
	logger *slog.Logger
	engine *engine.Engine
	// empty disables auth
	token string
	// for the HTTP request metrics; defaults to the global registry
	Registerer prometheus.Registerer
	// both required for manual dehoists
	Dehoister *dehoist.Dehoister
	Members   dehoist.MemberLister
}

func NewAdminAPI(logger *slog.Logger, eng *engine.Engine, token string) *AdminAPI {
	return &AdminAPI{
		logger: logger.With("component", "admin"),
		engine: eng,
		token:  token,
	}
}

func (a *AdminAPI) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(slogecho.New(a.logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))
	reg := a.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "warden",
		Registerer: reg,
	}))

	e.GET("/_health", a.HandleHealthCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	g := e.Group("/admin", a.checkAdminAuth)
	g.GET("/kinds", a.HandleKinds)
	g.GET("/guilds/:guild/rules", a.HandleListRules)
	g.POST("/guilds/:guild/rules", a.HandleAddRule)
	g.DELETE("/guilds/:guild/rules/:id", a.HandleDeleteRule)
	g.GET("/guilds/:guild/settings", a.HandleGetSettings)
	g.PUT("/guilds/:guild/settings", a.HandlePutSettings)
	g.POST("/guilds/:guild/dehoist", a.HandleDehoist)
	g.GET("/silence", a.HandleListSilence)
	g.GET("/silence/:channel", a.HandleGetSilence)
	g.DELETE("/silence/:channel", a.HandleClearSilence)
	g.POST("/whispers/:channel/:user/restore", a.HandleRestoreWhisper)
	return e
}

const authorizationBearerPrefix = "Bearer "

func (a *AdminAPI) checkAdminAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if a.token == "" {
			return next(c)
		}
		authheader := c.Request().Header.Get("Authorization")
		if !strings.HasPrefix(authheader, authorizationBearerPrefix) {
			return echo.ErrForbidden
		}
		token := authheader[len(authorizationBearerPrefix):]
		if subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
			return echo.ErrForbidden
		}
		return next(c)
	}
}

// maps registry write errors onto HTTP statuses
func registryError(err error) error {
	switch {
	case errors.Is(err, engine.ErrNotWarm):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, engine.ErrConfiguration):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrRuleNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return err
}

func (a *AdminAPI) HandleHealthCheck(c echo.Context) error {
	if !a.engine.Registry.IsWarm() {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{"status": "warming"})
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "version": versioninfo.Short()})
}

func (a *AdminAPI) HandleKinds(c echo.Context) error {
	out := make(map[string]string)
	for _, k := range rules.Kinds() {
		out[string(k)] = rules.KindDocs[k]
	}
	return c.JSON(http.StatusOK, out)
}

func (a *AdminAPI) HandleListRules(c echo.Context) error {
	out := []RuleView{}
	for _, def := range a.engine.Registry.Definitions(c.Param("guild")) {
		out = append(out, ruleView(def))
	}
	return c.JSON(http.StatusOK, out)
}

func (a *AdminAPI) HandleAddRule(c echo.Context) error {
	var req AddRuleRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	punishment, err := engine.ParsePunishment(req.Punishment)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	kind := engine.Kind(strings.ToLower(strings.TrimSpace(req.Kind)))
	def, err := a.engine.Registry.Add(c.Request().Context(), c.Param("guild"), kind, punishment, req.Limit, req.Window, req.Params)
	if err != nil {
		return registryError(err)
	}
	return c.JSON(http.StatusCreated, ruleView(*def))
}

func (a *AdminAPI) HandleDeleteRule(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "rule id must be a number")
	}
	def, err := a.engine.Registry.Remove(c.Request().Context(), c.Param("guild"), id)
	if err != nil {
		return registryError(err)
	}
	return c.JSON(http.StatusOK, ruleView(*def))
}

func (a *AdminAPI) HandleGetSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, settingsView(a.engine.Registry.Settings(c.Param("guild"))))
}

func (a *AdminAPI) HandlePutSettings(c echo.Context) error {
	var req SettingsView
	if err := c.Bind(&req); err != nil {
		return err
	}
	settings := req.settings(c.Param("guild"))
	if err := a.engine.Registry.UpdateSettings(c.Request().Context(), settings); err != nil {
		return registryError(err)
	}
	return c.JSON(http.StatusOK, settingsView(settings))
}

func (a *AdminAPI) HandleDehoist(c echo.Context) error {
	if a.Dehoister == nil || a.Members == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "dehoisting not configured")
	}
	var req DehoistRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	guildID := c.Param("guild")
	settings := a.engine.Registry.Settings(guildID).Dehoist
	if req.HoistCharacters != "" {
		settings.HoistCharacters = req.HoistCharacters
	}
	if req.Prepend != "" {
		settings.Prepend = req.Prepend
	}
	res, err := a.Dehoister.RunDehoist(c.Request().Context(), a.Members, settings, guildID, req.Members, req.Force)
	if errors.Is(err, engine.ErrPermissionDenied) {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	} else if err != nil {
		return err
	}
	a.logger.Info("manual dehoist", "guild", guildID, "dehoisted", res.Dehoisted, "failed", res.Failed)
	return c.JSON(http.StatusOK, DehoistView{Dehoisted: res.Dehoisted, Failed: res.Failed})
}

func (a *AdminAPI) HandleListSilence(c echo.Context) error {
	out := []SilenceView{}
	if a.engine.Silence != nil {
		for ch, n := range a.engine.Silence.Snapshot() {
			out = append(out, SilenceView{ChannelID: ch, Count: n})
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (a *AdminAPI) HandleGetSilence(c echo.Context) error {
	ch := c.Param("channel")
	return c.JSON(http.StatusOK, SilenceView{ChannelID: ch, Count: a.engine.SilenceCount(ch)})
}

// Responds with the count from before the reset.
func (a *AdminAPI) HandleClearSilence(c echo.Context) error {
	ch := c.Param("channel")
	prev := a.engine.ClearSilence(ch)
	a.logger.Info("cleared silence counter", "channel", ch, "previous", prev)
	return c.JSON(http.StatusOK, SilenceView{ChannelID: ch, Count: prev})
}

func (a *AdminAPI) HandleRestoreWhisper(c echo.Context) error {
	ch, user := c.Param("channel"), c.Param("user")
	pending := a.engine.Dispatcher.WhisperPending(ch, user)
	if err := a.engine.Dispatcher.RestoreWhisper(c.Request().Context(), ch, user); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"restored": pending})
}
