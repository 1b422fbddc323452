package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var errNotFound = errors.New("not found")

// Client for the daemon's admin API, used by the operator subcommands.
type AdminClient struct {
	Host   string
	Token  string
	Client *http.Client
}

func NewAdminClient(host, token string) *AdminClient {
	return &AdminClient{
		Host:   strings.TrimSuffix(host, "/"),
		Token:  token,
		Client: &http.Client{Timeout: 15 * time.Second},
	}
}

type apiError struct {
	Message string `json:"message"`
}

func (ac *AdminClient) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, ac.Host+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ac.Token != "" {
		req.Header.Set("Authorization", "Bearer "+ac.Token)
	}
	resp, err := ac.Client.Do(req)
	if err != nil {
		return fmt.Errorf("admin API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", errNotFound, apiErr.Message)
		}
		return fmt.Errorf("admin API error (status %d): %s", resp.StatusCode, apiErr.Message)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (ac *AdminClient) ListRules(ctx context.Context, guildID string) ([]RuleView, error) {
	var out []RuleView
	err := ac.do(ctx, http.MethodGet, "/admin/guilds/"+guildID+"/rules", nil, &out)
	return out, err
}

func (ac *AdminClient) AddRule(ctx context.Context, guildID string, req AddRuleRequest) (*RuleView, error) {
	var out RuleView
	if err := ac.do(ctx, http.MethodPost, "/admin/guilds/"+guildID+"/rules", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (ac *AdminClient) DeleteRule(ctx context.Context, guildID string, id int) (*RuleView, error) {
	var out RuleView
	if err := ac.do(ctx, http.MethodDelete, fmt.Sprintf("/admin/guilds/%s/rules/%d", guildID, id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (ac *AdminClient) Kinds(ctx context.Context) (map[string]string, error) {
	var out map[string]string
	err := ac.do(ctx, http.MethodGet, "/admin/kinds", nil, &out)
	return out, err
}

func (ac *AdminClient) GetSettings(ctx context.Context, guildID string) (*SettingsView, error) {
	var out SettingsView
	if err := ac.do(ctx, http.MethodGet, "/admin/guilds/"+guildID+"/settings", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (ac *AdminClient) PutSettings(ctx context.Context, guildID string, settings SettingsView) (*SettingsView, error) {
	var out SettingsView
	if err := ac.do(ctx, http.MethodPut, "/admin/guilds/"+guildID+"/settings", settings, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (ac *AdminClient) ListSilence(ctx context.Context) ([]SilenceView, error) {
	var out []SilenceView
	err := ac.do(ctx, http.MethodGet, "/admin/silence", nil, &out)
	return out, err
}

func (ac *AdminClient) GetSilence(ctx context.Context, channelID string) (*SilenceView, error) {
	var out SilenceView
	if err := ac.do(ctx, http.MethodGet, "/admin/silence/"+channelID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (ac *AdminClient) ClearSilence(ctx context.Context, channelID string) (*SilenceView, error) {
	var out SilenceView
	if err := ac.do(ctx, http.MethodDelete, "/admin/silence/"+channelID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (ac *AdminClient) RestoreWhisper(ctx context.Context, channelID, userID string) (bool, error) {
	var out map[string]bool
	if err := ac.do(ctx, http.MethodPost, "/admin/whispers/"+channelID+"/"+userID+"/restore", nil, &out); err != nil {
		return false, err
	}
	return out["restored"], nil
}

func (ac *AdminClient) Dehoist(ctx context.Context, guildID string, req DehoistRequest) (*DehoistView, error) {
	var out DehoistView
	if err := ac.do(ctx, http.MethodPost, "/admin/guilds/"+guildID+"/dehoist", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
