package provisioner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dimitrije/teamforge/internal/config"
	"golang.org/x/oauth2/clientcredentials"
)

const defaultTimeout = 5 * time.Second

// Client talks to the resource service over HTTP, authenticated with an
// OAuth2 client-credentials token.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(ctx context.Context, cfg config.ProvisionerConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.TokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		httpClient = cc.Client(ctx)
		httpClient.Timeout = cfg.Timeout
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    httpClient,
	}
}

type idResponse struct {
	ID string `json:"id"`
}

func (c *Client) CreateParent(ctx context.Context, name string) (string, error) {
	var resp idResponse
	if err := c.do(ctx, "create_parent", http.MethodPost, "/parents", map[string]string{"name": name}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) DeleteParent(ctx context.Context, parentID string) error {
	return ignoreNotFound(c.do(ctx, "delete_parent", http.MethodDelete, "/parents/"+url.PathEscape(parentID), nil, nil))
}

// CreateChannelPair creates the text channel, then the voice channel. If the
// voice channel cannot be created the text channel is removed again, so a
// failed call leaves nothing behind unless that cleanup fails too.
func (c *Client) CreateChannelPair(ctx context.Context, parentID, name string, grants []string) (ChannelPair, error) {
	text, err := c.createChannel(ctx, parentID, name, "text", grants)
	if err != nil {
		return ChannelPair{}, err
	}

	voice, err := c.createChannel(ctx, parentID, VoiceName(name), "voice", grants)
	if err != nil {
		if cleanupErr := c.deleteChannel(context.WithoutCancel(ctx), text); cleanupErr != nil {
			return ChannelPair{}, errors.Join(err, fmt.Errorf("orphaned text channel %s: %w", text, cleanupErr))
		}
		return ChannelPair{}, err
	}

	return ChannelPair{TextID: text, VoiceID: voice}, nil
}

func (c *Client) createChannel(ctx context.Context, parentID, name, kind string, grants []string) (string, error) {
	body := map[string]any{
		"parent_id": parentID,
		"name":      name,
		"kind":      kind,
		"grants":    grants,
	}
	var resp idResponse
	if err := c.do(ctx, "create_channel", http.MethodPost, "/channels", body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) RenameChannelPair(ctx context.Context, pair ChannelPair, name string) error {
	if err := c.do(ctx, "rename_channel", http.MethodPatch, "/channels/"+url.PathEscape(pair.TextID),
		map[string]string{"name": name}, nil); err != nil {
		return err
	}
	return c.do(ctx, "rename_channel", http.MethodPatch, "/channels/"+url.PathEscape(pair.VoiceID),
		map[string]string{"name": VoiceName(name)}, nil)
}

func (c *Client) DeleteChannelPair(ctx context.Context, pair ChannelPair) error {
	return errors.Join(c.deleteChannel(ctx, pair.TextID), c.deleteChannel(ctx, pair.VoiceID))
}

func (c *Client) deleteChannel(ctx context.Context, channelID string) error {
	err := ignoreNotFound(c.do(ctx, "delete_channel", http.MethodDelete, "/channels/"+url.PathEscape(channelID), nil, nil))
	if err != nil {
		return fmt.Errorf("channel %s: %w", channelID, err)
	}
	return nil
}

func (c *Client) SetGrants(ctx context.Context, channelID string, memberIDs []string) error {
	if memberIDs == nil {
		memberIDs = []string{}
	}
	return c.do(ctx, "set_grants", http.MethodPut, "/channels/"+url.PathEscape(channelID)+"/grants",
		map[string][]string{"member_ids": memberIDs}, nil)
}

func (c *Client) SendDirectNotice(ctx context.Context, userID string, notice Notice) error {
	return c.do(ctx, "send_direct_notice", http.MethodPost, "/users/"+url.PathEscape(userID)+"/notices", notice, nil)
}

func (c *Client) PostChannelNotice(ctx context.Context, channelID string, notice Notice) error {
	return c.do(ctx, "post_channel_notice", http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/notices", notice, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Kind: ErrPermanent, Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Op: op, Kind: ErrPermanent, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: op, Kind: ErrTransient, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &Error{
			Op:     op,
			Status: resp.StatusCode,
			Kind:   classifyStatus(resp.StatusCode),
			Err:    errors.New(strings.TrimSpace(string(msg))),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &Error{Op: op, Kind: ErrTransient, Err: fmt.Errorf("failed to decode response: %w", err)}
		}
	}
	return nil
}

func classifyStatus(status int) error {
	switch {
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout, status >= 500:
		return ErrTransient
	default:
		return ErrPermanent
	}
}

// ignoreNotFound makes deletions idempotent.
func ignoreNotFound(err error) error {
	var perr *Error
	if errors.As(err, &perr) && perr.Status == http.StatusNotFound {
		return nil
	}
	return err
}
