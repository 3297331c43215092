// Package channel pushes the selected proxy to the channels of a New-API
// style management server.
package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	pkgerrors "proxyscout/pkg/errors"
)

// Config holds the management API credentials.
type Config struct {
	BaseURL string
	AdminID string
	Token   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client updates the proxy setting of channels.
type Client struct {
	baseURL string
	adminID string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		adminID: cfg.AdminID,
		token:   cfg.Token,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
	}
}

type updateRequest struct {
	ID      int    `json:"id"`
	Setting string `json:"setting"`
}

type channelSetting struct {
	Proxy string `json:"proxy"`
}

// UpdateProxy sets proxyURL on every channel in order and stops at the first
// failure.
func (c *Client) UpdateProxy(ctx context.Context, channelIDs []int, proxyURL string) error {
	if len(channelIDs) == 0 {
		return pkgerrors.ErrNoChannels
	}
	for _, id := range channelIDs {
		if err := c.updateOne(ctx, id, proxyURL); err != nil {
			return err
		}
		c.logger.Info("channel proxy updated", zap.Int("channel_id", id))
	}
	return nil
}

func (c *Client) updateOne(ctx context.Context, id int, proxyURL string) error {
	setting, err := json.Marshal(channelSetting{Proxy: proxyURL})
	if err != nil {
		return &pkgerrors.ChannelError{ChannelID: id, Err: err}
	}
	body, err := json.Marshal(updateRequest{ID: id, Setting: string(setting)})
	if err != nil {
		return &pkgerrors.ChannelError{ChannelID: id, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/api/channel/", bytes.NewReader(body))
	if err != nil {
		return &pkgerrors.ChannelError{ChannelID: id, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("New-Api-User", c.adminID)
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &pkgerrors.ChannelError{ChannelID: id, Err: fmt.Errorf("%w: %w", pkgerrors.ErrChannelUpdateFailed, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &pkgerrors.ChannelError{
			ChannelID:  id,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
			Err:        pkgerrors.ErrChannelUpdateFailed,
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
