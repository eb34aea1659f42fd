// Package backend is the HTTP client for the platform's call session API.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/nocturne-gg/callkit/internal/core"
	"github.com/nocturne-gg/callkit/internal/domain"
)

// Client implements core.SessionAPI against the platform backend. Error
// bodies from the backend become the user-visible failure message.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) CreateSession(ctx context.Context, kind domain.ContextKind, contextID string, speaking domain.IdentityID) (*core.SessionGrant, error) {
	req := struct {
		Kind             domain.ContextKind `json:"kind"`
		ContextID        string             `json:"context_id"`
		SpeakingIdentity domain.IdentityID  `json:"speaking_identity"`
	}{kind, contextID, speaking}

	var grant core.SessionGrant
	if err := c.do(ctx, http.MethodPost, "/v1/call-sessions", req, &grant); err != nil {
		return nil, err
	}
	if grant.SessionID == "" || grant.TransportURL == "" {
		return nil, errors.New("backend returned an incomplete session grant")
	}
	return &grant, nil
}

func (c *Client) LeaveSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/call-sessions/"+sessionID, nil, nil)
}

func (c *Client) MuteParticipant(ctx context.Context, sessionID string, actor, target domain.IdentityID) ([]core.ModerationEntry, error) {
	req := struct {
		Actor  domain.IdentityID `json:"actor"`
		Target domain.IdentityID `json:"target"`
	}{actor, target}

	var resp struct {
		Participants []core.ModerationEntry `json:"participants"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/call-sessions/"+sessionID+"/mute", req, &resp); err != nil {
		return nil, err
	}
	return resp.Participants, nil
}

func (c *Client) EndSession(ctx context.Context, sessionID string, actor domain.IdentityID) error {
	req := struct {
		Actor domain.IdentityID `json:"actor"`
	}{actor}
	return c.do(ctx, http.MethodPost, "/v1/call-sessions/"+sessionID+"/end", req, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var eb errorBody
		if err := json.Unmarshal(raw, &eb); err == nil && eb.Error != "" {
			return errors.New(eb.Error)
		}
		log.Debug().Str("module", "backend").Str("path", path).Int("status", resp.StatusCode).Msg("unstructured error response")
		return fmt.Errorf("backend request failed with status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
