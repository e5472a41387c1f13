// Package watch2gether talks to the Watch2Gether room API.
package watch2gether

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

	"go.uber.org/zap"
)

const (
	createTimeout = 10 * time.Second
	checkTimeout  = 5 * time.Second
)

var ErrMissingAPIKey = errors.New("watch2gether API key not configured")

type Client struct {
	apiKey      string
	apiURL      string
	roomBaseURL string
	http        *http.Client
	log         *zap.SugaredLogger
}

func NewClient(apiKey, apiURL, roomBaseURL string, log *zap.SugaredLogger) *Client {
	return &Client{
		apiKey:      apiKey,
		apiURL:      strings.TrimRight(apiURL, "/"),
		roomBaseURL: strings.TrimRight(roomBaseURL, "/"),
		http:        &http.Client{},
		log:         log,
	}
}

type createRequest struct {
	APIKey string `json:"w2g_api_key"`
}

type createResponse struct {
	StreamKey string `json:"streamkey"`
}

// CreateRoom asks the API for a new room and returns its public URL.
func (c *Client) CreateRoom(ctx context.Context) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	ctx, cancel := context.WithTimeout(ctx, createTimeout)
	defer cancel()

	body, err := json.Marshal(createRequest{APIKey: c.apiKey})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/rooms/create.json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("create room request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Errorf("Watch2gether API returned status %d: %s", resp.StatusCode, msg)
		return "", fmt.Errorf("watch2gether API returned status %d", resp.StatusCode)
	}

	var out createResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode create room response: %w", err)
	}
	if out.StreamKey == "" {
		return "", errors.New("no streamkey in watch2gether response")
	}

	url := c.RoomURL(out.StreamKey)
	c.log.Infof("Created Watch2gether room %s", url)
	return url, nil
}

func (c *Client) RoomURL(streamKey string) string {
	return c.roomBaseURL + "/rooms/" + streamKey
}

// RoomExists fetches the room page. 404 means the room is gone; any other
// status counts as alive. Rooms hosted elsewhere cannot be checked and are
// reported alive.
func (c *Client) RoomExists(ctx context.Context, url string) (bool, error) {
	prefix := c.roomBaseURL + "/rooms/"
	if !strings.HasPrefix(url, prefix) || strings.TrimPrefix(url, prefix) == "" {
		c.log.Debugf("Skipping room check for foreign URL %s", url)
		return true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return true, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return true, fmt.Errorf("check room: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		c.log.Warnf("Unexpected status %d checking room %s, assuming it exists", resp.StatusCode, url)
		return true, nil
	}
}
