package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/eliteGoblin/focusd/routined/internal/api"
	"github.com/eliteGoblin/focusd/routined/internal/domain"
	"github.com/eliteGoblin/focusd/routined/internal/store"
)

// client wraps the daemon's control API for the management subcommands.
type client struct {
	http *resty.Client
}

func newClient(addr string) *client {
	return &client{
		http: resty.New().
			SetBaseURL(addr).
			SetTimeout(5 * time.Second),
	}
}

func (c *client) checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("cannot reach daemon at %s: %w", c.http.BaseURL, err)
	}
	if resp.IsError() {
		var body struct {
			Error string `json:"error"`
		}
		if jsonErr := json.Unmarshal(resp.Body(), &body); jsonErr == nil && body.Error != "" {
			return fmt.Errorf("daemon error: %s", body.Error)
		}
		return fmt.Errorf("daemon returned %s", resp.Status())
	}
	return nil
}

func (c *client) Routines() ([]domain.Routine, error) {
	resp, err := c.http.R().Get("/v1/routines")
	if err := c.checkResponse(resp, err); err != nil {
		return nil, err
	}

	var records []json.RawMessage
	if err := json.Unmarshal(resp.Body(), &records); err != nil {
		return nil, fmt.Errorf("invalid routine list: %w", err)
	}
	routines := make([]domain.Routine, 0, len(records))
	for _, rec := range records {
		r, err := store.UnmarshalRoutine(rec)
		if err != nil {
			return nil, err
		}
		routines = append(routines, r)
	}
	return routines, nil
}

func (c *client) AddRoutine(r domain.Routine) (domain.Routine, error) {
	body, err := store.MarshalRoutine(r)
	if err != nil {
		return domain.Routine{}, err
	}
	resp, err := c.http.R().
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/v1/routines")
	if err := c.checkResponse(resp, err); err != nil {
		return domain.Routine{}, err
	}
	return store.UnmarshalRoutine(resp.Body())
}

func (c *client) ToggleRoutine(id string) (domain.Routine, error) {
	resp, err := c.http.R().Post("/v1/routines/" + id + "/toggle")
	if err := c.checkResponse(resp, err); err != nil {
		return domain.Routine{}, err
	}
	return store.UnmarshalRoutine(resp.Body())
}

func (c *client) DeleteRoutine(id string) error {
	resp, err := c.http.R().Delete("/v1/routines/" + id)
	return c.checkResponse(resp, err)
}

func (c *client) FocusMode() (bool, error) {
	resp, err := c.http.R().Get("/v1/focus")
	if err := c.checkResponse(resp, err); err != nil {
		return false, err
	}
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return false, err
	}
	return body.Enabled, nil
}

func (c *client) SetFocusMode(enabled bool) error {
	resp, err := c.http.R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]bool{"enabled": enabled}).
		Put("/v1/focus")
	return c.checkResponse(resp, err)
}

func (c *client) AddWhitelisted(pkg string) error {
	resp, err := c.http.R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"packageName": pkg}).
		Post("/v1/whitelist")
	return c.checkResponse(resp, err)
}

func (c *client) Status() (api.Status, error) {
	resp, err := c.http.R().Get("/v1/status")
	if err := c.checkResponse(resp, err); err != nil {
		return api.Status{}, err
	}
	var st api.Status
	if err := json.Unmarshal(resp.Body(), &st); err != nil {
		return api.Status{}, err
	}
	return st, nil
}
