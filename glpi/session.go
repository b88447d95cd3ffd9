package glpi

import (
	"context"
	"net/http"
)

// GetMyProfiles returns all the profiles associated to the logged user.
func (c *Client) GetMyProfiles(ctx context.Context) ([]Profile, error) {
	resp, err := c.do(ctx, http.MethodGet, "getMyProfiles", nil)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		var body struct {
			Profiles []Profile `json:"myprofiles"`
		}
		if err := decodeJSON(resp, &body); err != nil {
			return nil, err
		}
		return body.Profiles, nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return nil, apiError(resp)
	default:
		return nil, unexpectedResponse(resp)
	}
}

// GetActiveProfile returns the current active profile.
func (c *Client) GetActiveProfile(ctx context.Context) (Item, error) {
	resp, err := c.do(ctx, http.MethodGet, "getActiveProfile", nil)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		var body struct {
			Profile Item `json:"active_profile"`
		}
		if err := decodeJSON(resp, &body); err != nil {
			return nil, err
		}
		return body.Profile, nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return nil, apiError(resp)
	default:
		return nil, unexpectedResponse(resp)
	}
}

// SetActiveProfile changes the active profile of the session.
func (c *Client) SetActiveProfile(ctx context.Context, profileID int) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "changeActiveProfile", nil, map[string]any{
		"profiles_id": profileID,
	})
	if err != nil {
		return err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return nil
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound:
		return apiError(resp)
	default:
		return unexpectedResponse(resp)
	}
}

// GetMyEntities returns the entities reachable with the active profile.
func (c *Client) GetMyEntities(ctx context.Context) ([]Entity, error) {
	resp, err := c.do(ctx, http.MethodGet, "getMyEntities", nil)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		var body struct {
			Entities []Entity `json:"myentities"`
		}
		if err := decodeJSON(resp, &body); err != nil {
			return nil, err
		}
		return body.Entities, nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return nil, apiError(resp)
	default:
		return nil, unexpectedResponse(resp)
	}
}

// GetActiveEntities returns the entities active in the session.
func (c *Client) GetActiveEntities(ctx context.Context) (*ActiveEntity, error) {
	resp, err := c.do(ctx, http.MethodGet, "getActiveEntities", nil)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		var body struct {
			Entity ActiveEntity `json:"active_entity"`
		}
		if err := decodeJSON(resp, &body); err != nil {
			return nil, err
		}
		return &body.Entity, nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return nil, apiError(resp)
	default:
		return nil, unexpectedResponse(resp)
	}
}

// AllEntities selects every entity in SetActiveEntities.
const AllEntities = "all"

// SetActiveEntities changes the active entity. entityID is a numeric id or
// AllEntities.
func (c *Client) SetActiveEntities(ctx context.Context, entityID any, recursive bool) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "changeActiveEntities", nil, map[string]any{
		"entities_id":  entityID,
		"is_recursive": recursive,
	})
	if err != nil {
		return err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return apiError(resp)
	default:
		return unexpectedResponse(resp)
	}
}

// GetFullSession returns the server side PHP session.
func (c *Client) GetFullSession(ctx context.Context) (Item, error) {
	resp, err := c.do(ctx, http.MethodGet, "getFullSession", nil)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		var body struct {
			Session Item `json:"session"`
		}
		if err := decodeJSON(resp, &body); err != nil {
			return nil, err
		}
		return body.Session, nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return nil, apiError(resp)
	default:
		return nil, unexpectedResponse(resp)
	}
}

// GetConfig returns the GLPI configuration ($CFG_GLPI).
func (c *Client) GetConfig(ctx context.Context) (Item, error) {
	resp, err := c.do(ctx, http.MethodGet, "getGlpiConfig", nil)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		var cfg Item
		if err := decodeJSON(resp, &cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	case http.StatusBadRequest:
		return nil, apiError(resp)
	default:
		return nil, unexpectedResponse(resp)
	}
}
