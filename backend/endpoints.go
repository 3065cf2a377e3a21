package backend

import (
	"context"
	"encoding/json"
	"net/http"

	"nexus/voice"
)

// Health returns the raw health document.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	raw, err := c.request(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &APIError{Message: "Failed to parse server response", Code: CodeParse, Details: err.Error(), Err: err}
	}
	return out, nil
}

type ChatReply struct {
	Reply     string         `json:"reply"`
	Timestamp string         `json:"timestamp"`
	Persona   *voice.Persona `json:"persona"`
}

// GhostChat sends one chat message. personaID may be empty.
func (c *Client) GhostChat(ctx context.Context, message, personaID string) (ChatReply, error) {
	body := map[string]string{"message": message}
	if personaID != "" {
		body["persona_id"] = personaID
	}
	var out ChatReply
	err := c.call(ctx, http.MethodPost, "/api/ghost-chat", body, &out)
	return out, err
}

type personaList struct {
	Personas []voice.Persona `json:"personas"`
}

func (c *Client) Personas(ctx context.Context) ([]voice.Persona, error) {
	l, err := cached[personaList](ctx, c, "/api/ghost-personas")
	return l.Personas, err
}

type JournalReply struct {
	Emotion      string `json:"emotion"`
	HauntedReply string `json:"haunted_reply"`
	Timestamp    string `json:"timestamp"`
}

func (c *Client) Journal(ctx context.Context, entry string) (JournalReply, error) {
	var out JournalReply
	err := c.call(ctx, http.MethodPost, "/api/haunted-journal", map[string]string{"entry": entry}, &out)
	return out, err
}

type Reanimation struct {
	OriginalHTML string `json:"original_html"`
	RevivedHTML  string `json:"revived_html"`
	ArchiveDate  string `json:"archive_date"`
	Success      bool   `json:"success"`
}

func (c *Client) Reanimate(ctx context.Context, url string) (Reanimation, error) {
	var out Reanimation
	err := c.call(ctx, http.MethodPost, "/api/reanimator", map[string]string{"url": url}, &out)
	return out, err
}

type Stitched struct {
	Output   string          `json:"stitched_output"`
	API1Data json.RawMessage `json:"api1_data"`
	API2Data json.RawMessage `json:"api2_data"`
}

func (c *Client) Stitch(ctx context.Context, api1, api2 string) (Stitched, error) {
	var out Stitched
	err := c.call(ctx, http.MethodPost, "/api/frankenstein-stitch", map[string]string{"api1": api1, "api2": api2}, &out)
	return out, err
}

type Location struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Description string  `json:"description"`
}

type locationList struct {
	Locations []Location `json:"locations"`
}

func (c *Client) Locations(ctx context.Context) ([]Location, error) {
	l, err := cached[locationList](ctx, c, "/api/haunted-locations")
	return l.Locations, err
}

type Story struct {
	Story      string `json:"story"`
	EndingType string `json:"ending_type"`
}

func (c *Client) GhostStory(ctx context.Context, locationID string) (Story, error) {
	var out Story
	err := c.call(ctx, http.MethodPost, "/api/ghost-story", map[string]string{"location_id": locationID}, &out)
	return out, err
}

type TransformedImage struct {
	Image       string `json:"transformed_image"`
	Description string `json:"description"`
	Style       string `json:"style"`
	Prompt      string `json:"prompt"`
}

// TransformImage sends base64 image data with a style id.
func (c *Client) TransformImage(ctx context.Context, image, prompt, style string) (TransformedImage, error) {
	var out TransformedImage
	body := map[string]string{"image": image, "prompt": prompt, "style": style}
	err := c.call(ctx, http.MethodPost, "/api/cursed-image/ai-transform", body, &out)
	return out, err
}

type ImageStyle struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type styleList struct {
	Styles []ImageStyle `json:"styles"`
}

func (c *Client) ImageStyles(ctx context.Context) ([]ImageStyle, error) {
	l, err := cached[styleList](ctx, c, "/api/cursed-image/styles")
	return l.Styles, err
}
