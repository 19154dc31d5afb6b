// Package anki is a minimal AnkiConnect client.
package anki

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/imroc/req/v3"
)

// Version is the AnkiConnect API version spoken by this client.
const Version = 6

const (
	ActionMulti          = "multi"
	ActionAddNote        = "addNote"
	ActionUpdateNote     = "updateNote"
	ActionStoreMediaFile = "storeMediaFile"
)

// Fields are the note fields of the basic two-sided model.
type Fields struct {
	Front string `json:"Front"`
	Back  string `json:"Back"`
}

// Note is the payload of addNote and updateNote.
type Note struct {
	ID        int64    `json:"id,omitempty"`
	DeckName  string   `json:"deckName"`
	ModelName string   `json:"modelName"`
	Fields    Fields   `json:"fields"`
	Tags      []string `json:"tags"`
}

// Action is one AnkiConnect request.
type Action struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Params  any    `json:"params,omitempty"`
}

type noteParams struct {
	Note Note `json:"note"`
}

type multiParams struct {
	Actions []Action `json:"actions"`
}

type mediaParams struct {
	Filename string `json:"filename"`
	Data     string `json:"data"`
}

// Result is the outcome of one action inside a multi request.
type Result struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

// Error is a failure reported by AnkiConnect itself.
type Error struct {
	Action  string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("anki: %s: %s", e.Action, e.Message)
}

// Client talks to an AnkiConnect endpoint. Requests are never retried: a
// retried addNote could create a duplicate note.
type Client struct {
	url  string
	http *req.Client
}

// NewClient creates a client for the endpoint at url.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url: url,
		http: req.C().
			SetTimeout(timeout).
			SetUserAgent("cardsync"),
	}
}

// Invoke sends a single action and decodes its result into out (may be nil).
func (c *Client) Invoke(ctx context.Context, action Action, out any) error {
	var resp response
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(&action).
		SetSuccessResult(&resp).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("anki: %s request: %w", action.Action, err)
	}
	if !res.IsSuccessState() {
		return fmt.Errorf("anki: %s: unexpected status %d", action.Action, res.StatusCode)
	}
	if resp.Error != nil {
		return &Error{Action: action.Action, Message: *resp.Error}
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("anki: %s decode result: %w", action.Action, err)
	}
	return nil
}

// Multi sends several actions in one request and returns their results in
// order.
func (c *Client) Multi(ctx context.Context, actions ...Action) ([]Result, error) {
	var results []Result
	err := c.Invoke(ctx, Action{
		Action:  ActionMulti,
		Version: Version,
		Params:  multiParams{Actions: actions},
	}, &results)
	if err != nil {
		return nil, err
	}
	if len(results) != len(actions) {
		return nil, fmt.Errorf("anki: multi returned %d results for %d actions", len(results), len(actions))
	}
	return results, nil
}

// AddNote creates a note and returns its id.
func (c *Client) AddNote(ctx context.Context, note Note) (int64, error) {
	note.ID = 0
	r, err := c.single(ctx, ActionAddNote, noteParams{Note: withTags(note)})
	if err != nil {
		return 0, err
	}
	var id int64
	if err := json.Unmarshal(r.Result, &id); err != nil || id == 0 {
		return 0, fmt.Errorf("anki: addNote returned no note id: %s", string(r.Result))
	}
	return id, nil
}

// UpdateNote replaces the fields and tags of an existing note.
func (c *Client) UpdateNote(ctx context.Context, note Note) error {
	if note.ID == 0 {
		return fmt.Errorf("anki: updateNote requires a note id")
	}
	_, err := c.single(ctx, ActionUpdateNote, noteParams{Note: withTags(note)})
	return err
}

// StoreMediaFile uploads a media file into the collection. Card syncs do
// not call it yet; referenced images are only reported.
func (c *Client) StoreMediaFile(ctx context.Context, filename string, data []byte) error {
	_, err := c.single(ctx, ActionStoreMediaFile, mediaParams{
		Filename: filename,
		Data:     base64.StdEncoding.EncodeToString(data),
	})
	return err
}

func (c *Client) single(ctx context.Context, action string, params any) (Result, error) {
	results, err := c.Multi(ctx, Action{Action: action, Version: Version, Params: params})
	if err != nil {
		return Result{}, err
	}
	r := results[0]
	if r.Error != nil {
		return Result{}, &Error{Action: action, Message: *r.Error}
	}
	return r, nil
}

func withTags(n Note) Note {
	if n.Tags == nil {
		n.Tags = []string{}
	}
	return n
}
