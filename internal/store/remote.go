package store

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/jromeu/vitalink/internal/record"
)

const remoteRequestTimeout = 10 * time.Second

// collectionNames maps entity kinds to their document-store collections.
var collectionNames = map[record.Kind]string{
	record.KindHeartRate: "sensor_heart_rate",
	record.KindSteps:     "sensor_steps",
}

func collectionName(kind record.Kind) string {
	if name, ok := collectionNames[kind]; ok {
		return name
	}
	return string(kind)
}

// remoteStore speaks to the remote document store over its per-collection
// REST surface: GET/POST /collections/{name}/records and
// PATCH /collections/{name}/records/{id}.
type remoteStore struct {
	client *resty.Client
	now    func() time.Time
}

func newRemoteStore(baseURL, token string, now func() time.Time) *remoteStore {
	if now == nil {
		now = time.Now
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(remoteRequestTimeout).
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &remoteStore{client: client, now: now}
}

type listResponse struct {
	Items []record.Reading `json:"items"`
}

func (r *remoteStore) list(ctx context.Context, kind record.Kind, sort string) ([]record.Reading, error) {
	req := r.client.R().SetContext(ctx).SetResult(&listResponse{})
	if sort != "" {
		req.SetQueryParam("sort", sort)
	}
	resp, err := req.Get(fmt.Sprintf("/collections/%s/records", collectionName(kind)))
	if err != nil {
		return nil, &RemoteError{Op: "list", Err: err}
	}
	if resp.IsError() {
		return nil, &RemoteError{Op: "list", Err: fmt.Errorf("unexpected status %s", resp.Status())}
	}
	return resp.Result().(*listResponse).Items, nil
}

func (r *remoteStore) create(ctx context.Context, kind record.Kind, payload record.Reading) (record.Reading, error) {
	if payload.Timestamp == "" {
		payload.Timestamp = r.now().UTC().Format(time.RFC3339)
	}
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&record.Reading{}).
		Post(fmt.Sprintf("/collections/%s/records", collectionName(kind)))
	if err != nil {
		return record.Reading{}, &RemoteError{Op: "create", Err: err}
	}
	if resp.IsError() {
		return record.Reading{}, &RemoteError{Op: "create", Err: fmt.Errorf("unexpected status %s", resp.Status())}
	}
	created := resp.Result().(*record.Reading)
	if created.ID == "" {
		// A write the store did not acknowledge with an id is unusable;
		// the gateway synthesizes a local record instead.
		return record.Reading{}, &RemoteError{Op: "create", Err: fmt.Errorf("store returned no record id")}
	}
	return *created, nil
}

func (r *remoteStore) update(ctx context.Context, kind record.Kind, id string, patch record.Patch) (record.Reading, error) {
	body := make(record.Patch, len(patch)+1)
	for k, v := range patch {
		body[k] = v
	}
	if _, ok := body["timestamp"]; !ok {
		body["timestamp"] = r.now().UTC().Format(time.RFC3339)
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&record.Reading{}).
		Patch(fmt.Sprintf("/collections/%s/records/%s", collectionName(kind), id))
	if err != nil {
		return record.Reading{}, &RemoteError{Op: "update", Err: err}
	}
	if resp.StatusCode() == http.StatusNotFound {
		return record.Reading{}, &NotFoundError{Kind: kind, ID: id}
	}
	if resp.IsError() {
		return record.Reading{}, &RemoteError{Op: "update", Err: fmt.Errorf("unexpected status %s", resp.Status())}
	}
	return *resp.Result().(*record.Reading), nil
}
