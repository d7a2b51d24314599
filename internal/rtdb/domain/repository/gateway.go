package repository

import (
	"context"
	"net/url"

	"rtdb-bridge/internal/shared/jsonvalue"
)

// RestGateway is the transport to the flat document store behind
// /api/<collection>[/<id>]. A GET for a missing document returns an error for
// which errors.IsNotFound is true; any other non-2xx status or network failure
// returns a transport AppError.
type RestGateway interface {
	// ListCollection returns the JSON array of documents in a collection. Each
	// document carries its own identifier field.
	ListCollection(ctx context.Context, collection string, params url.Values) (jsonvalue.Value, error)

	// GetDocument returns one whole document.
	GetDocument(ctx context.Context, collection, id string, params url.Values) (jsonvalue.Value, error)

	// PutDocument replaces a whole document.
	PutDocument(ctx context.Context, collection, id string, doc jsonvalue.Value) error

	// PatchDocument applies a partial update. Dotted keys address nested fields.
	PatchDocument(ctx context.Context, collection, id string, partial jsonvalue.Value) error

	// DeleteDocument deletes a whole document.
	DeleteDocument(ctx context.Context, collection, id string) error
}
