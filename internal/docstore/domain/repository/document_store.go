package repository

import (
	"context"

	"rtdb-bridge/internal/docstore/domain/model"
	"rtdb-bridge/internal/shared/jsonvalue"
)

// Document is one stored document with its identifier.
type Document struct {
	ID   string
	Data jsonvalue.Value
}

// DocumentStore persists whole documents. Any JSON value may be stored. Get and
// Delete of a missing document return an error for which errors.IsNotFound is true.
type DocumentStore interface {
	// List returns the documents of a collection in insertion order. A missing
	// collection lists as empty.
	List(ctx context.Context, collection string) ([]Document, error)
	Get(ctx context.Context, collection, id string) (jsonvalue.Value, error)
	// Put stores doc and reports whether it was newly created.
	Put(ctx context.Context, collection, id string, doc jsonvalue.Value) (bool, error)
	Delete(ctx context.Context, collection, id string) error
	Close(ctx context.Context) error
}

// ChangePublisher forwards committed changes outside the process.
type ChangePublisher interface {
	Publish(ctx context.Context, change model.Change) error
	Close() error
}
