package usecase

import (
	"context"
	"strings"
	"sync"

	"rtdb-bridge/internal/docstore/domain/model"
	"rtdb-bridge/internal/docstore/domain/repository"
	"rtdb-bridge/internal/shared/errors"
	"rtdb-bridge/internal/shared/eventbus"
	"rtdb-bridge/internal/shared/jsonvalue"
	"rtdb-bridge/internal/shared/logger"
	"rtdb-bridge/internal/shared/metrics"

	"go.uber.org/zap"
)

// DocumentService implements the REST document contract over a DocumentStore:
// whole-document reads and writes, dotted PATCH, and query evaluation.
type DocumentService interface {
	List(ctx context.Context, collection string, opts model.ListOptions) (jsonvalue.Value, error)
	Get(ctx context.Context, collection, id string, opts model.ListOptions) (jsonvalue.Value, error)
	Put(ctx context.Context, collection, id string, doc jsonvalue.Value) (bool, error)
	Patch(ctx context.Context, collection, id string, partial jsonvalue.Value) (jsonvalue.Value, error)
	Delete(ctx context.Context, collection, id string) error
	IDField() string
}

type documentService struct {
	store   repository.DocumentStore
	bus     eventbus.Bus
	idField string
	log     logger.Logger
	metrics *metrics.Metrics

	// writeMu makes PATCH read-modify-write atomic within the process.
	writeMu sync.Mutex
}

// NewDocumentService creates the service. bus may be nil when no change feed is
// wanted.
func NewDocumentService(store repository.DocumentStore, bus eventbus.Bus, idField string, log logger.Logger, m *metrics.Metrics) DocumentService {
	if idField == "" {
		idField = "id"
	}
	return &documentService{
		store:   store,
		bus:     bus,
		idField: idField,
		log:     logger.OrNop(log).WithComponent("document_service"),
		metrics: m,
	}
}

func (s *documentService) IDField() string { return s.idField }

// List returns the documents of a collection as an array. Each object document
// carries its storage id in the identifier field.
func (s *documentService) List(ctx context.Context, collection string, opts model.ListOptions) (jsonvalue.Value, error) {
	if err := validateName("collection", collection); err != nil {
		return jsonvalue.Value{}, err
	}
	docs, err := s.store.List(ctx, collection)
	if err != nil {
		return jsonvalue.Value{}, errors.WrapError(err, "failed to list collection")
	}

	entries := make([]entry, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, entry{key: d.ID, value: s.withID(d.ID, d.Data)})
	}
	entries = evaluate(entries, opts, s.idField)

	items := make([]jsonvalue.Value, 0, len(entries))
	for _, e := range entries {
		items = append(items, e.value)
	}
	return jsonvalue.ArrayValue(items...), nil
}

// Get returns a document exactly as stored unless query options apply. With a
// subPath the options filter the children of the object at that dotted path and
// the document is returned with that region replaced; without one they apply to
// the document's top-level fields.
func (s *documentService) Get(ctx context.Context, collection, id string, opts model.ListOptions) (jsonvalue.Value, error) {
	if err := validateDocument(collection, id); err != nil {
		return jsonvalue.Value{}, err
	}
	doc, err := s.store.Get(ctx, collection, id)
	if err != nil {
		return jsonvalue.Value{}, err
	}
	if opts.IsEmpty() {
		return doc, nil
	}

	fields := opts.SubPathFields()
	if len(fields) == 0 {
		if !doc.IsObject() {
			return doc, nil
		}
		return entriesObject(evaluate(objectEntries(doc), opts, s.idField)), nil
	}

	region, ok := lookup(doc, fields)
	if !ok || !region.IsObject() {
		return doc, nil
	}
	filtered := entriesObject(evaluate(objectEntries(region), opts, s.idField))
	return replaceAt(doc, fields, filtered), nil
}

// Put replaces a whole document and reports whether it was created.
func (s *documentService) Put(ctx context.Context, collection, id string, doc jsonvalue.Value) (bool, error) {
	if err := validateDocument(collection, id); err != nil {
		return false, err
	}
	if !doc.IsDefined() {
		return false, errors.NewValidationError("document body is required").WithCause(errors.ErrInvalidDocument)
	}

	s.writeMu.Lock()
	created, err := s.store.Put(ctx, collection, id, doc)
	s.writeMu.Unlock()
	if err != nil {
		return false, errors.WrapError(err, "failed to store document")
	}

	s.publish(model.NewChange(model.ChangePut, collection, id))
	return created, nil
}

// Patch merges a partial object of dotted keys into a document, creating the
// document when it does not exist. A non-object document is replaced.
func (s *documentService) Patch(ctx context.Context, collection, id string, partial jsonvalue.Value) (jsonvalue.Value, error) {
	if err := validateDocument(collection, id); err != nil {
		return jsonvalue.Value{}, err
	}
	if !partial.IsObject() {
		return jsonvalue.Value{}, errors.NewValidationError("patch body must be a JSON object").WithCause(errors.ErrInvalidDocument)
	}

	s.writeMu.Lock()
	doc, err := s.store.Get(ctx, collection, id)
	switch {
	case errors.IsNotFound(err):
		doc = jsonvalue.EmptyObject()
	case err != nil:
		s.writeMu.Unlock()
		return jsonvalue.Value{}, errors.WrapError(err, "failed to read document")
	case !doc.IsObject():
		doc = jsonvalue.EmptyObject()
	default:
		doc = doc.Clone()
	}

	if err := applyPatch(doc.Map(), partial.Map()); err != nil {
		s.writeMu.Unlock()
		return jsonvalue.Value{}, err
	}
	_, err = s.store.Put(ctx, collection, id, doc)
	s.writeMu.Unlock()
	if err != nil {
		return jsonvalue.Value{}, errors.WrapError(err, "failed to store document")
	}

	s.publish(model.NewChange(model.ChangePatch, collection, id))
	return doc, nil
}

// Delete removes a whole document.
func (s *documentService) Delete(ctx context.Context, collection, id string) error {
	if err := validateDocument(collection, id); err != nil {
		return err
	}

	s.writeMu.Lock()
	err := s.store.Delete(ctx, collection, id)
	s.writeMu.Unlock()
	if err != nil {
		return err
	}

	s.publish(model.NewChange(model.ChangeDelete, collection, id))
	return nil
}

func (s *documentService) publish(change model.Change) {
	s.metrics.ChangePublished()
	s.log.Debug("document changed", zap.String("type", string(change.Type)), zap.String("path", change.Path))
	if s.bus == nil {
		return
	}
	s.bus.PublishAndForget(context.Background(), eventbus.NewBasicEvent(eventType(change.Type), change, "docstore"))
}

func eventType(t model.ChangeType) string {
	switch t {
	case model.ChangePatch:
		return eventbus.EventTypeDocumentPatched
	case model.ChangeDelete:
		return eventbus.EventTypeDocumentDeleted
	default:
		return eventbus.EventTypeDocumentPut
	}
}

// withID sets the identifier field of an object document to its storage id.
func (s *documentService) withID(id string, doc jsonvalue.Value) jsonvalue.Value {
	if !doc.IsObject() {
		return doc
	}
	out := doc.Clone()
	out.Map().Set(s.idField, jsonvalue.StringValue(id))
	return out
}

func validateDocument(collection, id string) error {
	if err := validateName("collection", collection); err != nil {
		return err
	}
	return validateName("document id", id)
}

func validateName(kind, name string) error {
	if name == "" || strings.Contains(name, "/") {
		return errors.NewValidationError("invalid "+kind).
			WithCause(errors.ErrInvalidPath).
			WithDetail(kind, name)
	}
	return nil
}
