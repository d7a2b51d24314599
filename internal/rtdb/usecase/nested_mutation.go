package usecase

import (
	"context"
	"fmt"

	"rtdb-bridge/internal/rtdb/domain/model"
	"rtdb-bridge/internal/rtdb/domain/repository"
	"rtdb-bridge/internal/shared/errors"
	"rtdb-bridge/internal/shared/jsonvalue"
	"rtdb-bridge/internal/shared/logger"

	"go.uber.org/zap"
)

// nestedMutator writes below the document level on a backend that only stores
// whole documents. Writes are read-modify-write with no transaction: two
// concurrent writers to the same document race and the last PUT wins.
type nestedMutator struct {
	gateway repository.RestGateway
	log     logger.Logger
}

// load fetches the document at docPath. A missing document reads as an empty
// object; a non-object document is replaced by one.
func (m *nestedMutator) load(ctx context.Context, docPath model.Path) (jsonvalue.Value, bool, error) {
	id, _ := docPath.DocumentID()
	doc, err := m.gateway.GetDocument(ctx, docPath.Collection(), id, nil)
	if err != nil {
		if errors.IsNotFound(err) {
			return jsonvalue.EmptyObject(), false, nil
		}
		return jsonvalue.Value{}, false, fmt.Errorf("failed to read document %s: %w", docPath, err)
	}
	if !doc.IsObject() {
		return jsonvalue.EmptyObject(), true, nil
	}
	return doc, true, nil
}

func (m *nestedMutator) put(ctx context.Context, docPath model.Path, doc jsonvalue.Value) error {
	id, _ := docPath.DocumentID()
	if err := m.gateway.PutDocument(ctx, docPath.Collection(), id, doc); err != nil {
		return fmt.Errorf("failed to write document %s: %w", docPath, err)
	}
	return nil
}

// Assign stores value at a path of depth > 2, creating intermediate objects and
// replacing non-object intermediates.
func (m *nestedMutator) Assign(ctx context.Context, path model.Path, value jsonvalue.Value) error {
	docPath := path.DocumentPath()
	doc, _, err := m.load(ctx, docPath)
	if err != nil {
		return err
	}

	fields := path.NestedFields()
	current := doc.Map()
	for _, f := range fields[:len(fields)-1] {
		next, ok := current.Get(f)
		if !ok || !next.IsObject() {
			next = jsonvalue.EmptyObject()
			current.Set(f, next)
		}
		current = next.Map()
	}
	current.Set(fields[len(fields)-1], value)

	m.log.Debug("nested assign", zap.String("path", path.String()))
	return m.put(ctx, docPath, doc)
}

// Delete removes the field at a path of depth > 2. A missing document or field
// is a no-op and performs no write.
func (m *nestedMutator) Delete(ctx context.Context, path model.Path) error {
	docPath := path.DocumentPath()
	doc, found, err := m.load(ctx, docPath)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	fields := path.NestedFields()
	current := doc.Map()
	for _, f := range fields[:len(fields)-1] {
		next, ok := current.Get(f)
		if !ok || !next.IsObject() {
			return nil
		}
		current = next.Map()
	}
	if !current.Delete(fields[len(fields)-1]) {
		return nil
	}

	m.log.Debug("nested delete", zap.String("path", path.String()))
	return m.put(ctx, docPath, doc)
}

// Patch sends a partial update of dotted field paths to one document without
// reading it first. The server creates missing intermediates and documents.
func (m *nestedMutator) Patch(ctx context.Context, docPath model.Path, fields *jsonvalue.Map) error {
	id, _ := docPath.DocumentID()
	if err := m.gateway.PatchDocument(ctx, docPath.Collection(), id, jsonvalue.ObjectValue(fields)); err != nil {
		return fmt.Errorf("failed to patch document %s: %w", docPath, err)
	}
	return nil
}
