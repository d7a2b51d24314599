package rest

import (
	"context"
	"net/url"

	docmodel "rtdb-bridge/internal/docstore/domain/model"
	"rtdb-bridge/internal/docstore/usecase"
	"rtdb-bridge/internal/rtdb/domain/repository"
	"rtdb-bridge/internal/shared/errors"
	"rtdb-bridge/internal/shared/jsonvalue"
)

// LocalGateway speaks the RestGateway contract directly to an in-process
// document service, with the same error mapping as the HTTP transport.
type LocalGateway struct {
	service usecase.DocumentService
}

var _ repository.RestGateway = (*LocalGateway)(nil)

func NewLocalGateway(service usecase.DocumentService) *LocalGateway {
	return &LocalGateway{service: service}
}

func (g *LocalGateway) ListCollection(ctx context.Context, collection string, params url.Values) (jsonvalue.Value, error) {
	opts, err := docmodel.ParseListOptions(params)
	if err != nil {
		return jsonvalue.Value{}, transport(err)
	}
	list, err := g.service.List(ctx, collection, opts)
	if err != nil {
		return jsonvalue.Value{}, transport(err)
	}
	return list, nil
}

func (g *LocalGateway) GetDocument(ctx context.Context, collection, id string, params url.Values) (jsonvalue.Value, error) {
	opts, err := docmodel.ParseListOptions(params)
	if err != nil {
		return jsonvalue.Value{}, transport(err)
	}
	doc, err := g.service.Get(ctx, collection, id, opts)
	if err != nil {
		return jsonvalue.Value{}, transport(err)
	}
	return doc, nil
}

func (g *LocalGateway) PutDocument(ctx context.Context, collection, id string, doc jsonvalue.Value) error {
	_, err := g.service.Put(ctx, collection, id, doc)
	return transport(err)
}

func (g *LocalGateway) PatchDocument(ctx context.Context, collection, id string, partial jsonvalue.Value) error {
	_, err := g.service.Patch(ctx, collection, id, partial)
	return transport(err)
}

func (g *LocalGateway) DeleteDocument(ctx context.Context, collection, id string) error {
	return transport(g.service.Delete(ctx, collection, id))
}

// transport keeps not-found errors and reports everything else as the
// transport error an HTTP round trip would have produced.
func transport(err error) error {
	if err == nil || errors.IsNotFound(err) {
		return err
	}
	return errors.NewTransportError(errors.HTTPStatus(err), err.Error()).WithCause(err)
}
