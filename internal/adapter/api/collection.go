package api

import (
	"context"
	"net/http"
	"net/url"

	"buildwatch/internal/domain"
)

// Collection is a CRUD resource collection on the server.
type Collection[T any] struct {
	client *Client
	name   string
}

// NewCollection binds a collection name to c.
func NewCollection[T any](c *Client, name string) *Collection[T] {
	return &Collection[T]{client: c, name: name}
}

// Projects returns the projects collection.
func (c *Client) Projects() *Collection[domain.Project] {
	return NewCollection[domain.Project](c, domain.CollectionProjects)
}

// Credentials returns the credentials collection.
func (c *Client) Credentials() *Collection[domain.Credential] {
	return NewCollection[domain.Credential](c, domain.CollectionCredentials)
}

// Proxies returns the proxies collection.
func (c *Client) Proxies() *Collection[domain.Proxy] {
	return NewCollection[domain.Proxy](c, domain.CollectionProxies)
}

// Registries returns the registries collection.
func (c *Client) Registries() *Collection[domain.Registry] {
	return NewCollection[domain.Registry](c, domain.CollectionRegistries)
}

// Name returns the collection name.
func (col *Collection[T]) Name() string { return col.name }

// List returns every item.
func (col *Collection[T]) List(ctx context.Context) ([]T, error) {
	path := "/" + col.name + "/"
	data, err := col.client.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	return decode[[]T](http.MethodGet, path, data)
}

// Create posts item and returns the stored representation.
func (col *Collection[T]) Create(ctx context.Context, item T) (T, error) {
	path := "/" + col.name + "/"
	data, err := col.client.do(ctx, http.MethodPost, path, nil, item)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](http.MethodPost, path, data)
}

// Update replaces the item with id and returns the stored representation.
func (col *Collection[T]) Update(ctx context.Context, id string, item T) (T, error) {
	path := "/" + col.name + "/" + url.PathEscape(id)
	data, err := col.client.do(ctx, http.MethodPut, path, nil, item)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](http.MethodPut, path, data)
}

// Delete removes the item with id.
func (col *Collection[T]) Delete(ctx context.Context, id string) error {
	_, err := col.client.do(ctx, http.MethodDelete, "/"+col.name+"/"+url.PathEscape(id), nil, nil)
	return err
}
