package store

import (
	"errors"

	"github.com/yourorg/sessionmock/pkg/types"
)

// ErrNotFound is returned for unknown collection ids.
var ErrNotFound = errors.New("collection not found")

// Store is the fixture library: named collections of recorded exchanges.
type Store interface {
	CreateCollection(source, description, host string) (*types.Collection, error)
	GetCollection(id string) (*types.Collection, error)
	UpdateCollectionStatus(id, status string) error
	ListCollections() ([]types.Collection, error)
	DeleteCollection(id string) error

	SaveExchanges(collectionID string, exchanges []types.Exchange) error
	GetExchanges(collectionID string) ([]types.Exchange, error)

	Close() error
}
