package glpi

import (
	"context"
	"io"
)

// API defines the GLPI operations implemented by Client
type API interface {
	// Close kills the session
	Close(ctx context.Context) error

	// Session
	GetMyProfiles(ctx context.Context) ([]Profile, error)
	GetActiveProfile(ctx context.Context) (Item, error)
	SetActiveProfile(ctx context.Context, profileID int) error
	GetMyEntities(ctx context.Context) ([]Entity, error)
	GetActiveEntities(ctx context.Context) (*ActiveEntity, error)
	SetActiveEntities(ctx context.Context, entityID any, recursive bool) error
	GetFullSession(ctx context.Context) (Item, error)
	GetConfig(ctx context.Context) (Item, error)

	// Items
	GetItem(ctx context.Context, itemtype string, id int, params map[string]any) (Item, error)
	GetAllItems(ctx context.Context, itemtype string, params map[string]any) ([]Item, error)
	GetSubItems(ctx context.Context, itemtype string, id int, subtype string, params map[string]any) ([]Item, error)
	GetMultipleItems(ctx context.Context, refs ...ItemRef) ([]Item, error)
	Add(ctx context.Context, itemtype string, items ...Item) ([]Item, error)
	Update(ctx context.Context, itemtype string, items ...Item) ([]Item, error)
	Delete(ctx context.Context, itemtype string, opts DeleteOptions, items ...Item) ([]Item, error)

	// Search
	ListSearchOptions(ctx context.Context, itemtype string, raw bool) (SearchOptionList, error)
	Search(ctx context.Context, itemtype string, q SearchQuery) (*SearchResult, error)
	FieldID(ctx context.Context, itemtype string, field any, refresh bool) (int, error)
	FieldUID(ctx context.Context, itemtype string, id int, refresh bool) (string, error)

	// Documents
	UploadDocument(ctx context.Context, doc Document, content io.Reader) (*UploadResult, error)
	DownloadDocument(ctx context.Context, id int, w io.Writer) (int64, error)
}

var _ API = (*Client)(nil)
