package services

import (
	"context"
	"io"
	"net/url"

	"github.com/diewo77/go-pos/internal/erp"
)

// ERP is the part of the ERP client the services depend on. *erp.Client
// satisfies it.
type ERP interface {
	Login(ctx context.Context, usr, pwd string) (string, error)
	Logout(ctx context.Context) error
	LoggedUser(ctx context.Context) (string, error)
	SetSession(sid string)
	GetDoc(ctx context.Context, doctype, name string, out any) error
	ListDocs(ctx context.Context, doctype string, q erp.ListQuery, out any) error
	InsertDoc(ctx context.Context, doctype string, doc, out any) error
	UpdateDoc(ctx context.Context, doctype, name string, doc, out any) error
	Call(ctx context.Context, method string, args, out any) error
	CallGet(ctx context.Context, method string, params url.Values, out any) error
	ValidateLink(ctx context.Context, doctype, name string) (bool, error)
	UploadFile(ctx context.Context, filename string, content io.Reader, fields map[string]string) (*erp.UploadedFile, error)
	Download(ctx context.Context, method string, params url.Values) ([]byte, error)
}

var _ ERP = (*erp.Client)(nil)

// KV is the versioned slot store. *store.KV satisfies it.
type KV interface {
	Get(ctx context.Context, key string) (string, int64, error)
	Put(ctx context.Context, key, value string) (int64, error)
	CompareAndPut(ctx context.Context, key, value string, expected int64) (int64, error)
	Delete(ctx context.Context, key string) error
	CompareAndDelete(ctx context.Context, key string, expected int64) error
}
