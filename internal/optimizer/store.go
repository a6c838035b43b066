package optimizer

import "context"

// MediaStore is the slice of the host media library the optimizer needs.
type MediaStore interface {
	LivePath(ctx context.Context, id int64) (string, error)
	FileSize(path string) (int64, error)
	SetLivePath(ctx context.Context, id int64, path string) error
	SetFormat(ctx context.Context, id int64, mime string) error
	Meta(ctx context.Context, id int64, key string) (string, bool, error)
	SetMeta(ctx context.Context, id int64, key, value string) error
	DeleteMeta(ctx context.Context, id int64, key string) error
	RegenerateDerived(ctx context.Context, id int64) error
	QueryEligible(ctx context.Context, mimes []string, excludeKeys []string, limit int) ([]int64, error)
	ListWithMeta(ctx context.Context, key string) ([]int64, error)
}

// MetaPurger is implemented by stores that can drop a whole key namespace.
type MetaPurger interface {
	DeleteMetaPrefix(ctx context.Context, prefix string) (int64, error)
}
