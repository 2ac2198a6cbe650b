package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"newsagent/logging"
	"newsagent/types"

	"github.com/charmbracelet/log"
)

const (
	contentType  = "application/json"
	cacheControl = "public, max-age=300"
)

// ObjectStore is the subset of S3 the archiver needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType, cacheControl string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Archiver uploads articles as <prefix>articles/<id>.json.
type Archiver struct {
	store  ObjectStore
	prefix string
	logger *log.Logger
}

// NewArchiver creates an archiver writing under prefix. A non-empty prefix gets a trailing slash.
func NewArchiver(store ObjectStore, prefix string) *Archiver {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Archiver{store: store, prefix: prefix, logger: logging.WithPrefix("archive")}
}

// Key returns the object key of an article.
func (a *Archiver) Key(articleID int64) string {
	return a.prefix + "articles/" + strconv.FormatInt(articleID, 10) + ".json"
}

// ArchiveArticles uploads each relevant, non-duplicate article that is not archived yet.
// It keeps going after a failed upload and returns the number uploaded with the joined errors.
func (a *Archiver) ArchiveArticles(ctx context.Context, articles []*types.Article) (int, error) {
	var errs []error
	uploaded := 0
	for _, article := range articles {
		if article.ID == 0 || article.IsDuplicate || article.IsRelevant == nil || !*article.IsRelevant {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		key := a.Key(article.ID)
		exists, err := a.store.Exists(ctx, key)
		if err != nil {
			errs = append(errs, fmt.Errorf("check %s: %w", key, err))
			continue
		}
		if exists {
			continue
		}

		body, err := json.Marshal(article)
		if err != nil {
			errs = append(errs, fmt.Errorf("encode article %d: %w", article.ID, err))
			continue
		}
		if err := a.store.Put(ctx, key, bytes.NewReader(body), contentType, cacheControl); err != nil {
			errs = append(errs, fmt.Errorf("upload %s: %w", key, err))
			continue
		}
		uploaded++
	}

	a.logger.Info("archived articles", "uploaded", uploaded, "failed", len(errs))
	return uploaded, errors.Join(errs...)
}
