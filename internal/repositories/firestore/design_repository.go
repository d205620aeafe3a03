package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/tapforge/api/internal/domain"
	pfirestore "github.com/tapforge/api/internal/platform/firestore"
	"github.com/tapforge/api/internal/platform/pagination"
	"github.com/tapforge/api/internal/repositories"
)

const designsCollection = "designs"

// DesignRepository persists saved card designs.
type DesignRepository struct {
	base *pfirestore.BaseRepository[savedDesignDocument]
}

// NewDesignRepository constructs a Firestore-backed design repository.
func NewDesignRepository(provider *pfirestore.Provider) (*DesignRepository, error) {
	if provider == nil {
		return nil, errors.New("design repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[savedDesignDocument](provider, designsCollection, nil, nil)
	return &DesignRepository{base: base}, nil
}

// Insert stores a new saved design. The ID must be unique.
func (r *DesignRepository) Insert(ctx context.Context, design domain.SavedDesign) error {
	if r == nil || r.base == nil {
		return errors.New("design repository not initialised")
	}
	designID := strings.TrimSpace(design.ID)
	if designID == "" {
		return errors.New("design repository: design id is required")
	}
	if _, err := r.base.Create(ctx, designID, encodeSavedDesignDocument(design)); err != nil {
		return err
	}
	return nil
}

// Update replaces the persisted design with the provided snapshot.
func (r *DesignRepository) Update(ctx context.Context, design domain.SavedDesign) error {
	if r == nil || r.base == nil {
		return errors.New("design repository not initialised")
	}
	designID := strings.TrimSpace(design.ID)
	if designID == "" {
		return errors.New("design repository: design id is required")
	}
	if _, err := r.base.Set(ctx, designID, encodeSavedDesignDocument(design)); err != nil {
		return err
	}
	return nil
}

// Delete removes a saved design permanently.
func (r *DesignRepository) Delete(ctx context.Context, designID string) error {
	if r == nil || r.base == nil {
		return errors.New("design repository not initialised")
	}
	designID = strings.TrimSpace(designID)
	if designID == "" {
		return errors.New("design repository: design id is required")
	}
	return r.base.Delete(ctx, designID)
}

// FindByID fetches a single saved design.
func (r *DesignRepository) FindByID(ctx context.Context, designID string) (domain.SavedDesign, error) {
	if r == nil || r.base == nil {
		return domain.SavedDesign{}, errors.New("design repository not initialised")
	}
	designID = strings.TrimSpace(designID)
	if designID == "" {
		return domain.SavedDesign{}, errors.New("design repository: design id is required")
	}
	doc, err := r.base.Get(ctx, designID)
	if err != nil {
		return domain.SavedDesign{}, err
	}
	return decodeSavedDesignDocument(designID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// ListByOwner returns designs owned by the specified user ordered by most recent update.
func (r *DesignRepository) ListByOwner(ctx context.Context, ownerID string, filter repositories.DesignListFilter) (domain.CursorPage[domain.SavedDesign], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.SavedDesign]{}, errors.New("design repository not initialised")
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return domain.CursorPage[domain.SavedDesign]{}, errors.New("design repository: owner id is required")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.CursorPage[domain.SavedDesign]{}, fmt.Errorf("design repository: %w", err)
		}
		startAfter = []any{cursor.Anchor, cursor.DocID}
	}

	var updatedAfter *time.Time
	if filter.UpdatedAfter != nil {
		value := filter.UpdatedAfter.UTC()
		if !value.IsZero() {
			updatedAfter = &value
		}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("ownerId", "==", ownerID)

		if updatedAfter != nil {
			q = q.Where("updatedAt", ">", *updatedAfter)
		}

		q = q.OrderBy("updatedAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.SavedDesign]{}, err
	}

	valueDocs := docs
	nextToken := ""
	if limit > 0 && len(valueDocs) == fetchLimit {
		last := valueDocs[len(valueDocs)-1]
		tokenTime := last.Data.UpdatedAt
		if tokenTime.IsZero() {
			tokenTime = last.UpdateTime
		}
		nextToken = pagination.EncodeCursor(pagination.Cursor{Anchor: tokenTime, DocID: last.ID})
		valueDocs = valueDocs[:len(valueDocs)-1]
	}

	items := make([]domain.SavedDesign, 0, len(valueDocs))
	for _, doc := range valueDocs {
		items = append(items, decodeSavedDesignDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime))
	}

	return domain.CursorPage[domain.SavedDesign]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

type savedDesignDocument struct {
	OwnerID   string                 `firestore:"ownerId"`
	Name      string                 `firestore:"name"`
	Design    designSnapshotDocument `firestore:"design"`
	CreatedAt time.Time              `firestore:"createdAt"`
	UpdatedAt time.Time              `firestore:"updatedAt"`
}

func encodeSavedDesignDocument(design domain.SavedDesign) savedDesignDocument {
	return savedDesignDocument{
		OwnerID:   strings.TrimSpace(design.OwnerID),
		Name:      strings.TrimSpace(design.Name),
		Design:    encodeDesignSnapshot(design.Design),
		CreatedAt: design.CreatedAt.UTC(),
		UpdatedAt: design.UpdatedAt.UTC(),
	}
}

func decodeSavedDesignDocument(id string, doc savedDesignDocument, createdAt, updatedAt time.Time) domain.SavedDesign {
	return domain.SavedDesign{
		ID:        strings.TrimSpace(id),
		OwnerID:   strings.TrimSpace(doc.OwnerID),
		Name:      strings.TrimSpace(doc.Name),
		Design:    decodeDesignSnapshot(doc.Design),
		CreatedAt: chooseTime(doc.CreatedAt, createdAt),
		UpdatedAt: chooseTime(doc.UpdatedAt, updatedAt),
	}
}
