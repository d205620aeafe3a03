package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/tapforge/api/internal/domain"
	"github.com/tapforge/api/internal/repositories"
)

var (
	// ErrDesignInvalidInput indicates the caller provided invalid arguments.
	ErrDesignInvalidInput = errors.New("design: invalid input")
	// ErrDesignNotFound indicates the requested design does not exist.
	ErrDesignNotFound = errors.New("design: not found")
	// ErrDesignConflict indicates the operation would conflict with existing state.
	ErrDesignConflict = errors.New("design: conflict")
	// ErrDesignStorage indicates the persistence collaborator failed.
	ErrDesignStorage = errors.New("design: storage unavailable")
)

const (
	designIDPrefix   = "dsg_"
	maxDesignNameLen = 120
)

// DesignServiceDeps wires dependencies for the design service implementation.
type DesignServiceDeps struct {
	Designs     repositories.DesignRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type designService struct {
	designs repositories.DesignRepository
	clock   func() time.Time
	newID   func() string
	logger  func(context.Context, string, map[string]any)
}

// NewDesignService constructs a DesignService backed by the provided dependencies.
func NewDesignService(deps DesignServiceDeps) (DesignService, error) {
	if deps.Designs == nil {
		return nil, errors.New("design service: designs repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &designService{
		designs: deps.Designs,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *designService) SaveDesign(ctx context.Context, cmd SaveDesignCommand) (SavedDesign, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return SavedDesign{}, fmt.Errorf("%w: user id is required", ErrDesignInvalidInput)
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return SavedDesign{}, fmt.Errorf("%w: design name is required", ErrDesignInvalidInput)
	}
	if len(name) > maxDesignNameLen {
		return SavedDesign{}, fmt.Errorf("%w: design name exceeds %d characters", ErrDesignInvalidInput, maxDesignNameLen)
	}
	if err := validateDesign(cmd.Design); err != nil {
		return SavedDesign{}, err
	}

	now := s.clock()
	saved := SavedDesign{
		ID:        designIDPrefix + s.newID(),
		OwnerID:   userID,
		Name:      name,
		Design:    cmd.Design.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.designs.Insert(ctx, saved); err != nil {
		return SavedDesign{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "design.saved", map[string]any{
		"designId": saved.ID,
		"userId":   userID,
	})

	return saved, nil
}

func (s *designService) GetDesign(ctx context.Context, userID, designID string) (SavedDesign, error) {
	designID = strings.TrimSpace(designID)
	if designID == "" {
		return SavedDesign{}, fmt.Errorf("%w: design id is required", ErrDesignInvalidInput)
	}

	design, err := s.designs.FindByID(ctx, designID)
	if err != nil {
		return SavedDesign{}, s.mapRepositoryError(err)
	}
	if userID = strings.TrimSpace(userID); userID != "" && design.OwnerID != userID {
		return SavedDesign{}, fmt.Errorf("%w: %s", ErrDesignNotFound, designID)
	}
	return design, nil
}

func (s *designService) ListDesigns(ctx context.Context, filter DesignListFilter) (domain.CursorPage[SavedDesign], error) {
	ownerID := strings.TrimSpace(filter.UserID)
	if ownerID == "" {
		return domain.CursorPage[SavedDesign]{}, fmt.Errorf("%w: user id is required", ErrDesignInvalidInput)
	}
	page, err := s.designs.ListByOwner(ctx, ownerID, repositories.DesignListFilter{Pagination: filter.Pagination})
	if err != nil {
		return domain.CursorPage[SavedDesign]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *designService) DeleteDesign(ctx context.Context, userID, designID string) error {
	design, err := s.GetDesign(ctx, userID, designID)
	if err != nil {
		return err
	}
	if err := s.designs.Delete(ctx, design.ID); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *designService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrDesignNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrDesignConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrDesignStorage, err)
		}
	}

	return fmt.Errorf("%w: %v", ErrDesignStorage, err)
}
