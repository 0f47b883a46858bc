package service

import (
	"context"
	"strings"
	"sync"

	"devlend/internal/domain"
	"devlend/internal/models"

	"github.com/rs/zerolog"
)

const msgDeviceNotFound = "Device not found."

// ResourceService is the device registry. The label-ordered catalogue is
// cached in memory and reloaded after every change made through it.
type ResourceService struct {
	repo   domain.ResourceRepository
	logger *zerolog.Logger

	mu        sync.RWMutex
	catalogue []models.Resource
	loaded    bool
}

func NewResourceService(repo domain.ResourceRepository, logger *zerolog.Logger) *ResourceService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ResourceService{repo: repo, logger: logger}
}

// ListAvailable returns the admission candidates in registry order.
func (s *ResourceService) ListAvailable(ctx context.Context) ([]models.Resource, error) {
	res, err := s.repo.ListAvailableResources(ctx)
	if err != nil {
		return nil, storeError("list devices", err, "")
	}
	return res, nil
}

func (s *ResourceService) Get(ctx context.Context, id int64) (*models.Resource, error) {
	r, err := s.repo.GetResource(ctx, id)
	if err != nil {
		return nil, storeError("get device", err, msgDeviceNotFound)
	}
	return r, nil
}

// SetStatus toggles a device between available and maintenance. Existing
// bookings are left as they are.
func (s *ResourceService) SetStatus(ctx context.Context, actor models.Actor, id int64, status models.ResourceStatus) (*models.Resource, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, domain.Validation("Status must be 'available' or 'maintenance'.")
	}
	if err := s.repo.UpdateResourceStatus(ctx, id, status); err != nil {
		return nil, storeError("update device status", err, msgDeviceNotFound)
	}
	s.logger.Info().Int64("resource_id", id).Str("status", string(status)).Str("user_id", actor.UserID).Msg("device status changed")
	s.invalidate()
	return s.Get(ctx, id)
}

// ListCatalogue returns every device ordered by label.
func (s *ResourceService) ListCatalogue(ctx context.Context) ([]models.Resource, error) {
	s.mu.RLock()
	if s.loaded {
		out := append([]models.Resource(nil), s.catalogue...)
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Resource(nil), s.catalogue...), nil
}

// Refresh reloads the catalogue cache from the store.
func (s *ResourceService) Refresh(ctx context.Context) error {
	res, err := s.repo.ListResourcesByLabel(ctx)
	if err != nil {
		return storeError("list catalogue", err, "")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalogue = res
	s.loaded = true
	return nil
}

func (s *ResourceService) invalidate() {
	s.mu.Lock()
	s.loaded = false
	s.catalogue = nil
	s.mu.Unlock()
}

func (s *ResourceService) Detail(ctx context.Context, id int64) (*models.ResourceDetail, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	games, err := s.repo.ListGames(ctx, id)
	if err != nil {
		return nil, storeError("list games", err, "")
	}
	return &models.ResourceDetail{Resource: *r, Games: games}, nil
}

func (s *ResourceService) ListAll(ctx context.Context, actor models.Actor) ([]models.Resource, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	res, err := s.repo.ListResources(ctx)
	if err != nil {
		return nil, storeError("list devices", err, "")
	}
	return res, nil
}

func (s *ResourceService) Create(ctx context.Context, actor models.Actor, req models.CreateResourceRequest) (*models.Resource, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	label := strings.TrimSpace(req.Label)
	if label == "" {
		return nil, domain.Validation("Label is required.")
	}
	if req.DailyRate != nil && *req.DailyRate < 0 {
		return nil, domain.Validation("Price per day must be a non-negative number.")
	}
	status := req.Status
	if status == "" {
		status = models.ResourceAvailable
	}
	if !status.Valid() {
		return nil, domain.Validation("Status must be 'available' or 'maintenance'.")
	}

	r := &models.Resource{
		Label:     label,
		Status:    status,
		DailyRate: req.DailyRate,
		ImageURL:  strings.TrimSpace(req.ImageURL),
	}
	if err := s.repo.CreateResource(ctx, r); err != nil {
		return nil, storeError("create device", err, "")
	}
	s.logger.Info().Int64("resource_id", r.ID).Str("label", r.Label).Str("user_id", actor.UserID).Msg("device created")
	s.invalidate()
	return r, nil
}

func (s *ResourceService) AddGame(ctx context.Context, actor models.Actor, g models.Game) (*models.Game, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	g.Title = strings.TrimSpace(g.Title)
	if g.ResourceID == 0 || g.Title == "" {
		return nil, domain.Validation("console_id and title are required.")
	}
	if _, err := s.Get(ctx, g.ResourceID); err != nil {
		return nil, err
	}
	g.ImageURL = strings.TrimSpace(g.ImageURL)
	if err := s.repo.CreateGame(ctx, &g); err != nil {
		return nil, storeError("add game", err, "")
	}
	return &g, nil
}

func (s *ResourceService) DeleteGame(ctx context.Context, actor models.Actor, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.repo.DeleteGame(ctx, id); err != nil {
		return storeError("delete game", err, "Game not found.")
	}
	return nil
}
