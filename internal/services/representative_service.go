package services

import (
	"context"

	"mandoub-backend/internal/models"
	"mandoub-backend/internal/sheets"
)

type RepresentativeService struct {
	Reconciler *Reconciler
	mirror     Mirror
}

func NewRepresentativeService(r *Reconciler) *RepresentativeService {
	return &RepresentativeService{Reconciler: r}
}

func (s *RepresentativeService) SetMirror(m Mirror) { s.mirror = m }

// Create stores a representative; a plain password is replaced by its hash.
func (s *RepresentativeService) Create(ctx context.Context, rep *models.Representative) (*WriteResult, error) {
	if rep.Password != "" {
		hash, err := hashField("password", rep.Password)
		if err != nil {
			return nil, err
		}
		rep.PasswordHash = hash
		rep.Password = ""
	}

	result, err := s.Reconciler.Write(ctx, rep)
	if err != nil || !result.Success {
		return result, err
	}

	s.mirrorAction(ctx, sheets.ActionAddRepresentative, map[string]any{
		"correlationId": rep.CorrelationID,
		"name":          rep.Name,
		"role":          rep.Role,
		"location":      rep.Location,
		"active":        rep.IsActive(),
	})
	return result, nil
}

func (s *RepresentativeService) List(ctx context.Context) (*ReadResult, error) {
	return s.Reconciler.Read(ctx, models.KindRepresentative)
}

func (s *RepresentativeService) Update(ctx context.Context, ref Ref, upd *models.RepresentativeUpdate) (*MutationResult, error) {
	patch, err := upd.Patch()
	if err != nil {
		return nil, err
	}
	if pw, ok := patch["password"].(string); ok {
		hash, err := hashField("password", pw)
		if err != nil {
			return nil, err
		}
		delete(patch, "password")
		patch["passwordHash"] = hash
	}
	return s.Reconciler.Update(ctx, models.KindRepresentative, ref, patch), nil
}

// Delete removes a representative. Without ids the record is matched by
// correlation id, or by exact name and role.
func (s *RepresentativeService) Delete(ctx context.Context, ref Ref) *MutationResult {
	result := s.Reconciler.Delete(ctx, models.KindRepresentative, ref)
	if result.Success {
		payload := map[string]any{"correlationId": ref.CorrelationID}
		for k, v := range ref.Match {
			payload[k] = v
		}
		s.mirrorAction(ctx, sheets.ActionDeleteRepresentative, payload)
	}
	return result
}

func (s *RepresentativeService) DeleteAll(ctx context.Context) *MutationResult {
	return s.Reconciler.Clear(ctx, models.KindRepresentative)
}

func (s *RepresentativeService) mirrorAction(ctx context.Context, action string, payload map[string]any) {
	if s.mirror != nil {
		s.mirror.Mirror(ctx, action, payload)
	}
}
