package project

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/translation-kpi/internal/domain/entity"
	"github.com/ignatzorin/translation-kpi/internal/domain/repository"
	"github.com/ignatzorin/translation-kpi/internal/domain/valueobject"
	"github.com/ignatzorin/translation-kpi/internal/goroutine"
	"github.com/ignatzorin/translation-kpi/internal/logger"
	"github.com/ignatzorin/translation-kpi/internal/service"
)

// События уведомлений по проекту.
const (
	EventMemberAssigned   = "project.member_assigned"
	EventMemberAccepted   = "project.member_accepted"
	EventMemberRejected   = "project.member_rejected"
	EventProjectCompleted = "project.completed"
)

// Notifier внешний получатель уведомлений.
type Notifier interface {
	BroadcastToUser(userID uuid.UUID, event string, data interface{}) error
}

// PreviewInvalidator сбрасывает закешированные предварительные расчёты.
type PreviewInvalidator interface {
	InvalidatePreviews()
}

// RatiosSource отдаёт копию действующих коэффициентов для снимка.
type RatiosSource interface {
	ActiveRatios(ctx context.Context) (entity.LockedRatios, error)
}

// KPIGenerator генерирует KPI завершённого проекта.
type KPIGenerator interface {
	GenerateForProject(ctx context.Context, projectID uuid.UUID) (*service.GenerationReport, error)
}

// Details проект вместе с участниками.
type Details struct {
	Project *entity.Project
	Members []*entity.ProjectMember
}

var nowFn = func() time.Time { return time.Now().UTC() }

// notifyAsync рассылает уведомление в фоне; ошибки только логируются.
func notifyAsync(notifier Notifier, recipients []uuid.UUID, event string, data interface{}) {
	if notifier == nil || len(recipients) == 0 {
		return
	}
	goroutine.SafeGo(func() {
		for _, userID := range recipients {
			if err := notifier.BroadcastToUser(userID, event, data); err != nil {
				logger.Log.WithError(err).WithFields(logrus.Fields{
					"user_id": userID,
					"event":   event,
				}).Warn("не удалось отправить уведомление")
			}
		}
	})
}

func invalidate(cache PreviewInvalidator) {
	if cache != nil {
		cache.InvalidatePreviews()
	}
}

// recordTransition пишет строку журнала, если статус изменился.
func recordTransition(ctx context.Context, store repository.ProjectStore, p *entity.Project, from valueobject.ProjectStatus, actorID uuid.UUID, now time.Time) error {
	if p.Status == from {
		return nil
	}
	change := &entity.StatusChange{
		ID:        uuid.New(),
		ProjectID: p.ID,
		From:      from,
		To:        p.Status,
		CreatedAt: now,
	}
	if actorID != uuid.Nil {
		id := actorID
		change.ActorID = &id
	}
	if err := store.AppendStatusChange(ctx, change); err != nil {
		return err
	}
	logger.WithProject(p.ID).WithFields(logrus.Fields{
		"from":    from,
		"to":      p.Status,
		"user_id": actorID,
	}).Info("статус проекта изменён")
	return nil
}

// canManage: администратор, создатель проекта или его менеджер.
func canManage(actor entity.Actor, p *entity.Project, members []*entity.ProjectMember) bool {
	if actor.IsAdmin() || p.IsCreatedBy(actor.UserID) {
		return true
	}
	return isActiveMember(members, actor.UserID, valueobject.RoleProjectManager)
}

func isActiveMember(members []*entity.ProjectMember, userID uuid.UUID, role valueobject.Role) bool {
	for _, m := range members {
		if m.UserID == userID && m.Role == role && m.Acceptance != valueobject.AcceptanceRejected {
			return true
		}
	}
	return false
}

func findMember(members []*entity.ProjectMember, memberID uuid.UUID) *entity.ProjectMember {
	for _, m := range members {
		if m.ID == memberID {
			return m
		}
	}
	return nil
}

// managersAndCreator получатели уведомлений о решении по назначению.
func managersAndCreator(p *entity.Project, members []*entity.ProjectMember, exclude uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{exclude: {}}
	var out []uuid.UUID
	add := func(id uuid.UUID) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	add(p.CreatedBy)
	for _, m := range members {
		if m.Role == valueobject.RoleProjectManager && m.Acceptance != valueobject.AcceptanceRejected {
			add(m.UserID)
		}
	}
	return out
}

func memberPayload(p *entity.Project, m *entity.ProjectMember) map[string]interface{} {
	payload := map[string]interface{}{
		"project_id":   p.ID,
		"project_name": p.Name,
		"member_id":    m.ID,
		"user_id":      m.UserID,
		"role":         m.Role,
		"status":       p.Status,
	}
	if m.RejectionReason != "" {
		payload["reason"] = m.RejectionReason
	}
	return payload
}
