package report

import (
	"context"
	"fmt"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
)

// ListServiceLogs returns a page of service logs visible to the actor,
// with client and activity names resolved.
func (s *Service) ListServiceLogs(ctx context.Context, filter domain.ServiceLogFilter, page, limit int) (domain.Page[domain.ServiceLogView], error) {
	filter, _, err := scopeFilter(ctx, filter)
	if err != nil {
		return domain.Page[domain.ServiceLogView]{}, err
	}

	logs, err := s.logs.Find(ctx, filter, page, limit)
	if err != nil {
		return domain.Page[domain.ServiceLogView]{}, fmt.Errorf("find service logs: %w", err)
	}

	clients, err := s.clients.Names(ctx)
	if err != nil {
		return domain.Page[domain.ServiceLogView]{}, fmt.Errorf("load client names: %w", err)
	}
	activities, err := s.activities.Names(ctx)
	if err != nil {
		return domain.Page[domain.ServiceLogView]{}, fmt.Errorf("load activity names: %w", err)
	}

	views := make([]domain.ServiceLogView, len(logs.Items))
	for i, l := range logs.Items {
		views[i] = domain.ServiceLogView{
			ServiceLog:   l,
			ClientName:   clients[l.ClientID],
			ActivityName: activities[l.ActivityID],
		}
	}

	return domain.Page[domain.ServiceLogView]{
		Items:      views,
		Total:      logs.Total,
		Page:       logs.Page,
		Limit:      logs.Limit,
		TotalPages: logs.TotalPages,
	}, nil
}
