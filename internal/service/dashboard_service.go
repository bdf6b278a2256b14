package service

import (
	"context"

	"github.com/stevi10623-crypto/deductly-intake/internal/models"
)

// Dashboard is the staff landing summary.
type Dashboard struct {
	ClientCount int                         `json:"clientCount"`
	ByStatus    map[models.IntakeStatus]int `json:"byStatus"`
	Recent      []models.ClientSummary      `json:"recent"`
}

const recentClients = 5

type DashboardService struct {
	clients *ClientService
}

func NewDashboardService(clients *ClientService) *DashboardService {
	return &DashboardService{clients: clients}
}

// Summary counts the actor's intakes by status and lists the newest clients.
func (s *DashboardService) Summary(ctx context.Context, actor Actor) (*Dashboard, error) {
	list, err := s.clients.List(ctx, actor)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{
		ClientCount: len(list),
		ByStatus: map[models.IntakeStatus]int{
			models.StatusNotStarted: 0,
			models.StatusInProgress: 0,
			models.StatusSubmitted:  0,
			models.StatusReviewed:   0,
		},
	}
	for _, c := range list {
		if c.Status != "" {
			d.ByStatus[c.Status]++
		}
	}
	n := min(len(list), recentClients)
	d.Recent = list[:n]
	return d, nil
}
