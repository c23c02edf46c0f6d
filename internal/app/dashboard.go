package app

import (
	"context"
	"time"

	"ayursutra/pkg/domain"
	"ayursutra/pkg/store"
	"golang.org/x/sync/errgroup"
)

// newPatientDays is how many days back createdAt may be for a patient to count as new.
const newPatientDays = 30

// Dashboard recomputes the dashboard counters from the store on every call.
// todayAppointments and pendingReports are independent counts even though
// both filter on the Scheduled status.
func (a *App) Dashboard(ctx context.Context) (domain.DashboardStats, error) {
	now := a.now()
	filters := [3]store.PatientFilter{
		{DateFrom: startOfDay(now, a.loc), Status: domain.DefaultPatientStatus},
		{Status: domain.DefaultPatientStatus},
		{CreatedFrom: now.AddDate(0, 0, -newPatientDays)},
	}
	var counts [3]int
	g, gctx := errgroup.WithContext(ctx)
	for i := range filters {
		g.Go(func() error {
			n, err := a.store.CountPatients(gctx, filters[i])
			if err != nil {
				return err
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.DashboardStats{}, err
	}
	return domain.DashboardStats{
		TodayAppointments: counts[0],
		PendingReports:    counts[1],
		NewPatients:       counts[2],
	}, nil
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
