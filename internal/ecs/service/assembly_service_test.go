package service

import (
	"context"
	"testing"

	"github.com/jimp5978/dshi-field-app/internal/ecs/apperr"
	"github.com/jimp5978/dshi-field-app/internal/ecs/process"
	"github.com/jimp5978/dshi-field-app/internal/ecs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemblySearch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	testutil.SeedAssembly(t, env.db, "RF-031-M2-SE-SD590", "BEAM", 100, testDate)
	testutil.SeedAssembly(t, env.db, "RF-031-M2-SE-SD591", "BEAM", 100)
	testutil.SeedAssembly(t, env.db, "RF-044-M2-SE-SD012", "POST", 100)

	_, err := env.svc.Assembly.Search(ctx, "  ")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// 숫자 3자리 이하는 끝자리 검색
	views, err := env.svc.Assembly.Search(ctx, "12")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "RF-044-M2-SE-SD012", views[0].AssemblyCode)

	views, err = env.svc.Assembly.Search(ctx, "rf-031")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, process.StatusInProgress, views[0].Status)
	assert.Equal(t, "FINAL", views[0].NextStage)
	assert.Equal(t, process.StatusWaiting, views[1].Status)
	assert.Equal(t, process.NotStarted, views[1].LastProcess)
	assert.Equal(t, 100.0, views[0].WeightGross)

	views, err = env.svc.Assembly.Search(ctx, "post")
	require.NoError(t, err)
	assert.Len(t, views, 1)

	_, err = env.svc.Assembly.Get(ctx, "NOPE")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAssemblyDashboard(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	worker := env.user(t, "kim", 1)
	manager := env.user(t, "choi", 3)

	testutil.SeedAssembly(t, env.db, "B1", "BEAM", 300, testDate, testDate, testDate, testDate, testDate, testDate, testDate, testDate)
	testutil.SeedAssembly(t, env.db, "B2", "BEAM", 100, testDate)
	testutil.SeedAssembly(t, env.db, "P1", "POST", 600)

	_, err := env.svc.Assembly.Dashboard(ctx, worker)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	data, err := env.svc.Assembly.Dashboard(ctx, manager)
	require.NoError(t, err)
	assert.Equal(t, 3, data.OverallStats.TotalAssemblies)
	assert.Equal(t, 1000.0, data.OverallStats.TotalWeight)
	assert.Equal(t, 1.0, data.OverallStats.TotalWeightTons)
	assert.Equal(t, 30.0, data.OverallStats.OverallProgress)
	assert.Equal(t, 40.0, data.ProcessCompletion[process.FitUp])
	assert.Equal(t, 100.0, data.ItemProcessCompletion["BEAM"][process.FitUp])
	assert.Equal(t, 75.0, data.ItemProcessCompletion["BEAM"][process.Final])
	assert.Equal(t, 0.0, data.ItemProcessCompletion["POST"][process.FitUp])
	require.Len(t, data.CompanyDistribution, 1)
	assert.Equal(t, 100.0, data.CompanyDistribution[0].Percentage)
}
